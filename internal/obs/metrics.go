package obs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cellgate/cellgate/pkg/cellgate"
)

// CellgateCollector exposes an Actor's cellgate.Counters as Prometheus
// metrics. Per SPEC_FULL.md §3.6, the core counters themselves are plain
// fields on cellgate.Counters, guarded by one mutex that the Actor takes
// on every decision and that every reader takes too; they are not read by
// atomic load. This type is strictly the registration glue the core
// explicitly has no opinion about.
type CellgateCollector struct {
	counters   *cellgate.Counters
	transports []string

	total       *prometheus.Desc
	allowed     *prometheus.Desc
	denied      *prometheus.Desc
	byTransport *prometheus.Desc
	topDenied   *prometheus.Desc
}

// NewCellgateCollector builds a collector over counters. transports lists
// the transport labels ("http", "grpc", "resp") whose per-transport
// breakdown should be scraped; an empty list skips that metric family.
func NewCellgateCollector(counters *cellgate.Counters, transports []string) *CellgateCollector {
	return &CellgateCollector{
		counters:   counters,
		transports: transports,
		total: prometheus.NewDesc(
			"cellgate_decisions_total", "Total GCRA decisions made.", nil, nil),
		allowed: prometheus.NewDesc(
			"cellgate_decisions_allowed_total", "Total GCRA decisions that allowed the request.", nil, nil),
		denied: prometheus.NewDesc(
			"cellgate_decisions_denied_total", "Total GCRA decisions that denied the request.", nil, nil),
		byTransport: prometheus.NewDesc(
			"cellgate_transport_requests_total", "Total requests handled per transport.",
			[]string{"transport", "outcome"}, nil),
		topDenied: prometheus.NewDesc(
			"cellgate_top_denied_key_denials", "Denial count for a key in the top-denied tracker.",
			[]string{"key"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *CellgateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.allowed
	ch <- c.denied
	ch <- c.byTransport
	ch <- c.topDenied
}

// Collect implements prometheus.Collector. It takes a fresh snapshot on
// every scrape rather than caching. Each snapshot holds the Counters mutex
// briefly, so a scrape can delay the Actor's next counter update.
func (c *CellgateCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.counters.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(snap.Total))
	ch <- prometheus.MustNewConstMetric(c.allowed, prometheus.CounterValue, float64(snap.Allowed))
	ch <- prometheus.MustNewConstMetric(c.denied, prometheus.CounterValue, float64(snap.Denied))

	for _, transport := range c.transports {
		_, allowed, denied := c.counters.TransportSnapshot(transport)
		ch <- prometheus.MustNewConstMetric(c.byTransport, prometheus.CounterValue, float64(allowed), transport, "allowed")
		ch <- prometheus.MustNewConstMetric(c.byTransport, prometheus.CounterValue, float64(denied), transport, "denied")
	}

	for _, kc := range c.counters.TopDenied() {
		ch <- prometheus.MustNewConstMetric(c.topDenied, prometheus.GaugeValue, float64(kc.Count), kc.Key)
	}
}
