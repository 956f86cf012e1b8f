package cellgate

import "sync"

// Counters is the monotonic counter set the Actor maintains. All fields are
// updated exclusively by the Actor's single goroutine (per spec's
// single-writer model) and are safe to read concurrently via the accessor
// methods, which take a snapshot under a short lock rather than exposing
// raw fields.
//
// Per-transport breakdowns exist because spec's "a set of monotonic
// counters" line is deliberately unenumerated; see SPEC_FULL.md §4 for why
// this reading includes them.
type Counters struct {
	mu sync.Mutex

	total   uint64
	allowed uint64
	denied  uint64

	byTransport map[string]transportCounts

	topDenied *topDeniedTracker
}

type transportCounts struct {
	requests uint64
	allowed  uint64
	denied   uint64
}

// NewCounters returns a zeroed Counters with the top-denied tracker
// disabled. Call EnableTopDenied to turn it on.
func NewCounters() *Counters {
	return &Counters{byTransport: make(map[string]transportCounts)}
}

// EnableTopDenied turns on the bounded top-denied-keys tracker with the
// given capacity. Capacity 0 (or less) disables it (the default), removing
// any tracker already enabled. Calling it more than once replaces the
// tracker.
func (c *Counters) EnableTopDenied(capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if capacity <= 0 {
		c.topDenied = nil
		return
	}
	c.topDenied = newTopDeniedTracker(capacity)
}

// recordOutcome is called once per Actor.Throttle decision. transport is a
// short label ("http", "grpc", "resp", "") identifying the calling codec.
func (c *Counters) recordOutcome(transport string, key string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	tc := c.byTransport[transport]
	tc.requests++
	if allowed {
		c.allowed++
		tc.allowed++
	} else {
		c.denied++
		tc.denied++
		if c.topDenied != nil {
			c.topDenied.bump(key)
		}
	}
	c.byTransport[transport] = tc
}

// Snapshot is a point-in-time, allocation-free copy of the aggregate
// counters, suitable for exposing to a Prometheus collector.
type Snapshot struct {
	Total   uint64
	Allowed uint64
	Denied  uint64
}

// Snapshot returns the current aggregate counter values.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Total: c.total, Allowed: c.allowed, Denied: c.denied}
}

// TransportSnapshot returns the current per-transport counter values for
// the given label, or the zero value if that transport never recorded a
// decision.
func (c *Counters) TransportSnapshot(transport string) (requests, allowed, denied uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc := c.byTransport[transport]
	return tc.requests, tc.allowed, tc.denied
}

// TopDenied returns the current top-denied-keys snapshot ordered from
// highest to lowest denial count. It returns nil if the tracker is
// disabled.
func (c *Counters) TopDenied() []KeyCount {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topDenied == nil {
		return nil
	}
	return c.topDenied.snapshot()
}

// KeyCount pairs a key with its denial count, as returned by TopDenied.
type KeyCount struct {
	Key   string
	Count uint64
}

// topDeniedTracker is a bounded map key -> denial_count with eviction of
// the lowest count on overflow, ties broken by insertion order (the
// earliest-inserted of the tied entries is evicted first). Implemented as
// a plain map plus a monotonic insertion sequence rather than a heap: the
// capacity is small (default 100, max 10000) so a linear scan to find the
// eviction victim is cheap relative to the decision it's attached to.
type topDeniedTracker struct {
	capacity int
	seq      uint64
	entries  map[string]*deniedEntry
}

type deniedEntry struct {
	count      uint64
	insertedAt uint64
}

func newTopDeniedTracker(capacity int) *topDeniedTracker {
	return &topDeniedTracker{
		capacity: capacity,
		entries:  make(map[string]*deniedEntry, capacity),
	}
}

func (t *topDeniedTracker) bump(key string) {
	if e, ok := t.entries[key]; ok {
		e.count++
		return
	}
	if len(t.entries) < t.capacity {
		t.seq++
		t.entries[key] = &deniedEntry{count: 1, insertedAt: t.seq}
		return
	}
	victimKey := t.evictionVictim()
	if victimKey == "" {
		return
	}
	delete(t.entries, victimKey)
	t.seq++
	t.entries[key] = &deniedEntry{count: 1, insertedAt: t.seq}
}

// evictionVictim returns the key with the lowest count, breaking ties by
// earliest insertion.
func (t *topDeniedTracker) evictionVictim() string {
	var victim string
	var victimEntry *deniedEntry
	for k, e := range t.entries {
		if victimEntry == nil ||
			e.count < victimEntry.count ||
			(e.count == victimEntry.count && e.insertedAt < victimEntry.insertedAt) {
			victim = k
			victimEntry = e
		}
	}
	return victim
}

func (t *topDeniedTracker) snapshot() []KeyCount {
	out := make([]KeyCount, 0, len(t.entries))
	for k, e := range t.entries {
		out = append(out, KeyCount{Key: k, Count: e.count})
	}
	// Insertion-ordered ties aside, callers (the Prometheus exporter) want
	// highest-denied-first.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Count > out[j-1].Count; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
