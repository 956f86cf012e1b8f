// Package server wires the configuration, observability, store, actor, and
// transport layers into one running process, and coordinates their
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cellgate/cellgate/internal/config"
	"github.com/cellgate/cellgate/internal/obs"
	grpctransport "github.com/cellgate/cellgate/internal/transport/grpc"
	httptransport "github.com/cellgate/cellgate/internal/transport/http"
	"github.com/cellgate/cellgate/internal/transport/resp"
	"github.com/cellgate/cellgate/pkg/cellgate"
)

// listener is the shape every transport in this package exposes, letting
// Server drive HTTP, gRPC, and RESP identically.
type listener interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Server owns the whole running process: one Actor, and whichever
// transports cfg enables.
type Server struct {
	cfg    *config.Root
	logger zerolog.Logger

	actor *cellgate.Actor

	listeners       []namedListener
	tracingShutdown func(context.Context) error
}

type namedListener struct {
	name string
	listener
}

// New builds a Server from cfg: the Store, the Actor, the Prometheus
// registry, and every transport cfg.Transports enables. It does not start
// listening; call Run for that.
func New(cfg *config.Root, logger zerolog.Logger) (*Server, error) {
	store, err := config.BuildStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("server: build store: %w", err)
	}

	metrics := cellgate.NewCounters()
	if cfg.Metrics.TopDeniedKeysCap != nil && *cfg.Metrics.TopDeniedKeysCap > 0 {
		metrics.EnableTopDenied(*cfg.Metrics.TopDeniedKeysCap)
	}

	actor, handle := cellgate.NewActor(store, cellgate.SystemClock{},
		cellgate.WithQueueCapacity(cfg.Actor.QueueCapacity),
		cellgate.WithCounters(metrics),
	)

	tracingShutdown, err := obs.SetupTracing(cfg.Observability.TracingEnabled)
	if err != nil {
		return nil, fmt.Errorf("server: setup tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	var enabledTransports []string
	if cfg.Transports.HTTP.Enabled {
		enabledTransports = append(enabledTransports, "http")
	}
	if cfg.Transports.GRPC.Enabled {
		enabledTransports = append(enabledTransports, "grpc")
	}
	if cfg.Transports.RESP.Enabled {
		enabledTransports = append(enabledTransports, "resp")
	}
	registry.MustRegister(obs.NewCellgateCollector(metrics, enabledTransports))

	s := &Server{cfg: cfg, logger: logger, actor: actor, tracingShutdown: tracingShutdown}

	if cfg.Transports.HTTP.Enabled {
		httpSrv := httptransport.NewServer(handle, logger, httptransport.Config{
			Addr:           cfg.Transports.HTTP.Addr(),
			RequestTimeout: cfg.Transports.HTTP.RequestTimeout(),
			IdleTimeout:    cfg.Transports.HTTP.IdleTimeout(),
			MaxBodyBytes:   1 << 20,
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		})
		s.listeners = append(s.listeners, namedListener{"http", httpSrv})
	}

	if cfg.Transports.GRPC.Enabled {
		grpcSrv := grpctransport.New(handle, logger, cfg.Transports.GRPC.RequestTimeout())
		grpcListener := grpctransport.NewListener(cfg.Transports.GRPC.Addr(), grpcSrv, logger)
		s.listeners = append(s.listeners, namedListener{"grpc", grpcListener})
	}

	if cfg.Transports.RESP.Enabled {
		respSrv := resp.NewServer(handle, logger, resp.Config{
			Addr:           cfg.Transports.RESP.Addr(),
			RequestTimeout: cfg.Transports.RESP.RequestTimeout(),
			IdleTimeout:    cfg.Transports.RESP.IdleTimeout(),
		})
		s.listeners = append(s.listeners, namedListener{"resp", respSrv})
	}

	return s, nil
}

// Run starts every enabled transport and blocks until ctx is cancelled or
// one of them fails unrecoverably, then drains the Actor and releases
// observability resources.
func (s *Server) Run(ctx context.Context) error {
	if len(s.listeners) == 0 {
		return errors.New("server: no transport enabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range s.listeners {
		l := l
		g.Go(func() error {
			s.logger.Info().Str("transport", l.name).Msg("listening")
			if err := l.ListenAndServe(); err != nil {
				return fmt.Errorf("%s: %w", l.name, err)
			}
			return nil
		})
	}

	<-gctx.Done()
	s.shutdown()
	return g.Wait()
}

func (s *Server) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, l := range s.listeners {
		if err := l.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Str("transport", l.name).Msg("shutdown error")
		}
	}
	if err := s.actor.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("actor shutdown error")
	}
	if s.tracingShutdown != nil {
		if err := s.tracingShutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("tracing shutdown error")
		}
	}
}
