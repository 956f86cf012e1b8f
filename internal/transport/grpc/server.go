// Package grpc implements the gRPC/Protobuf transport: a RateLimiter
// service with one Throttle RPC, submitting to the Actor via a
// cellgate.Handle and mapping core errors to gRPC status codes per spec
// §6.2.
package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cellgate/cellgate/internal/transport/grpc/cellgatepb"
	"github.com/cellgate/cellgate/pkg/cellgate"
)

// Server implements cellgatepb.RateLimiterServer. It holds no GCRA state
// of its own, per spec §4.4 — every RPC is forwarded to the Actor through
// handle.
type Server struct {
	cellgatepb.UnimplementedRateLimiterServer

	handle         *cellgate.Handle
	logger         zerolog.Logger
	requestTimeout time.Duration
}

// Config configures a new gRPC Server.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
}

// New builds a cellgatepb.RateLimiterServer backed by handle.
func New(handle *cellgate.Handle, logger zerolog.Logger, requestTimeout time.Duration) *Server {
	return &Server{handle: handle, logger: logger, requestTimeout: requestTimeout}
}

// Throttle implements cellgatepb.RateLimiterServer.
func (s *Server) Throttle(ctx context.Context, req *cellgatepb.ThrottleRequest) (*cellgatepb.ThrottleResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	outcome, err := s.handle.Throttle(ctx, cellgate.Request{
		Key: req.GetKey(),
		Policy: cellgate.Policy{
			MaxBurst:       int64(req.GetMaxBurst()),
			CountPerPeriod: int64(req.GetCountPerPeriod()),
			PeriodSeconds:  int64(req.GetPeriod()),
		},
		Quantity:  int64(req.GetQuantity()),
		Transport: "grpc",
	})
	if err != nil {
		return nil, toGRPCStatus(err)
	}

	return &cellgatepb.ThrottleResponse{
		Allowed:    outcome.Allowed,
		Limit:      int32(outcome.Limit),
		Remaining:  int32(outcome.Remaining),
		RetryAfter: int32(outcome.RetryAfterS),
		ResetAfter: int32(outcome.ResetAfterS),
	}, nil
}

func toGRPCStatus(err error) error {
	switch {
	case errors.Is(err, cellgate.ErrInvalidParameter), errors.Is(err, cellgate.ErrOverflow):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, cellgate.ErrBackpressure):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, cellgate.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Listener wraps a *grpc.Server bound to an address, with the same
// ListenAndServe/Shutdown shape as the HTTP and RESP transports so
// internal/server can drive all three uniformly.
type Listener struct {
	addr       string
	grpcServer *grpc.Server
}

// NewListener builds a Listener serving srv on addr, with panic recovery
// and structured access logging applied via go-grpc-middleware's unary
// interceptor chain — the same middleware-chain shape as the HTTP
// transport's gateway.Chain.
func NewListener(addr string, srv cellgatepb.RateLimiterServer, logger zerolog.Logger) *Listener {
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			grpc_recovery.UnaryServerInterceptor(),
			accessLogInterceptor(logger),
		)),
	)
	cellgatepb.RegisterRateLimiterServer(grpcServer, srv)
	return &Listener{addr: addr, grpcServer: grpcServer}
}

func accessLogInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		reqID := uuid.NewString()
		start := time.Now()
		resp, err := handler(ctx, req)
		ev := logger.Debug()
		if err != nil {
			ev = logger.Warn().Err(err)
		}
		ev.Str("req_id", reqID).Str("method", info.FullMethod).Dur("dur", time.Since(start)).Msg("grpc")
		return resp, err
	}
}

// ListenAndServe blocks serving gRPC until the listener fails or is
// stopped by Shutdown.
func (l *Listener) ListenAndServe() error {
	lis, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	return l.grpcServer.Serve(lis)
}

// Shutdown gracefully stops the gRPC server, waiting for in-flight RPCs
// to finish or ctx to expire.
func (l *Listener) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		l.grpcServer.Stop()
		return ctx.Err()
	}
}
