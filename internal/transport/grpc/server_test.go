package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/cellgate/cellgate/internal/transport/grpc/cellgatepb"
	"github.com/cellgate/cellgate/pkg/cellgate"
)

func newTestListener(t *testing.T) (*Listener, net.Addr, func()) {
	t.Helper()

	store := cellgate.NewPeriodicStore(4)
	clock := cellgate.NewManualClock(0)
	actor, handle := cellgate.NewActor(store, clock)

	srv := New(handle, zerolog.Nop(), time.Second)
	ln := NewListener("127.0.0.1:0", srv, zerolog.Nop())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		_ = ln.grpcServer.Serve(lis)
	}()

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = ln.Shutdown(ctx)
		_ = actor.Shutdown(ctx)
	}
	return ln, lis.Addr(), cleanup
}

func TestThrottleAllowedThenDenied(t *testing.T) {
	_, addr, cleanup := newTestListener(t)
	defer cleanup()

	conn, err := grpc.NewClient(addr.String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := cellgatepb.NewRateLimiterClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := &cellgatepb.ThrottleRequest{Key: "k", MaxBurst: 0, CountPerPeriod: 1, Period: 1, Quantity: 1}

	resp, err := client.Throttle(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.GetAllowed() {
		t.Fatalf("expected first request allowed")
	}

	resp, err = client.Throttle(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetAllowed() {
		t.Fatalf("expected second immediate request denied (burst=0)")
	}
}

func TestThrottleInvalidParameter(t *testing.T) {
	_, addr, cleanup := newTestListener(t)
	defer cleanup()

	conn, err := grpc.NewClient(addr.String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := cellgatepb.NewRateLimiterClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := &cellgatepb.ThrottleRequest{Key: "k", MaxBurst: -1, CountPerPeriod: 1, Period: 1, Quantity: 1}
	_, err = client.Throttle(ctx, req)
	if err == nil {
		t.Fatalf("expected error for negative max_burst")
	}
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("got code %v, want InvalidArgument", status.Code(err))
	}
}
