package cellgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestActorThrottleBasic(t *testing.T) {
	store := NewPeriodicStore(4)
	clock := NewManualClock(0)
	actor, handle := NewActor(store, clock)
	defer mustShutdown(t, actor)

	policy := Policy{MaxBurst: 0, CountPerPeriod: 1, PeriodSeconds: 1}

	outcome, err := handle.Throttle(context.Background(), Request{Key: "k", Policy: policy, Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Allowed {
		t.Fatalf("expected first request allowed")
	}

	outcome, err = handle.Throttle(context.Background(), Request{Key: "k", Policy: policy, Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Allowed {
		t.Fatalf("expected second immediate request denied (burst=0)")
	}

	snap := actor.Metrics().Snapshot()
	if snap.Total != 2 || snap.Allowed != 1 || snap.Denied != 1 {
		t.Fatalf("unexpected counter snapshot: %+v", snap)
	}
}

func TestActorPeekNeverInserts(t *testing.T) {
	store := NewPeriodicStore(4)
	clock := NewManualClock(0)
	actor, handle := NewActor(store, clock)
	defer mustShutdown(t, actor)

	policy := Policy{MaxBurst: 1, CountPerPeriod: 1, PeriodSeconds: 1}

	if _, err := handle.Throttle(context.Background(), Request{Key: "k", Policy: policy, Quantity: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("a quantity=0 peek must never insert into the store, Len() = %d", store.Len())
	}
}

func TestActorServesConcurrentProducers(t *testing.T) {
	store := NewPeriodicStore(4)
	clock := NewManualClock(0)
	actor, handle := NewActor(store, clock)
	defer mustShutdown(t, actor)

	policy := Policy{MaxBurst: 1000, CountPerPeriod: 1, PeriodSeconds: 1}

	var got []int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			outcome, err := handle.Throttle(context.Background(), Request{Key: "shared", Policy: policy, Quantity: 1})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			got = append(got, outcome.Remaining)
			mu.Unlock()
		}(int64(i))
	}
	wg.Wait()

	if len(got) != 20 {
		t.Fatalf("got %d outcomes, want 20", len(got))
	}
}

func TestActorShutdownThenUnavailable(t *testing.T) {
	store := NewPeriodicStore(4)
	clock := NewManualClock(0)
	actor, handle := NewActor(store, clock)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := actor.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}

	policy := Policy{MaxBurst: 1, CountPerPeriod: 1, PeriodSeconds: 1}
	_, err := handle.Throttle(context.Background(), Request{Key: "k", Policy: policy, Quantity: 1})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestActorTopDeniedTracker(t *testing.T) {
	store := NewPeriodicStore(4)
	clock := NewManualClock(0)
	metrics := NewCounters()
	metrics.EnableTopDenied(3)
	actor, handle := NewActor(store, clock, WithCounters(metrics))
	defer mustShutdown(t, actor)

	policy := Policy{MaxBurst: 0, CountPerPeriod: 1, PeriodSeconds: 1}

	deny := func(key string, times int) {
		for i := 0; i < times; i++ {
			// First call per key always allows (burst=0, fresh key); force
			// denials by immediately repeating at the same instant.
			handle.Throttle(context.Background(), Request{Key: key, Policy: policy, Quantity: 1})
		}
	}

	handle.Throttle(context.Background(), Request{Key: "A", Policy: policy, Quantity: 1})
	deny("A", 5)
	handle.Throttle(context.Background(), Request{Key: "B", Policy: policy, Quantity: 1})
	deny("B", 3)
	handle.Throttle(context.Background(), Request{Key: "C", Policy: policy, Quantity: 1})
	deny("C", 2)
	handle.Throttle(context.Background(), Request{Key: "D", Policy: policy, Quantity: 1})
	deny("D", 1)

	top := actor.Metrics().TopDenied()
	if len(top) != 3 {
		t.Fatalf("got %d tracked keys, want 3: %+v", len(top), top)
	}
}

func TestHandleThrottleBackpressure(t *testing.T) {
	// Build a Handle directly over a queue with no Actor draining it, so
	// the one slot fills immediately and a second send must fail fast
	// rather than block.
	queue := make(chan command, 1)
	stopCh := make(chan struct{})
	state := &atomic.Int32{}
	state.Store(int32(stateRunning))
	h := &Handle{queue: queue, stopCh: stopCh, state: state}

	queue <- command{req: Request{Key: "filler"}, reply: make(chan reply, 1)}

	policy := Policy{MaxBurst: 1, CountPerPeriod: 1, PeriodSeconds: 1}
	_, err := h.Throttle(context.Background(), Request{Key: "k", Policy: policy, Quantity: 1})
	if !errors.Is(err, ErrBackpressure) {
		t.Fatalf("got %v, want ErrBackpressure", err)
	}
}

func mustShutdown(t *testing.T, a *Actor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
