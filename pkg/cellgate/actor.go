package cellgate

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/cellgate/cellgate/pkg/cellgate")

// actorState is the Actor's lifecycle, per spec §4.3: Running while
// accepting and processing commands, Draining once Shutdown has been
// called but queued work remains, Terminated once the queue has drained
// and the owning goroutine has exited.
type actorState int32

const (
	stateRunning actorState = iota
	stateDraining
	stateTerminated
)

// Request is one GCRA decision request submitted to the Actor.
type Request struct {
	Key      string
	Policy   Policy
	Quantity int64

	// Transport labels which codec submitted this request, purely for
	// per-transport counters; it never affects the decision.
	Transport string
}

// command is a Request paired with the one-shot reply channel the Actor
// delivers its outcome on. Only the Actor ever sends on reply; only the
// submitting producer ever receives.
type command struct {
	req   Request
	reply chan reply
}

type reply struct {
	outcome Outcome
	err     error
}

// Handle is the producer-facing interface to a running Actor: every
// transport codec holds one Handle and never touches the Store or Clock
// directly, per spec §4.4.
type Handle struct {
	queue  chan command
	stopCh <-chan struct{}
	state  *atomic.Int32
}

// Throttle submits a request to the Actor and blocks until the decision is
// made, the context is cancelled, or the Actor is unavailable.
//
// ctx governs only the caller's wait for a reply; it never cancels a
// decision already accepted by the Actor, since the Actor never suspends
// mid-decision (spec §5). The queue is never closed (closing a channel
// producers may still be sending on would panic); Shutdown instead closes
// stopCh, which this method also selects on so a draining or terminated
// Actor fails fast with ErrUnavailable instead of blocking forever.
//
// A full queue fails fast with ErrBackpressure rather than waiting for a
// slot, per the Actor's documented failure semantics: callers are expected
// to retry, not queue up behind an already-saturated Actor.
func (h *Handle) Throttle(ctx context.Context, req Request) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "cellgate.Throttle", trace.WithAttributes(
		attribute.Int("key_len", len(req.Key)),
		attribute.String("transport", req.Transport),
	))
	defer span.End()

	if actorState(h.state.Load()) != stateRunning {
		return Outcome{}, ErrUnavailable
	}

	c := command{req: req, reply: make(chan reply, 1)}
	select {
	case h.queue <- c:
	case <-h.stopCh:
		return Outcome{}, ErrUnavailable
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	default:
		return Outcome{}, ErrBackpressure
	}

	select {
	case r := <-c.reply:
		span.SetAttributes(attribute.Bool("allowed", r.outcome.Allowed))
		if r.err != nil {
			span.RecordError(r.err)
		}
		return r.outcome, r.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Actor is the single-writer owner of a Store + Clock + Counters. It is
// the only component that ever calls Decide or touches the Store; every
// transport reaches it only through a Handle.
type Actor struct {
	store   Store
	clock   Clock
	metrics *Counters

	queue  chan command
	stopCh chan struct{}
	state  *atomic.Int32

	done chan struct{}
	wg   sync.WaitGroup
}

// ActorOption configures an Actor at construction.
type ActorOption func(*actorConfig)

type actorConfig struct {
	queueCapacity int
	metrics       *Counters
}

// WithQueueCapacity sets the Actor's command queue capacity. Default
// 10000, per spec §5.
func WithQueueCapacity(n int) ActorOption {
	return func(c *actorConfig) {
		if n > 0 {
			c.queueCapacity = n
		}
	}
}

// WithCounters attaches an externally-constructed Counters, letting the
// caller pre-configure the top-denied tracker before the Actor starts.
// If omitted, NewActor allocates a fresh Counters with the tracker
// disabled.
func WithCounters(m *Counters) ActorOption {
	return func(c *actorConfig) {
		c.metrics = m
	}
}

const defaultQueueCapacity = 10_000

// NewActor constructs and starts an Actor owning store, stamping
// timestamps from clock. The returned Handle is the only way callers
// reach it. Run the Actor's own goroutine starts immediately; call
// Shutdown to drain it.
func NewActor(store Store, clock Clock, opts ...ActorOption) (*Actor, *Handle) {
	cfg := actorConfig{queueCapacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = NewCounters()
	}

	queue := make(chan command, cfg.queueCapacity)
	stopCh := make(chan struct{})
	state := &atomic.Int32{}
	state.Store(int32(stateRunning))

	a := &Actor{
		store:   store,
		clock:   clock,
		metrics: cfg.metrics,
		queue:   queue,
		stopCh:  stopCh,
		state:   state,
		done:    make(chan struct{}),
	}
	h := &Handle{queue: queue, stopCh: stopCh, state: state}

	a.wg.Add(1)
	go a.run()

	return a, h
}

// Metrics returns the Actor's Counters for read access by an observability
// layer. Only the Actor goroutine writes to it.
func (a *Actor) Metrics() *Counters { return a.metrics }

// run is the Actor's single goroutine: it owns the Store exclusively and
// processes every command in arrival order until told to stop, then
// drains whatever is already buffered in the queue before terminating.
func (a *Actor) run() {
	defer a.wg.Done()
	defer close(a.done)
	defer a.state.Store(int32(stateTerminated))

	for {
		select {
		case c := <-a.queue:
			a.handle(c)
		case <-a.stopCh:
			a.drain()
			return
		}
	}
}

// drain processes whatever commands are already sitting in the queue at
// shutdown time without blocking for new ones, per spec §4.3's
// Draining -> Terminated transition ("finishing queued work").
func (a *Actor) drain() {
	for {
		select {
		case c := <-a.queue:
			a.handle(c)
		default:
			return
		}
	}
}

func (a *Actor) handle(c command) {
	nowNs := a.clock.NowNanos()

	a.store.MaybeCleanup(nowNs)

	state := a.store.GetOrDefault(c.req.Key, nowNs)
	newState, outcome, err := Decide(&state, c.req.Policy, c.req.Quantity, nowNs)

	if err == nil && outcome.Allowed && c.req.Quantity > 0 {
		// Peeks (quantity=0) must never mutate tat_ns per spec §4.1's tie-
		// break rule, even though Decide's returned newState is
		// mathematically a no-op for a peek; skipping the Insert makes the
		// invariant hold by construction rather than by coincidence of the
		// arithmetic.
		a.store.Insert(c.req.Key, newState)
	}

	if err == nil {
		a.metrics.recordOutcome(c.req.Transport, c.req.Key, outcome.Allowed)
	}

	select {
	case c.reply <- reply{outcome: outcome, err: err}:
	default:
		// Producer dropped the reply handle (cancelled); the decision
		// already committed above and is not rolled back, per spec §5.
	}
}

// Shutdown transitions the Actor Running -> Draining -> Terminated: it
// stops accepting new commands, finishes whatever is already queued, and
// returns once the Actor goroutine has exited or ctx is cancelled,
// whichever comes first.
func (a *Actor) Shutdown(ctx context.Context) error {
	a.state.Store(int32(stateDraining))
	close(a.stopCh)

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
