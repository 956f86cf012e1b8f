package cellgate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const second = nanosPerSecond

// TestBurstThenThrottle reproduces the worked example: burst=2, count=1,
// period=1s, quantity=1 allows three cells back to back then denies until
// the bucket refills.
func TestBurstThenThrottle(t *testing.T) {
	policy := Policy{MaxBurst: 2, CountPerPeriod: 1, PeriodSeconds: 1}

	var state *CellState
	var outcome Outcome
	var err error

	steps := []struct {
		nowNs         int64
		wantAllowed   bool
		wantRemaining int64
	}{
		{0, true, 2},
		{second / 10, true, 1},
		{2 * second / 10, true, 0},
	}

	for _, step := range steps {
		var newState CellState
		newState, outcome, err = Decide(state, policy, 1, step.nowNs)
		if err != nil {
			t.Fatalf("at t=%d: unexpected error: %v", step.nowNs, err)
		}
		if outcome.Allowed != step.wantAllowed || outcome.Remaining != step.wantRemaining {
			t.Fatalf("at t=%d: got (allowed=%v, remaining=%d), want (allowed=%v, remaining=%d)",
				step.nowNs, outcome.Allowed, outcome.Remaining, step.wantAllowed, step.wantRemaining)
		}
		state = &newState
	}

	// t=0.3: denied, retry_after=1.
	_, outcome, err = Decide(state, policy, 1, 3*second/10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Allowed {
		t.Fatalf("expected denial at t=0.3, got allowed")
	}
	if outcome.RetryAfterS != 1 {
		t.Errorf("retry_after_s = %d, want 1", outcome.RetryAfterS)
	}

	// t=1.3: bucket has fully refilled one slot, allowed again.
	newState, outcome, err := Decide(state, policy, 1, 13*second/10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Allowed || outcome.Remaining != 0 {
		t.Fatalf("at t=1.3: got (allowed=%v, remaining=%d), want (true, 0)", outcome.Allowed, outcome.Remaining)
	}
	state = &newState
	_ = state
}

// TestPeekIdempotence: ten consecutive quantity=0 peeks at the same instant
// all return the identical outcome and never mutate tat_ns.
func TestPeekIdempotence(t *testing.T) {
	policy := Policy{MaxBurst: 5, CountPerPeriod: 10, PeriodSeconds: 60}

	var first Outcome
	for i := 0; i < 10; i++ {
		newState, outcome, err := Decide(nil, policy, 0, 0)
		if err != nil {
			t.Fatalf("peek %d: unexpected error: %v", i, err)
		}
		if !outcome.Allowed || outcome.Remaining != 6 {
			t.Fatalf("peek %d: got (allowed=%v, remaining=%d), want (true, 6)", i, outcome.Allowed, outcome.Remaining)
		}
		if newState.TatNs != 0 {
			t.Fatalf("peek %d: new state tat_ns = %d, want 0 (peek must not advance tat)", i, newState.TatNs)
		}
		if i == 0 {
			first = outcome
		} else if diff := cmp.Diff(first, outcome); diff != "" {
			t.Fatalf("peek %d outcome differs from first peek:\n%s", i, diff)
		}
	}
}

// TestClockRegression: a request stamped before the key's stored tat_ns
// must not move tat_ns backward, and must still be decided correctly
// rather than treating the regressed clock as an error.
func TestClockRegression(t *testing.T) {
	policy := Policy{MaxBurst: 2, CountPerPeriod: 1, PeriodSeconds: 1}

	state := &CellState{TatNs: 1_100_000_000, ExpiryNs: 1_100_000_000 + 3*second}

	newState, outcome, err := Decide(state, policy, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Allowed {
		t.Fatalf("expected allowed despite clock regression, got denied: %+v", outcome)
	}
	if newState.TatNs < 1_100_000_000 {
		t.Errorf("tat_ns regressed: got %d, want >= 1100000000", newState.TatNs)
	}
}

// TestOverflow: a period large enough that period_seconds * 1e9 overflows
// int64 must fail with ErrOverflow and never panic. Overflow requires
// period_seconds > MaxInt64/1e9 ≈ 9,223,372,036; spec §8 scenario 4's
// literal 2^31 (≈2.1e9) is well under that threshold and does not
// actually overflow, so it can't be used here (see DESIGN.md).
func TestOverflow(t *testing.T) {
	policy := Policy{MaxBurst: 0, CountPerPeriod: 1, PeriodSeconds: 1 << 34}

	_, _, err := Decide(nil, policy, 1, 0)
	if err == nil {
		t.Fatal("expected overflow error, got nil")
	}
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("got error %v, want ErrOverflow", err)
	}
}

func TestInvalidParameter(t *testing.T) {
	cases := []struct {
		name   string
		policy Policy
		qty    int64
	}{
		{"zero count", Policy{MaxBurst: 1, CountPerPeriod: 0, PeriodSeconds: 1}, 1},
		{"zero period", Policy{MaxBurst: 1, CountPerPeriod: 1, PeriodSeconds: 0}, 1},
		{"negative burst", Policy{MaxBurst: -1, CountPerPeriod: 1, PeriodSeconds: 1}, 1},
		{"negative quantity", Policy{MaxBurst: 1, CountPerPeriod: 1, PeriodSeconds: 1}, -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := Decide(nil, c.policy, c.qty, 0)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("got %v, want ErrInvalidParameter", err)
			}
		})
	}
}

// TestBurstZeroOneSlotPerInterval: with burst=0, only one cell may be
// admitted per emission interval, and a second immediate attempt is
// denied.
func TestBurstZeroOneSlotPerInterval(t *testing.T) {
	policy := Policy{MaxBurst: 0, CountPerPeriod: 1, PeriodSeconds: 1}

	newState, outcome, err := Decide(nil, policy, 1, 0)
	if err != nil || !outcome.Allowed {
		t.Fatalf("first cell should be allowed: outcome=%+v err=%v", outcome, err)
	}

	_, outcome2, err := Decide(&newState, policy, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome2.Allowed {
		t.Fatalf("immediate second cell should be denied when burst=0")
	}
}

// TestQuantityExceedsBurstPlusOneAlwaysDenied.
func TestQuantityExceedsBurstPlusOneAlwaysDenied(t *testing.T) {
	policy := Policy{MaxBurst: 2, CountPerPeriod: 1, PeriodSeconds: 1}

	_, outcome, err := Decide(nil, policy, 4, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Allowed {
		t.Fatalf("quantity > limit should always be denied")
	}
}

// TestDeniedNoCommit: a denied decision must leave the CellState
// byte-identical to what was passed in.
func TestDeniedNoCommit(t *testing.T) {
	policy := Policy{MaxBurst: 0, CountPerPeriod: 1, PeriodSeconds: 1}

	before := CellState{TatNs: second, ExpiryNs: 10 * second}
	newState, outcome, err := Decide(&before, policy, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Allowed {
		t.Fatalf("expected denial")
	}
	if diff := cmp.Diff(before, newState); diff != "" {
		t.Fatalf("denied decision mutated state:\n%s", diff)
	}
}
