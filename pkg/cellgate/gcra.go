package cellgate

import "math"

const nanosPerSecond int64 = 1_000_000_000

// Decide is the GCRA kernel: a pure function of the current CellState and
// the request parameters. It never mutates state; callers that want to
// observe an allowed decision must store NewState themselves (the Actor
// does this via Store.Insert).
//
// state may be nil, meaning no prior (non-expired) entry was found for the
// key; this is equivalent to the Store's synthetic default of
// {TatNs: nowNs, ExpiryNs: 0}.
func Decide(state *CellState, policy Policy, quantity int64, nowNs int64) (CellState, Outcome, error) {
	if policy.CountPerPeriod <= 0 || policy.PeriodSeconds <= 0 || policy.MaxBurst < 0 || quantity < 0 {
		return CellState{}, Outcome{}, newErr(KindInvalidParameter, "count_per_period, period_seconds must be > 0; max_burst, quantity must be >= 0")
	}

	periodNs, overflow := mulNonNeg(policy.PeriodSeconds, nanosPerSecond)
	if overflow {
		return CellState{}, Outcome{}, newErr(KindOverflow, "period_seconds * 1e9 overflows int64")
	}
	emissionIntervalNs := periodNs / policy.CountPerPeriod
	limit := policy.MaxBurst + 1

	// The delay-variation tolerance spans the full limit (not just the
	// burst-above-one), so that a cold key can absorb exactly `limit`
	// cells back to back before the allow/deny boundary is crossed. See
	// DESIGN.md for why this deviates from a literal max_burst-only
	// reading of the tolerance.
	dvtNs, overflow := mulNonNeg(emissionIntervalNs, limit)
	if overflow {
		return CellState{}, Outcome{}, newErr(KindOverflow, "emission_interval * limit overflows int64")
	}

	tat := nowNs
	if state != nil && state.ExpiryNs >= nowNs {
		tat = state.TatNs
	}

	increment, overflow := mulNonNeg(emissionIntervalNs, quantity)
	if overflow {
		return CellState{}, Outcome{}, newErr(KindOverflow, "emission_interval * quantity overflows int64")
	}

	base := tat
	if nowNs > base {
		base = nowNs
	}
	newTat, overflow := addNonNeg(base, increment)
	if overflow {
		return CellState{}, Outcome{}, newErr(KindOverflow, "new tat overflows int64")
	}

	allowAt := newTat - dvtNs
	allowed := nowNs >= allowAt

	var newState CellState
	tatEffective := tat
	if allowed {
		tatEffective = newTat
		newState = CellState{TatNs: newTat, ExpiryNs: newTat + dvtNs}
	} else if state != nil {
		newState = *state
	} else {
		newState = CellState{TatNs: tat, ExpiryNs: 0}
	}

	var remaining int64
	if emissionIntervalNs > 0 {
		roomNs := dvtNs - (tatEffective - nowNs)
		if roomNs > 0 {
			remaining = roomNs / emissionIntervalNs
		}
		if remaining < 0 {
			remaining = 0
		}
		if remaining > limit {
			remaining = limit
		}
	}

	var retryAfterS int64
	if !allowed {
		retryAfterS = ceilDiv(allowAt-nowNs, nanosPerSecond)
		if retryAfterS < 0 {
			retryAfterS = 0
		}
	}

	resetFromNowNs := tatEffective - nowNs
	if resetFromNowNs < 0 {
		resetFromNowNs = 0
	}
	resetAfterS := ceilDiv(resetFromNowNs, nanosPerSecond)

	return newState, Outcome{
		Allowed:     allowed,
		Limit:       limit,
		Remaining:   remaining,
		RetryAfterS: retryAfterS,
		ResetAfterS: resetAfterS,
	}, nil
}

// mulNonNeg multiplies two non-negative int64 values, reporting overflow
// instead of wrapping. Both inputs are guaranteed non-negative by the
// kernel's precondition checks.
func mulNonNeg(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	if a > math.MaxInt64/b {
		return 0, true
	}
	return a * b, false
}

// addNonNeg adds two non-negative int64 values, reporting overflow instead
// of wrapping.
func addNonNeg(a, b int64) (int64, bool) {
	if b > math.MaxInt64-a {
		return 0, true
	}
	return a + b, false
}

// ceilDiv computes ceil(a/b) for non-negative a and positive b using
// integer arithmetic only.
func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
