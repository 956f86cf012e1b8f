package cellgate

// CellState is the per-key state the Store keeps between decisions.
//
// A CellState exists in the store iff now_ns <= ExpiryNs, or a cleanup pass
// has not yet observed it. A lookup that sees ExpiryNs < now_ns must treat
// the key as absent.
type CellState struct {
	// TatNs is the Theoretical Arrival Time in nanoseconds since the Unix
	// epoch: the timestamp at which the next cell would be admitted in a
	// perfectly regulated stream.
	TatNs int64
	// ExpiryNs is the wall time after which this entry may be garbage
	// collected.
	ExpiryNs int64
}

// Policy is the per-request rate-limit policy. It is never stored; only
// CellState is persisted per key.
type Policy struct {
	// MaxBurst is the maximum burst capacity (>= 0).
	MaxBurst int64
	// CountPerPeriod is the number of cells admitted per Period (> 0).
	CountPerPeriod int64
	// PeriodSeconds is the length of one period, in seconds (> 0).
	PeriodSeconds int64
}

// Outcome is the result of a single rate-limit decision.
type Outcome struct {
	Allowed bool
	// Limit is MaxBurst + 1.
	Limit int64
	// Remaining is the number of cells that could still be admitted right
	// now, in [0, Limit].
	Remaining int64
	// RetryAfterS is the number of seconds until the request could
	// succeed; 0 if Allowed.
	RetryAfterS int64
	// ResetAfterS is the number of seconds until the cell fully refills to
	// Limit.
	ResetAfterS int64
}
