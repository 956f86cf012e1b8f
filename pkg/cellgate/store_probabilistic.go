package cellgate

import "math/rand/v2"

const defaultCleanupDenominator = 10_000

// ProbabilisticStore sweeps with probability 1/denominator on each
// MaybeCleanup call, giving lower and more uniformly-spread overhead than
// PeriodicStore at the cost of less predictable sweep timing. Best for
// variable workloads where exact cleanup cadence doesn't matter.
type ProbabilisticStore struct {
	data        map[string]CellState
	denominator uint64
	rng         *rand.Rand
}

// ProbabilisticStoreBuilder fluently configures a ProbabilisticStore.
type ProbabilisticStoreBuilder struct {
	capacity    int
	denominator uint64
	seed        *[32]byte
}

// NewProbabilisticStore creates a ProbabilisticStore with the given
// capacity hint and the default 1-in-10000 cleanup probability.
func NewProbabilisticStore(capacity int) *ProbabilisticStore {
	return ProbabilisticBuilder().Capacity(capacity).Build()
}

// ProbabilisticBuilder starts a fluent ProbabilisticStore configuration.
func ProbabilisticBuilder() *ProbabilisticStoreBuilder {
	return &ProbabilisticStoreBuilder{capacity: defaultCapacity, denominator: defaultCleanupDenominator}
}

// Capacity sets the expected number of unique keys.
func (b *ProbabilisticStoreBuilder) Capacity(capacity int) *ProbabilisticStoreBuilder {
	b.capacity = capacity
	return b
}

// CleanupDenominator sets N such that a sweep runs with probability 1/N on
// each operation. N must be >= 1; a denominator of 1 sweeps every call.
func (b *ProbabilisticStoreBuilder) CleanupDenominator(n uint64) *ProbabilisticStoreBuilder {
	if n == 0 {
		n = 1
	}
	b.denominator = n
	return b
}

// Seed fixes the store's PRNG seed, making sweep timing reproducible in
// tests.
func (b *ProbabilisticStoreBuilder) Seed(seed [32]byte) *ProbabilisticStoreBuilder {
	b.seed = &seed
	return b
}

// Build constructs the configured ProbabilisticStore.
func (b *ProbabilisticStoreBuilder) Build() *ProbabilisticStore {
	denom := b.denominator
	if denom == 0 {
		denom = defaultCleanupDenominator
	}
	var src rand.Source
	if b.seed != nil {
		s0, s1 := seedToUint64Pair(*b.seed)
		src = rand.NewPCG(s0, s1)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &ProbabilisticStore{
		data:        make(map[string]CellState, capacityWithOverhead(b.capacity)),
		denominator: denom,
		rng:         rand.New(src),
	}
}

func seedToUint64Pair(seed [32]byte) (uint64, uint64) {
	var a, b uint64
	for i := 0; i < 8; i++ {
		a |= uint64(seed[i]) << (8 * i)
		b |= uint64(seed[i+8]) << (8 * i)
	}
	return a, b
}

// GetOrDefault implements Store.
func (s *ProbabilisticStore) GetOrDefault(key string, nowNs int64) CellState {
	if st, ok := s.data[key]; ok && !expired(st, nowNs) {
		return st
	}
	return defaultState(nowNs)
}

// Insert implements Store.
func (s *ProbabilisticStore) Insert(key string, state CellState) {
	s.data[key] = state
}

// Len implements Store.
func (s *ProbabilisticStore) Len() int { return len(s.data) }

// MaybeCleanup implements Store. Each call draws a uniform integer in
// [0, denominator); a draw of 0 triggers a full sweep.
func (s *ProbabilisticStore) MaybeCleanup(nowNs int64) int {
	if s.rng.Uint64N(s.denominator) != 0 {
		return 0
	}
	return sweep(s.data, nowNs)
}
