package cellgate

import "time"

const (
	defaultMinIntervalNs     = int64(1 * time.Second)
	defaultMaxIntervalNs     = int64(300 * time.Second)
	defaultInitialIntervalNs = int64(10 * time.Second)
	defaultMaxOps            = 100_000

	// highWatermark/lowWatermark are expressed as removed/total ratios
	// from the previous sweep; crossing them halves or doubles the next
	// interval.
	highWatermarkNum = 1
	highWatermarkDen = 4 // 0.25
	lowWatermarkNum  = 1
	lowWatermarkDen  = 100 // 0.01
)

// AdaptiveStore self-tunes its sweep cadence from the ratio of expired
// entries the previous sweep removed: a high ratio halves the interval
// (traffic is churning, sweep more often), a low ratio doubles it (steady
// state, sweep less). Best for workloads whose traffic shape varies over
// time.
type AdaptiveStore struct {
	data map[string]CellState

	nextCleanupNs   int64
	minIntervalNs   int64
	maxIntervalNs   int64
	currentInterval int64
	maxOps          int

	opsSinceCleanup int
}

// AdaptiveStoreBuilder fluently configures an AdaptiveStore.
type AdaptiveStoreBuilder struct {
	capacity        int
	minIntervalNs   int64
	maxIntervalNs   int64
	initialInterval int64
	maxOps          int
}

// NewAdaptiveStore creates an AdaptiveStore with default thresholds.
func NewAdaptiveStore(capacity int) *AdaptiveStore {
	return AdaptiveBuilder().Capacity(capacity).Build()
}

// AdaptiveBuilder starts a fluent AdaptiveStore configuration.
func AdaptiveBuilder() *AdaptiveStoreBuilder {
	return &AdaptiveStoreBuilder{
		capacity:        defaultCapacity,
		minIntervalNs:   defaultMinIntervalNs,
		maxIntervalNs:   defaultMaxIntervalNs,
		initialInterval: defaultInitialIntervalNs,
		maxOps:          defaultMaxOps,
	}
}

// Capacity sets the expected number of unique keys.
func (b *AdaptiveStoreBuilder) Capacity(capacity int) *AdaptiveStoreBuilder {
	b.capacity = capacity
	return b
}

// MinInterval sets the floor the adaptive interval will never shrink past.
func (b *AdaptiveStoreBuilder) MinInterval(d time.Duration) *AdaptiveStoreBuilder {
	b.minIntervalNs = d.Nanoseconds()
	return b
}

// MaxInterval sets the ceiling the adaptive interval will never grow past.
func (b *AdaptiveStoreBuilder) MaxInterval(d time.Duration) *AdaptiveStoreBuilder {
	b.maxIntervalNs = d.Nanoseconds()
	return b
}

// InitialInterval sets the sweep interval the store starts at before its
// first adjustment.
func (b *AdaptiveStoreBuilder) InitialInterval(d time.Duration) *AdaptiveStoreBuilder {
	b.initialInterval = d.Nanoseconds()
	return b
}

// MaxOperations sets the operation count that forces a sweep even if the
// time-based interval hasn't elapsed yet.
func (b *AdaptiveStoreBuilder) MaxOperations(n int) *AdaptiveStoreBuilder {
	b.maxOps = n
	return b
}

// Build constructs the configured AdaptiveStore.
func (b *AdaptiveStoreBuilder) Build() *AdaptiveStore {
	minI, maxI, initI, maxOps := b.minIntervalNs, b.maxIntervalNs, b.initialInterval, b.maxOps
	if minI <= 0 {
		minI = defaultMinIntervalNs
	}
	if maxI <= 0 {
		maxI = defaultMaxIntervalNs
	}
	if initI <= 0 {
		initI = defaultInitialIntervalNs
	}
	if maxOps <= 0 {
		maxOps = defaultMaxOps
	}
	if initI < minI {
		initI = minI
	}
	if initI > maxI {
		initI = maxI
	}
	return &AdaptiveStore{
		data:            make(map[string]CellState, capacityWithOverhead(b.capacity)),
		nextCleanupNs:   -1,
		minIntervalNs:   minI,
		maxIntervalNs:   maxI,
		currentInterval: initI,
		maxOps:          maxOps,
	}
}

// GetOrDefault implements Store.
func (s *AdaptiveStore) GetOrDefault(key string, nowNs int64) CellState {
	if st, ok := s.data[key]; ok && !expired(st, nowNs) {
		return st
	}
	return defaultState(nowNs)
}

// Insert implements Store.
func (s *AdaptiveStore) Insert(key string, state CellState) {
	s.data[key] = state
}

// Len implements Store.
func (s *AdaptiveStore) Len() int { return len(s.data) }

// MaybeCleanup implements Store. It sweeps when the operation count or the
// elapsed time since the last sweep crosses their respective thresholds,
// then adjusts currentInterval from the ratio of entries the sweep removed.
func (s *AdaptiveStore) MaybeCleanup(nowNs int64) int {
	s.opsSinceCleanup++

	if s.nextCleanupNs == -1 {
		s.nextCleanupNs = nowNs + s.currentInterval
		return 0
	}

	due := s.opsSinceCleanup >= s.maxOps || nowNs >= s.nextCleanupNs
	if !due {
		return 0
	}

	totalBefore := len(s.data)
	removed := sweep(s.data, nowNs)
	s.opsSinceCleanup = 0

	var removedRatio float64
	if totalBefore > 0 {
		removedRatio = float64(removed) / float64(totalBefore)
	}

	switch {
	case removedRatio >= float64(highWatermarkNum)/float64(highWatermarkDen):
		s.currentInterval /= 2
		if s.currentInterval < s.minIntervalNs {
			s.currentInterval = s.minIntervalNs
		}
	case removedRatio <= float64(lowWatermarkNum)/float64(lowWatermarkDen):
		s.currentInterval *= 2
		if s.currentInterval > s.maxIntervalNs {
			s.currentInterval = s.maxIntervalNs
		}
	}

	s.nextCleanupNs = nowNs + s.currentInterval
	return removed
}

// CurrentInterval reports the store's current adaptive sweep interval, for
// tests and metrics.
func (s *AdaptiveStore) CurrentInterval() time.Duration {
	return time.Duration(s.currentInterval)
}
