package config

import (
	"fmt"
	"time"

	"github.com/cellgate/cellgate/pkg/cellgate"
)

// BuildStore constructs the cellgate.Store variant named by cfg.Type,
// applying whichever of its policy-specific fields apply.
func BuildStore(cfg Store) (cellgate.Store, error) {
	switch cfg.Type {
	case "periodic":
		b := cellgate.PeriodicBuilder().Capacity(cfg.Capacity)
		if cfg.CleanupIntervalMS > 0 {
			b = b.CleanupInterval(time.Duration(cfg.CleanupIntervalMS) * time.Millisecond)
		}
		return b.Build(), nil
	case "probabilistic":
		b := cellgate.ProbabilisticBuilder().Capacity(cfg.Capacity)
		if cfg.CleanupDenominator > 0 {
			b = b.CleanupDenominator(cfg.CleanupDenominator)
		}
		return b.Build(), nil
	case "adaptive":
		b := cellgate.AdaptiveBuilder().Capacity(cfg.Capacity)
		if cfg.MinIntervalMS > 0 {
			b = b.MinInterval(time.Duration(cfg.MinIntervalMS) * time.Millisecond)
		}
		if cfg.MaxIntervalMS > 0 {
			b = b.MaxInterval(time.Duration(cfg.MaxIntervalMS) * time.Millisecond)
		}
		if cfg.InitialIntervalMS > 0 {
			b = b.InitialInterval(time.Duration(cfg.InitialIntervalMS) * time.Millisecond)
		}
		if cfg.MaxOps > 0 {
			b = b.MaxOperations(cfg.MaxOps)
		}
		return b.Build(), nil
	default:
		return nil, fmt.Errorf("config: unknown store type %q", cfg.Type)
	}
}
