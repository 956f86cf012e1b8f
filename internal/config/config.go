package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport configures one of the three wire listeners.
type Transport struct {
	Enabled          bool   `yaml:"enabled"`
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
	IdleTimeoutMS    int    `yaml:"idle_timeout_ms"`
}

func (t Transport) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

func (t Transport) RequestTimeout() time.Duration {
	if t.RequestTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(t.RequestTimeoutMS) * time.Millisecond
}

func (t Transport) IdleTimeout() time.Duration {
	if t.IdleTimeoutMS <= 0 {
		return 300 * time.Second
	}
	return time.Duration(t.IdleTimeoutMS) * time.Millisecond
}

// Transports groups the three listener configs.
type Transports struct {
	HTTP Transport `yaml:"http"`
	GRPC Transport `yaml:"grpc"`
	RESP Transport `yaml:"resp"`
}

// Store configures which cleanup policy the Actor's Store uses and its
// parameters. Only the fields relevant to Type are consulted; the rest are
// ignored.
type Store struct {
	Type     string `yaml:"type"` // "periodic" | "probabilistic" | "adaptive"
	Capacity int    `yaml:"capacity"`

	CleanupIntervalMS int `yaml:"cleanup_interval_ms"` // periodic

	CleanupDenominator uint64 `yaml:"cleanup_denominator"` // probabilistic

	MinIntervalMS     int `yaml:"min_interval_ms"`    // adaptive
	MaxIntervalMS     int `yaml:"max_interval_ms"`    // adaptive
	InitialIntervalMS int `yaml:"initial_interval_ms"` // adaptive
	MaxOps            int `yaml:"max_ops"`            // adaptive
}

// Actor configures the single-writer owner's queue.
type Actor struct {
	QueueCapacity int `yaml:"queue_capacity"`
}

// Metrics configures the Actor's counter set.
type Metrics struct {
	// TopDeniedKeysCap is a pointer so applyDefaults can tell "absent from
	// YAML" apart from an explicit 0, which disables the top-denied
	// tracker entirely (spec §6.4).
	TopDeniedKeysCap *int `yaml:"top_denied_keys_cap"`
}

// Observability configures the ambient logging/tracing/metrics-surface
// concerns that spec.md places outside the core.
type Observability struct {
	LogLevel       string `yaml:"log_level"`
	PrometheusPath string `yaml:"prometheus_path"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
}

// Root is the top-level configuration document, loaded from YAML.
type Root struct {
	Transports    Transports    `yaml:"transports"`
	Store         Store         `yaml:"store"`
	Actor         Actor         `yaml:"actor"`
	Metrics       Metrics       `yaml:"metrics"`
	Observability Observability `yaml:"observability"`
}

const maxTopDeniedKeysCap = 10_000

// Load reads and parses the YAML config at path, then fills in defaults
// for anything left unset. It returns an error if no transport ends up
// enabled, since a server with nothing listening can't do useful work.
func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Root
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Root) {
	if cfg.Transports.HTTP.Port == 0 && cfg.Transports.HTTP.Host == "" {
		cfg.Transports.HTTP.Host = "0.0.0.0"
		cfg.Transports.HTTP.Port = 8080
	}
	if cfg.Transports.GRPC.Port == 0 && cfg.Transports.GRPC.Host == "" {
		cfg.Transports.GRPC.Host = "0.0.0.0"
		cfg.Transports.GRPC.Port = 9090
	}
	if cfg.Transports.RESP.Port == 0 && cfg.Transports.RESP.Host == "" {
		cfg.Transports.RESP.Host = "0.0.0.0"
		cfg.Transports.RESP.Port = 6380
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = "periodic"
	}
	if cfg.Store.Capacity <= 0 {
		cfg.Store.Capacity = 1000
	}

	if cfg.Actor.QueueCapacity <= 0 {
		cfg.Actor.QueueCapacity = 10_000
	}

	if cfg.Metrics.TopDeniedKeysCap == nil {
		defaultCap := 100
		cfg.Metrics.TopDeniedKeysCap = &defaultCap
	}
	if *cfg.Metrics.TopDeniedKeysCap > maxTopDeniedKeysCap {
		*cfg.Metrics.TopDeniedKeysCap = maxTopDeniedKeysCap
	}
	if *cfg.Metrics.TopDeniedKeysCap < 0 {
		*cfg.Metrics.TopDeniedKeysCap = 0
	}

	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}
}

func validate(cfg *Root) error {
	if !cfg.Transports.HTTP.Enabled && !cfg.Transports.GRPC.Enabled && !cfg.Transports.RESP.Enabled {
		return fmt.Errorf("config: at least one of transports.http, transports.grpc, transports.resp must be enabled")
	}
	switch cfg.Store.Type {
	case "periodic", "probabilistic", "adaptive":
	default:
		return fmt.Errorf("config: store.type %q is not one of periodic, probabilistic, adaptive", cfg.Store.Type)
	}
	return nil
}
