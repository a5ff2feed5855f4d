package config

// SupervisorConfig holds settings for the interpreter supervisor actor
// (spec §4.H). They are validated but not read: the supervisor uses its own
// constant supervisor.MaxUpdatesWithoutGC and fixed quantile levels.
type SupervisorConfig struct {
	// MaxUpdatesWithoutGC mirrors spec §4.H's MAX_UPDATES_WITHOUT_GC: a
	// worker is GC'd once it has absorbed this many resolved rounds even
	// while its queue keeps refilling.
	MaxUpdatesWithoutGC int `yaml:"max_updates_without_gc" json:"max_updates_without_gc,omitempty"`

	// DefaultInvalidationStrategy selects "combine" or "exact" (spec §4.H
	// InvalidationStrategy) for queries that don't request one explicitly.
	DefaultInvalidationStrategy string `yaml:"default_invalidation_strategy" json:"default_invalidation_strategy,omitempty"`

	// QuantileLevels are the nearest-rank quantiles published per label
	// group (spec §4.H's dependency-count quantile metric).
	QuantileLevels []float64 `yaml:"quantile_levels" json:"quantile_levels,omitempty"`
}

func defaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		MaxUpdatesWithoutGC:         3,
		DefaultInvalidationStrategy: "combine",
		QuantileLevels:              []float64{0.50, 0.90, 0.99, 1.00},
	}
}

// Validate checks SupervisorConfig invariants.
func (c *SupervisorConfig) Validate() error {
	if c.MaxUpdatesWithoutGC < 1 {
		return errConfigf("supervisor.max_updates_without_gc must be >= 1, got %d", c.MaxUpdatesWithoutGC)
	}
	switch c.DefaultInvalidationStrategy {
	case "combine", "exact":
	default:
		return errConfigf("supervisor.default_invalidation_strategy must be \"combine\" or \"exact\", got %q", c.DefaultInvalidationStrategy)
	}
	for _, q := range c.QuantileLevels {
		if q < 0 || q > 1 {
			return errConfigf("supervisor.quantile_levels entries must be in [0, 1], got %v", q)
		}
	}
	return nil
}
