package config

// ArenaConfig sizes the content-addressed term heap (spec §3/4.A/4.B).
// Only InitialCapacity is validated; no component reads these fields, and
// arena.New and heap.New use their own sizes.
type ArenaConfig struct {
	// InitialCapacity is the number of nodes the arena pre-allocates on
	// construction.
	InitialCapacity int `yaml:"initial_capacity" json:"initial_capacity,omitempty"`

	// GrowthFactor multiplies capacity when the arena needs to grow.
	GrowthFactor float64 `yaml:"growth_factor" json:"growth_factor,omitempty"`

	// InternTableSize is the starting bucket count of the content-address
	// intern table (spec §4.B's "structural equality via hashing").
	InternTableSize int `yaml:"intern_table_size" json:"intern_table_size,omitempty"`
}

func defaultArenaConfig() ArenaConfig {
	return ArenaConfig{
		InitialCapacity: 4096,
		GrowthFactor:    2.0,
		InternTableSize: 1024,
	}
}
