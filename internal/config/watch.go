package config

import "time"

// WatchConfig tunes `reflexd watch`'s fsnotify-driven recompile loop.
type WatchConfig struct {
	// DebounceInterval coalesces bursts of filesystem events (e.g. an
	// editor's save-as-temp-then-rename) into one recompile.
	DebounceInterval string `yaml:"debounce_interval" json:"debounce_interval,omitempty"`

	// IncludeGlobs is loaded but not read: `reflexd watch` watches only the
	// query file.
	IncludeGlobs []string `yaml:"include_globs" json:"include_globs,omitempty"`

	// ExcludeGlobs is loaded but not read, like IncludeGlobs.
	ExcludeGlobs []string `yaml:"exclude_globs" json:"exclude_globs,omitempty"`
}

func defaultWatchConfig() WatchConfig {
	return WatchConfig{
		DebounceInterval: "150ms",
		IncludeGlobs:     []string{"*.reflex"},
		ExcludeGlobs:     []string{".git/*"},
	}
}

// GetDebounceInterval parses DebounceInterval, falling back to 150ms.
func (c *WatchConfig) GetDebounceInterval() time.Duration {
	d, err := time.ParseDuration(c.DebounceInterval)
	if err != nil {
		return 150 * time.Millisecond
	}
	return d
}
