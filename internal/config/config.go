// Package config holds reflexd's root configuration: one Config struct
// assembled from per-concern sub-structs, loaded from YAML with a
// DefaultConfig fallback, in the shape of the teacher's own config
// package (gopkg.in/yaml.v3, Load/Save/Validate/applyEnvOverrides).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all reflexd configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Arena      ArenaConfig      `yaml:"arena"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Handlers   HandlersConfig   `yaml:"handlers"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Watch      WatchConfig      `yaml:"watch"`
}

func errConfigf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "reflexd",
		Version: "0.1.0",

		Arena:      defaultArenaConfig(),
		Supervisor: defaultSupervisorConfig(),
		Handlers:   defaultHandlersConfig(),
		Metrics:    defaultMetricsConfig(),
		Logging:    defaultLoggingConfig(),
		Watch:      defaultWatchConfig(),
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// (with env overrides still applied) if the file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies the small set of environment variable
// overrides reflexd recognizes, mirroring the teacher's "secrets and
// endpoints come from the environment, everything else from YAML"
// convention.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("REFLEX_METRICS_ADDR"); addr != "" {
		c.Metrics.ListenAddr = addr
	}
	if lvl := os.Getenv("REFLEX_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
	if os.Getenv("REFLEX_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}

// Validate checks the Supervisor sub-config's invariants and that
// arena.initial_capacity is positive; the other sub-configs are not checked.
func (c *Config) Validate() error {
	if err := c.Supervisor.Validate(); err != nil {
		return err
	}
	if c.Arena.InitialCapacity <= 0 {
		return errConfigf("arena.initial_capacity must be > 0, got %d", c.Arena.InitialCapacity)
	}
	return nil
}
