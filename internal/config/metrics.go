package config

// MetricsConfig controls the Prometheus registry exposed by
// internal/metrics (spec §6.4).
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled,omitempty"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr,omitempty"` // host:port for /metrics
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:9090",
	}
}
