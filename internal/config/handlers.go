package config

import "time"

// HandlersConfig holds settings for the effect handler actors (spec §4.I).
// The handlers do not read these fields, and GetFetchTimeout has no caller.
type HandlersConfig struct {
	// FetchTimeout bounds a single reflex::fetch HTTP round trip.
	FetchTimeout string `yaml:"fetch_timeout" json:"fetch_timeout,omitempty"`

	// FetchMaxConcurrentRequests caps in-flight fetch handler goroutines.
	FetchMaxConcurrentRequests int `yaml:"fetch_max_concurrent_requests" json:"fetch_max_concurrent_requests,omitempty"`
}

func defaultHandlersConfig() HandlersConfig {
	return HandlersConfig{
		FetchTimeout:               "30s",
		FetchMaxConcurrentRequests: 64,
	}
}

// GetFetchTimeout parses FetchTimeout, falling back to 30s on a bad value
// the same way the teacher's LLM timeout accessor does.
func (c *HandlersConfig) GetFetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
