package config

import (
	"fmt"
	"time"
)

const (
	EnvConfigFile = "MOLECHECK_CONFIG"
	EnvAPIBaseURL = "MOLECHECK_API_URL"
	EnvTimeout    = "MOLECHECK_TIMEOUT"
	EnvStorePath  = "MOLECHECK_STORE"
	EnvLogLevel   = "MOLECHECK_LOG_LEVEL"
)

// parseEnv overlays cfg with the MOLECHECK_* variables that are set.
func parseEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvAPIBaseURL); v != "" {
		cfg.APIBaseURL = v
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if v := getenv(EnvStorePath); v != "" {
		cfg.StorePath = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	return nil
}
