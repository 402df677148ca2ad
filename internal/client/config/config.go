package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/molecheck/internal/filex"
)

// Config holds runtime settings for the molecheck client. It is resolved
// once by Load and treated as read-only afterwards.
//
// Fields:
//   - APIBaseURL: scheme://host[:port][/prefix] of the diagnostics backend.
//   - RequestTimeout: upper bound for every HTTP call.
//   - StorePath: SQLite file holding the persisted session.
//   - LogLevel: debug, info, warn or error.
//   - Breaker: fail-fast settings for the HTTP transport.
type Config struct {
	APIBaseURL     string
	RequestTimeout time.Duration
	StorePath      string
	LogLevel       string
	Breaker        BreakerConfig
}

// BreakerConfig controls the circuit breaker in front of the backend.
// After MaxFailures consecutive transport or 5xx failures calls fail fast
// for OpenTimeout.
type BreakerConfig struct {
	Enabled     bool
	MaxFailures uint32
	OpenTimeout time.Duration
}

const (
	DefaultAPIBaseURL     = "http://127.0.0.1:8001"
	DefaultRequestTimeout = 10 * time.Second
	DefaultStorePath      = "~/.local/share/molecheck/session.db"
	DefaultLogLevel       = "info"
)

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = DefaultAPIBaseURL
	c.RequestTimeout = DefaultRequestTimeout
	c.StorePath = DefaultStorePath
	c.LogLevel = DefaultLogLevel
	c.Breaker = BreakerConfig{
		Enabled:     true,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// Options tells Load where to look besides the defaults.
type Options struct {
	// File is an explicit config file path. Empty means MOLECHECK_CONFIG,
	// and no file at all if that is unset too.
	File string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// Overrides is applied last; the CLI uses it for flags the user set.
	Overrides func(*Config)
}

// Load builds a Config: defaults, then the config file, then environment,
// then Overrides. The result is validated and StorePath is expanded.
func Load(opts Options) (*Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := &Config{}
	cfg.LoadDefaults()

	path := opts.File
	if path == "" {
		path = getenv(EnvConfigFile)
	}
	if path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := parseEnv(cfg, getenv); err != nil {
		return nil, err
	}

	if opts.Overrides != nil {
		opts.Overrides(cfg)
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	storePath, err := filex.ExpandHome(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	cfg.StorePath = storePath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail late, on the first
// network call.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid api base url %q: %w", c.APIBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api base url %q: want http(s)://host[:port]", c.APIBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.StorePath == "" {
		return errors.New("store path must not be empty")
	}
	if c.Breaker.Enabled && c.Breaker.MaxFailures == 0 {
		return errors.New("breaker max failures must be positive")
	}
	return nil
}
