package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dmitrijs2005/molecheck/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape shared by the JSON, TOML and YAML
// loaders. Pointer fields distinguish "absent" from "zero" so a partial
// file only overrides what it names.
type fileConfig struct {
	APIBaseURL     *string         `json:"api_base_url" toml:"api_base_url" yaml:"api_base_url"`
	RequestTimeout *timex.Duration `json:"request_timeout" toml:"request_timeout" yaml:"request_timeout"`
	StorePath      *string         `json:"store_path" toml:"store_path" yaml:"store_path"`
	LogLevel       *string         `json:"log_level" toml:"log_level" yaml:"log_level"`
	Breaker        *fileBreaker    `json:"breaker" toml:"breaker" yaml:"breaker"`
}

type fileBreaker struct {
	Enabled     *bool           `json:"enabled" toml:"enabled" yaml:"enabled"`
	MaxFailures *uint32         `json:"max_failures" toml:"max_failures" yaml:"max_failures"`
	OpenTimeout *timex.Duration `json:"open_timeout" toml:"open_timeout" yaml:"open_timeout"`
}

// parseFile overlays cfg with the file at path. The format follows the
// extension: .json, .toml, .yaml or .yml.
func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&fc)
	case ".toml":
		_, err = toml.Decode(string(data), &fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		return fmt.Errorf("config %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	if fc.APIBaseURL != nil {
		cfg.APIBaseURL = *fc.APIBaseURL
	}
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.StorePath != nil {
		cfg.StorePath = *fc.StorePath
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if b := fc.Breaker; b != nil {
		if b.Enabled != nil {
			cfg.Breaker.Enabled = *b.Enabled
		}
		if b.MaxFailures != nil {
			cfg.Breaker.MaxFailures = *b.MaxFailures
		}
		if b.OpenTimeout != nil {
			cfg.Breaker.OpenTimeout = b.OpenTimeout.Duration
		}
	}
}
