// Package config loads runtime configuration for the molecheck client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file: Options.File (the --config/-c flag) or
//     MOLECHECK_CONFIG. The extension selects the decoder.
//  3. Environment: MOLECHECK_API_URL, MOLECHECK_TIMEOUT, MOLECHECK_STORE,
//     MOLECHECK_LOG_LEVEL.
//  4. Options.Overrides, used by the CLI for explicitly set flags.
//
// # File schema
//
// Durations are strings like "10s" (JSON also accepts integer nanoseconds):
//
//	{
//	  "api_base_url": "http://127.0.0.1:8001",
//	  "request_timeout": "10s",
//	  "store_path": "~/.local/share/molecheck/session.db",
//	  "log_level": "info",
//	  "breaker": {"enabled": true, "max_failures": 5, "open_timeout": "30s"}
//	}
//
// The same keys are used in TOML and YAML files.
//
// The resulting Config is never mutated after Load returns; components
// receive the values they need at construction time.
package config
