package app

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Paths      []string // unit files or directories of them
	HostSchema string
	StatePath  string // empty disables persistence
	BaseDir    string
	Output     string // "", "json" or "yaml"

	Watch           bool
	Debounce        time.Duration
	HealthcheckPort int

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns a copy with defaults filled in.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("at least one configuration path is required")
	}
	if cfg.HostSchema == "" {
		return nil, errors.New("a host schema file is required")
	}

	switch cfg.Output {
	case "", "json", "yaml":
	default:
		return nil, fmt.Errorf("invalid output format %q: must be 'json' or 'yaml'", cfg.Output)
	}
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}

	if cfg.HealthcheckPort < 0 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	if cfg.HealthcheckPort > 0 && !cfg.Watch {
		return nil, errors.New("the healthcheck server is only available in watch mode")
	}
	if cfg.Debounce < 0 {
		return nil, fmt.Errorf("invalid debounce %s", cfg.Debounce)
	}
	return &cfg, nil
}
