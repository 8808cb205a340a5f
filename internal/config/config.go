// Package config loads server configuration from the environment, the
// way the teacher's Config does: caarlos0/env tags with defaults, an
// optional .env file via godotenv, then validation.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	Addr           string        `env:"MINIREDIS_ADDR" envDefault:":6380"`
	MaxConnections int           `env:"MINIREDIS_MAX_CONNECTIONS" envDefault:"250"`
	BackoffStart   time.Duration `env:"MINIREDIS_ACCEPT_BACKOFF_START" envDefault:"1s"`
	BackoffCeiling time.Duration `env:"MINIREDIS_ACCEPT_BACKOFF_CEILING" envDefault:"64s"`
	CommandRateRPS float64       `env:"MINIREDIS_COMMAND_RATE_RPS" envDefault:"10000"`
	CommandBurst   int           `env:"MINIREDIS_COMMAND_RATE_BURST" envDefault:"20000"`
	MetricsAddr    string        `env:"MINIREDIS_METRICS_ADDR" envDefault:":9121"`

	LogLevel  string `env:"MINIREDIS_LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"MINIREDIS_LOG_PRETTY" envDefault:"false"`
}

// Load reads configuration from a .env file (if present) and the
// environment, applies defaults, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// absence of a .env file is fine; environment variables alone suffice.
		_ = err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the loaded configuration for internally consistent
// values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("MINIREDIS_ADDR is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("MINIREDIS_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.BackoffStart <= 0 {
		return fmt.Errorf("MINIREDIS_ACCEPT_BACKOFF_START must be > 0, got %s", c.BackoffStart)
	}
	if c.BackoffCeiling < c.BackoffStart {
		return fmt.Errorf("MINIREDIS_ACCEPT_BACKOFF_CEILING (%s) must be >= MINIREDIS_ACCEPT_BACKOFF_START (%s)",
			c.BackoffCeiling, c.BackoffStart)
	}
	if c.CommandRateRPS <= 0 {
		return fmt.Errorf("MINIREDIS_COMMAND_RATE_RPS must be > 0, got %.1f", c.CommandRateRPS)
	}
	if c.CommandBurst < 1 {
		return fmt.Errorf("MINIREDIS_COMMAND_RATE_BURST must be > 0, got %d", c.CommandBurst)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("MINIREDIS_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	return nil
}
