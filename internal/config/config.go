package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings, loaded from the environment.
type Config struct {
	Addr          string        `env:"CHOREWHEEL_ADDR" envDefault:":8080"`
	DBPath        string        `env:"CHOREWHEEL_DB_PATH" envDefault:"chorewheel.db"`
	LogLevel      string        `env:"CHOREWHEEL_LOG_LEVEL" envDefault:"info"`
	SweepInterval time.Duration `env:"CHOREWHEEL_SWEEP_INTERVAL" envDefault:"1m"`

	// Per-IP request limit for mutating endpoints.
	RateLimit       int           `env:"CHOREWHEEL_RATE_LIMIT" envDefault:"60"`
	RateLimitWindow time.Duration `env:"CHOREWHEEL_RATE_WINDOW" envDefault:"1m"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", cfg.SweepInterval)
	}
	return &cfg, nil
}
