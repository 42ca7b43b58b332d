// Package config loads replay configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	App    AppConfig    `envPrefix:"APP_"`
	Replay ReplayConfig `envPrefix:"REPLAY_"`
	Feed   FeedConfig   `envPrefix:"FEED_"`
}

// AppConfig covers logging and observability.
type AppConfig struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DiagPath    string `env:"DIAG_PATH"` // empty selects the temp-dir default
	MetricsAddr string `env:"METRICS_ADDR"`
}

// ReplayConfig covers the simulation inputs.
type ReplayConfig struct {
	Files   []string `env:"FILES" envSeparator:","`
	Exch    uint8    `env:"EXCH" envDefault:"1"`
	Symbol  uint16   `env:"SYMBOL" envDefault:"1"`
	Latency uint64   `env:"LATENCY_US" envDefault:"0"`
}

// FeedConfig covers the live adapter.
type FeedConfig struct {
	URL     string   `env:"URL"`
	Markets []string `env:"MARKETS" envSeparator:"," envDefault:"BTC-PERP"`
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
