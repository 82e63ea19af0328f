// Package config loads process-level configuration from environment variables.
//
// Operator settings (Jira credentials, AI endpoint, preferences) are not here:
// they live in the settings store and are editable at runtime. Everything in
// this package is fixed for the lifetime of the process.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// API surface
	ListenAddr     string `envconfig:"LISTEN_ADDR" default:":8080"`
	APIKey         string `envconfig:"API_KEY"`
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"100"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS"`

	// Settings store
	DBPath string `envconfig:"DB_PATH" default:"notesmith.db"`

	// Upstream calls
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`

	// Width of the bounded fan-outs (per-project boards, per-board sprints,
	// per-issue summarization).
	FanoutLimit int `envconfig:"FANOUT_LIMIT" default:"8"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
