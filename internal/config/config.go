// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server is the environment-driven configuration. CLI flags override it.
type Server struct {
	DBPath       string        `env:"POPGATE_DB_PATH" envDefault:"./popgate.db"`
	Port         int           `env:"POPGATE_PORT" envDefault:"8080"`
	BaseURL      string        `env:"POPGATE_BASE_URL"`
	Experiences  string        `env:"POPGATE_EXPERIENCES"`
	HistoryLimit int           `env:"POPGATE_HISTORY_LIMIT" envDefault:"100"`
	SessionTTL   time.Duration `env:"POPGATE_SESSION_TTL" envDefault:"30m"`
}

// Load parses the environment.
func Load() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
