package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries service configuration loaded from the environment.
type Config struct {
	Addr        string `env:"CREWDECK_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"CREWDECK_PG_DSN"`

	// AuthSecret signs session token pairs. The server refuses to issue or
	// validate sessions without it.
	AuthSecret string        `env:"CREWDECK_AUTH_SECRET"`
	AccessTTL  time.Duration `env:"CREWDECK_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"CREWDECK_REFRESH_TTL" envDefault:"336h"`

	RateBurst     int `env:"CREWDECK_RATE_BURST" envDefault:"50"`
	RatePerSecond int `env:"CREWDECK_RATE_PER_SEC" envDefault:"25"`

	// LandingPath is where authenticated users are sent when they revisit
	// the auth entry pages without a next parameter.
	LandingPath string `env:"CREWDECK_LANDING_PATH" envDefault:"/projects"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
