// Package config loads server configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      string `env:"OURHAUS_PORT" envDefault:"8080"`
	DBPath    string `env:"OURHAUS_DB_PATH" envDefault:"ourhaus.db"`
	LogLevel  string `env:"OURHAUS_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"OURHAUS_LOG_FORMAT" envDefault:"text"`
	BaseURL   string `env:"OURHAUS_BASE_URL" envDefault:"http://localhost:8080"`

	// Postmark delivery for invitation tokens. Leaving the token empty
	// disables outbound email; invitations still work, the token is just
	// returned to the inviter for manual delivery.
	PostmarkToken string `env:"OURHAUS_POSTMARK_TOKEN"`
	FromEmail     string `env:"OURHAUS_FROM_EMAIL" envDefault:"noreply@ourhaus.local"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
