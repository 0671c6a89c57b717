// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr   string `env:"ADDR" envDefault:":8080"`
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	// DatabaseDSN is optional; without it snapshots live in memory only.
	DatabaseDSN string `env:"DATABASE_DSN"`

	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIModel string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	TurnTimeout time.Duration `env:"TURN_TIMEOUT" envDefault:"30s"`
	MaxPlayers  int           `env:"MAX_PLAYERS" envDefault:"8"`
	MinPlayers  int           `env:"MIN_PLAYERS" envDefault:"1"`
	MaxRounds   int           `env:"MAX_ROUNDS" envDefault:"5"`

	SnapshotTTL time.Duration `env:"SNAPSHOT_TTL" envDefault:"1h"`
	GracePeriod time.Duration `env:"SESSION_GRACE_PERIOD" envDefault:"5m"`
}

func (c Config) Production() bool { return c.AppEnv == "production" }

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MinPlayers < 1 {
		return cfg, fmt.Errorf("MIN_PLAYERS must be at least 1, got %d", cfg.MinPlayers)
	}
	if cfg.MaxPlayers < cfg.MinPlayers {
		return cfg, fmt.Errorf("MAX_PLAYERS %d below MIN_PLAYERS %d", cfg.MaxPlayers, cfg.MinPlayers)
	}
	return cfg, nil
}
