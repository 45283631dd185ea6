package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"trivia-show"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:3001"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Redis     Redis
	Postgres  Postgres
	Game      Game
	Generator Generator
}

// Redis holds session store + pub/sub backbone configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Postgres captures connection info for the optional game-history archive.
// Leaving PG_HOST empty disables archiving entirely.
type Postgres struct {
	Host     string `env:"PG_HOST"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER"`
	Password string `env:"PG_PASSWORD"`
	Database string `env:"PG_DATABASE"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Game groups gameplay and lifecycle defaults.
type Game struct {
	DefaultInstanceID string        `env:"DEFAULT_INSTANCE_ID" envDefault:"game-instance-default"`
	AdvanceDelay      time.Duration `env:"ROUND_ADVANCE_DELAY" envDefault:"5s"`
	GameOverDelay     time.Duration `env:"GAME_OVER_DELAY" envDefault:"8s"`
	RetentionWindow   time.Duration `env:"INSTANCE_RETENTION_WINDOW" envDefault:"24h"`
	ReaperInterval    time.Duration `env:"REAPER_INTERVAL" envDefault:"1h"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT" envDefault:"2s"`
	BroadcastChannel  string        `env:"BROADCAST_CHANNEL" envDefault:"trivia:broadcast"`
}

// Generator configures the external question/quip generation service.
type Generator struct {
	URL         string        `env:"GENERATOR_URL"`
	APIKey      string        `env:"GENERATOR_API_KEY"`
	HTTPTimeout time.Duration `env:"GENERATOR_HTTP_TIMEOUT" envDefault:"6s"`
	MaxRetries  int           `env:"GENERATOR_MAX_RETRIES" envDefault:"3"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
