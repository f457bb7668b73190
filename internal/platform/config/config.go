// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv       string `env:"APP_ENV" default:"development"`
	Port         string `env:"PORT" default:"8765"`
	ProcessorURL string `env:"PROCESSOR_URL" default:"http://127.0.0.1:9090"`

	// RedisURL is optional; when empty, undo/redo history lives only in
	// memory for the lifetime of the process.
	RedisURL string `env:"REDIS_URL"`

	// SessionID namespaces the persisted history keys so multiple
	// sessions can share one Redis.
	SessionID string `env:"SESSION_ID" default:"default"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	HealthPollInterval time.Duration `env:"HEALTH_POLL_INTERVAL" default:"5s"`
	BatchChunkSize     int           `env:"BATCH_CHUNK_SIZE" default:"4"`

	MaxWebSocketClients int `env:"MAX_WEBSOCKET_CLIENTS" default:"16"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if _, err := url.ParseRequestURI(cfg.ProcessorURL); err != nil {
		return fmt.Errorf("PROCESSOR_URL must be a valid URL: %w", err)
	}

	// Chunk sizes outside 4..5 either serialize needlessly or overload the
	// processor's worker pool.
	if cfg.BatchChunkSize < 4 || cfg.BatchChunkSize > 5 {
		return fmt.Errorf("BATCH_CHUNK_SIZE must be 4 or 5, got %d", cfg.BatchChunkSize)
	}

	if cfg.HealthPollInterval < time.Second {
		return fmt.Errorf("HEALTH_POLL_INTERVAL must be at least 1s, got %s", cfg.HealthPollInterval)
	}

	return nil
}
