// Package config loads process configuration from the environment using a
// nested-struct-plus-env-tag shape and a single Load() entry point.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the labtasker server's full configuration.
type Config struct {
	API   API
	Redis Redis

	// HeartbeatReaperPeriod is how often the reaper sweeps RUNNING tasks
	// for expired leases.
	HeartbeatReaperPeriod time.Duration `env:"HEARTBEAT_REAPER_PERIOD" envDefault:"10s"`
	// EventBufferSize bounds each event-bus subscriber's channel.
	EventBufferSize int `env:"EVENT_BUFFER_SIZE" envDefault:"1024"`
	// CASRetries bounds read-modify-write retries before CONFLICT.
	CASRetries int `env:"CAS_RETRIES" envDefault:"8"`
	// FetchScanLimit bounds the per-call PENDING candidate scan.
	FetchScanLimit int `env:"FETCH_SCAN_LIMIT" envDefault:"32"`
}

// API is the HTTP transport's own configuration.
type API struct {
	Host string `env:"API_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"API_PORT" envDefault:"8080"`
}

// Redis is the document store's connection configuration.
type Redis struct {
	Addr     string `env:"DB_URL" envDefault:"localhost:6379"`
	Password string `env:"DB_PASSWORD"`
	DB       int    `env:"DB_NUM" envDefault:"0"`
}

// Load reads Config from the environment, optionally seeded from a .env
// file in the working directory (a missing file is not an error, matching
// godotenv's own convention).
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment only")
	}
	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal().Err(err).Msg("failed to parse configuration")
	}
	return &c
}
