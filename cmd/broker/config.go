package main

import (
	"time"

	"github.com/dmitrymomot/foundation/core/config"
)

// Config is the broker's environment-driven configuration, following the
// same struct-tag shape core/config.Load expects throughout the teacher's
// own example binaries (env tag plus envDefault).
type Config struct {
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	RedisAddr          string        `env:"REDIS_ADDR" envDefault:""`
	OutboxWorkers      int           `env:"OUTBOX_WORKERS" envDefault:"4"`
	StaleSagaThreshold time.Duration `env:"STALE_SAGA_THRESHOLD" envDefault:"24h"`
}

// loadConfig reads Config from the environment, panicking on malformed
// values the way every teacher example's main.go does with MustLoad.
func loadConfig() *Config {
	cfg := &Config{}
	config.MustLoad(cfg)
	return cfg
}
