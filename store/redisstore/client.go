// Package redisstore implements the outbox and inbox §6 storage contracts on
// top of Redis, as an alternative to the in-memory reference stores in
// core/outbox and core/inbox for deployments that need durability and
// cross-process visibility without standing up Postgres.
//
// Each entry is stored as a JSON blob under a per-record key; pending work
// is tracked in a sorted set scored by readiness time (created_at, or
// next_retry_at once an entry has been retried) so claiming the next batch
// is a single ZRANGEBYSCORE. Exclusive claim is implemented with a Lua
// script so the read-then-claim sequence is atomic without a client-side
// lock, matching the claim/lease contract core/outbox.Storage already
// documents for the in-memory implementation.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures a redisstore client via core/config-style env tags.
type Config struct {
	URL            string        `env:"REDIS_URL,required"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"10s"`
}

// NewClient parses cfg.URL and returns a connected go-redis client, pinging
// once under cfg.ConnectTimeout to fail fast on misconfiguration.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	return client, nil
}

// Healthcheck returns a func(ctx) error verifying the connection is alive,
// in the shape health.CheckFunc adapts into a health.Check.
func Healthcheck(client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
