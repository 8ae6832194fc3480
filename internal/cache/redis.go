// Package cache wraps the shared redis connection with the small JSON
// helpers the rest of the service uses.
package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a thin wrapper around a go-redis client.
type Redis struct {
	client *redis.Client
}

// Config holds redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// New connects and pings the redis server.
func New(ctx context.Context, cfg Config) (*Redis, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

// Client exposes the underlying go-redis client for callers that need
// primitives beyond the JSON helpers (rate-limit counters and the
// like).
func (r *Redis) Client() *redis.Client {
	return r.client
}

// GetJSON reads key into dest. The bool reports whether the key
// existed.
func (r *Redis) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores val under key with a TTL.
func (r *Redis) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
