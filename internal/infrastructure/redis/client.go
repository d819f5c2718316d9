package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config for the shared client backing the balance cache and idempotency keys.
type Config struct {
	URL         string
	PoolSize    int           // 0 keeps the URL or library default
	PingTimeout time.Duration // 0 means 5s
}

// NewClient parses cfg.URL, applies overrides and checks the server answers.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.ClientName = "splitledger"
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	timeout := cfg.PingTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}

	return client, nil
}
