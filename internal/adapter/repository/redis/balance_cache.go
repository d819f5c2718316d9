package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/splitledger/internal/domain"
)

// BalanceCache implements usecase.BalanceCache using one Redis hash per
// context. Fields are "{version}:{userID}", so a net computed for an older
// version is never returned for a newer one.
type BalanceCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewBalanceCache creates a new BalanceCache.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "balances:",
		ttl:    ttl,
	}
}

func (c *BalanceCache) key(contextID string) string {
	return c.prefix + contextID
}

func field(version int64, userID string) string {
	return strconv.FormatInt(version, 10) + ":" + userID
}

// GetNet returns the cached net of userID at version.
func (c *BalanceCache) GetNet(ctx context.Context, contextID string, version int64, userID string) (domain.Amount, bool, error) {
	v, err := c.client.HGet(ctx, c.key(contextID), field(version, userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return domain.Amount(v), true, nil
}

// SetNet stores the net of userID at version and refreshes the hash TTL.
func (c *BalanceCache) SetNet(ctx context.Context, contextID string, version int64, userID string, net domain.Amount) error {
	key := c.key(contextID)

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field(version, userID), int64(net))
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})

	return err
}

// InvalidateContext drops every cached net of the context.
func (c *BalanceCache) InvalidateContext(ctx context.Context, contextID string) error {
	return c.client.Del(ctx, c.key(contextID)).Err()
}
