package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingKeyPrefix = "pending_count:"

// PendingCounts caches the per-user count of pending connection requests
// behind the inbox badge. A nil *PendingCounts is a no-op cache, which lets
// tests and cache-less deployments skip Redis entirely.
type PendingCounts struct {
	cli *redis.Client
	ttl time.Duration
}

func NewPendingCounts(cli *redis.Client, ttl time.Duration) *PendingCounts {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PendingCounts{cli: cli, ttl: ttl}
}

// Get returns the cached count and whether the key was present.
func (c *PendingCounts) Get(ctx context.Context, userID string) (int64, bool, error) {
	if c == nil {
		return 0, false, nil
	}
	s, err := c.cli.Get(ctx, pendingKeyPrefix+userID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (c *PendingCounts) Set(ctx context.Context, userID string, n int64) error {
	if c == nil {
		return nil
	}
	return c.cli.Set(ctx, pendingKeyPrefix+userID, strconv.FormatInt(n, 10), c.ttl).Err()
}

// Invalidate drops the cached count after a mutation; the next read repopulates.
func (c *PendingCounts) Invalidate(ctx context.Context, userID string) error {
	if c == nil {
		return nil
	}
	return c.cli.Del(ctx, pendingKeyPrefix+userID).Err()
}
