package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "reports:version"

// Cache stores rendered trial balances in Redis, keyed by a version
// counter that posting bumps. Stale versions age out via TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a report cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Invalidate bumps the version counter so subsequent reads miss.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

// GetTrialBalance returns a cached report for the as-of date, if any.
func (c *Cache) GetTrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, bool) {
	if c == nil || c.client == nil {
		return TrialBalance{}, false
	}
	key, err := c.key(ctx, asOf)
	if err != nil {
		return TrialBalance{}, false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return TrialBalance{}, false
	}
	var tb TrialBalance
	if err := json.Unmarshal(payload, &tb); err != nil {
		return TrialBalance{}, false
	}
	return tb, true
}

// SetTrialBalance caches a rendered report.
func (c *Cache) SetTrialBalance(ctx context.Context, asOf time.Time, tb TrialBalance) {
	if c == nil || c.client == nil {
		return
	}
	key, err := c.key(ctx, asOf)
	if err != nil {
		return
	}
	payload, err := json.Marshal(tb)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, payload, c.ttl).Err()
}

func (c *Cache) key(ctx context.Context, asOf time.Time) (string, error) {
	version, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("reports:tb:%d:%s", version, asOf.Format("2006-01-02")), nil
}
