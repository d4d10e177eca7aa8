package taxcatalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeCacheKey = "taxcatalog:active"

// Cache wraps Redis helpers for the cached active-tax list.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetActive unmarshals the cached active-tax list into dst. It reports
// whether the key existed.
func (c *Cache) GetActive(ctx context.Context, dst *[]Tax) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	data, err := c.client.Get(ctx, activeCacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetActive stores the active-tax list with the configured TTL.
func (c *Cache) SetActive(ctx context.Context, taxes []Tax) error {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(taxes)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, activeCacheKey, data, c.ttl).Err()
}

// Invalidate drops the cached list after a catalog mutation.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, activeCacheKey).Err()
}
