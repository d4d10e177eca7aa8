package notify

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// replayMarker is the value stored under a claimed delivery key; only its
// presence matters.
const replayMarker = "sent"

// RedisReplayProtector suppresses duplicate webhook sends for the same
// endpoint/event pair within a TTL, using SETNX as the claim. Without a
// client it degrades to always allowing, matching the dispatcher's
// optional wiring.
type RedisReplayProtector struct {
	Client *redis.Client
}

// Acquire claims the delivery key for ttl. False means another worker
// already sent this delivery recently.
func (r RedisReplayProtector) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, key, replayMarker, ttl).Result()
}

// Release drops the claim, letting a manual replay go out immediately.
func (r RedisReplayProtector) Release(ctx context.Context, key string) error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, key).Err()
}
