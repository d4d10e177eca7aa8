package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces limiter keys so they coexist with the
// idempotency and replay-guard keys on the shared Redis instance.
const DefaultPrefix = "compras:rl:"

// Limiter is a sliding-window counter on Redis sorted sets. Each request
// lands as a uniquely-scored member; members older than the window are
// pruned on every call, so bursts drain gradually instead of resetting on
// a fixed boundary.
type Limiter struct {
	Client *redis.Client
	Prefix string
}

// Allow registers one request under key and reports whether the caller is
// still inside the limit. A nil client or non-positive limit disables
// enforcement rather than failing closed.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error) {
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}

	prefix := l.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	now := time.Now()
	reset = now.Add(window)
	bucket := prefix + key

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, bucket, "-inf", fmt.Sprintf("%f", float64(now.Add(-window).UnixNano())))
	pipe.ZAdd(ctx, bucket, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	card := pipe.ZCard(ctx, bucket)
	pipe.Expire(ctx, bucket, window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, reset, err
	}

	seen := int(card.Val())
	remaining = max - seen
	if remaining < 0 {
		remaining = 0
	}
	return seen <= max, remaining, reset, nil
}
