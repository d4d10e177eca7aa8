package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker is a Redis SETNX lock used to keep concurrent workers from
// draining the same webhook delivery batch. The token ties a release to
// the acquisition that created it, so an expired lock is never deleted
// out from under its new holder.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
}

func (l Locker) tryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// WithLock runs fn while holding key, retrying the acquire until the
// context is cancelled. The lock is released when fn returns, error or
// not.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}

	for {
		token, ok, err := l.tryAcquire(ctx, key, ttl)
		if err != nil {
			return err
		}
		if ok {
			defer l.release(context.Background(), key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryLock is the non-blocking variant: one acquire attempt, and ok=false
// with a nil release when the lock is held elsewhere. The worker's poll
// tick uses this to skip a cycle instead of queueing behind it.
func (l Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	if l.R == nil {
		return nil, false, errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token, ok, err := l.tryAcquire(ctx, key, ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return func() { l.release(context.Background(), key, token) }, true, nil
}

func (l Locker) release(ctx context.Context, key, token string) {
	// compare-and-delete so a lock that expired and was re-acquired by
	// another worker survives this release
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	if err := l.R.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}
