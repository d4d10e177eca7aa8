package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Limiter{Client: client, Prefix: DefaultPrefix}, mr
}

func TestLimiterSlidingWindow(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	// a client hammering POST /compras gets two writes through
	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "10.0.0.5", window, max)
		require.NoError(t, err)
		require.True(t, allowed, "request %d should pass", i)
		require.Equal(t, max-(i+1), remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "10.0.0.5", window, max)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	// a different client is unaffected
	allowed, _, _, err = limiter.Allow(ctx, "10.0.0.6", window, max)
	require.NoError(t, err)
	require.True(t, allowed)

	mr.FastForward(window)
	allowed, _, _, err = limiter.Allow(ctx, "10.0.0.5", window, max)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "any", time.Second, 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 5, remaining)
}
