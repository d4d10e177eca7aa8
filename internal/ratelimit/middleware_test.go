package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareEnforcesWriteLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	handler := Handler{
		Limiter: Limiter{Client: client},
		Config: Config{
			Key:    func(*http.Request) string { return "10.0.0.5" },
			Window: time.Second,
			Max:    1,
		},
	}
	wrapped := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/compras", nil)

	first := httptest.NewRecorder()
	wrapped.ServeHTTP(first, req.Clone(req.Context()))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	wrapped.ServeHTTP(second, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, "1", second.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestMiddlewareFailsOpenOnRedisError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	var reported error
	handler := Handler{
		Limiter: Limiter{Client: client},
		Config: Config{
			Key:    func(*http.Request) string { return "10.0.0.5" },
			Window: time.Second,
			Max:    1,
		},
		OnError: func(err error) { reported = err },
	}
	wrapped := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/compras", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Error(t, reported)
}
