package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/contextkeys"
)

func testConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	clock := time.Unix(1000, 0)
	limiter := NewRateLimiter(testConfig())
	limiter.now = func() time.Time { return clock }

	allowed := 0
	for i := 0; i < 20; i++ {
		d, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		if d.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 12, allowed, "rate plus burst")

	d, err := limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "keys have separate buckets")
	assert.Equal(t, 11, d.Remaining)

	clock = clock.Add(500 * time.Millisecond)
	d, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "half a window refills half the rate")
	assert.Equal(t, 4, d.Remaining)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := time.Unix(1000, 0)
	limiter := NewRateLimiter(testConfig())
	limiter.now = func() time.Time { return clock }

	_, _ = limiter.Allow(context.Background(), "idle")
	clock = clock.Add(3 * time.Second)
	_, _ = limiter.Allow(context.Background(), "busy")
	limiter.Cleanup()

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	assert.NotContains(t, limiter.buckets, "idle")
	assert.Contains(t, limiter.buckets, "busy")
}

func newRedisLimiter(t *testing.T) (*DistributedRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDistributedRateLimiter(client, testConfig(), "test"), mr
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	limiter, mr := newRedisLimiter(t)

	for i := 0; i < 12; i++ {
		d, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
	}
	d, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 10, d.Limit)

	ttl, err := limiter.TTL(ctx, "u1")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	mr.FastForward(2 * time.Second)
	d, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "a new window starts after expiry")

	require.NoError(t, limiter.Reset(ctx, "u1"))
	assert.False(t, mr.Exists("test:u1"))
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	limiter := NewDistributedRateLimiter(client, testConfig(), "")
	mr.Close()

	_, err = limiter.Allow(context.Background(), "u1")
	assert.Error(t, err)
}

type stubLimiter struct {
	decision Decision
	err      error
	keys     []string
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("users and anonymous callers use separate limiters", func(t *testing.T) {
		users := &stubLimiter{decision: Decision{Allowed: true, Limit: 5, Remaining: 4, Reset: time.Minute}}
		anon := &stubLimiter{decision: Decision{Allowed: true, Limit: 1, Reset: time.Minute}}
		handler := NewRateLimitMiddleware(users, anon, nil).Handler(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(contextkeys.WithUserID(req.Context(), "alice"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, []string{"user:alice"}, users.keys)
		assert.Equal(t, []string{"ip:10.0.0.1"}, anon.keys)
	})

	t.Run("rejects when exhausted", func(t *testing.T) {
		limiter := &stubLimiter{decision: Decision{Allowed: false, Limit: 5, Reset: 30 * time.Second}}
		handler := NewRateLimitMiddleware(limiter, limiter, nil).Handler(next)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
		assert.JSONEq(t, `{"error":"rate limit exceeded","kind":"rate_limited"}`, rec.Body.String())
	})

	t.Run("fails open", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("redis error")}
		handler := NewRateLimitMiddleware(limiter, limiter, nil).Handler(next)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(req))
}
