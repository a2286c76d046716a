package rate

import (
	"context"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestMemoryLimiterEleventhRequestRejected(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l, err := NewMemoryLimiter(Config{}, func() time.Time { return now })
	require.NoError(t, err)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		d, err := l.Allow(ctx, "203.0.113.7")
		require.NoError(t, err, "request %d", i)
		require.True(t, d.Allowed)
		require.Equal(t, i, d.Count)
	}

	d, err := l.Allow(ctx, "203.0.113.7")
	require.ErrorIs(t, err, ErrRateLimited)
	require.False(t, d.Allowed)
	require.Equal(t, 11, d.Count)

	d, err = l.Allow(ctx, "198.51.100.2")
	require.NoError(t, err)
	require.Equal(t, 1, d.Count)
}

func TestMemoryLimiterRejectedRequestsStillCount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l, err := NewMemoryLimiter(Config{Window: time.Minute, Limit: 2}, func() time.Time { return now })
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = l.Allow(ctx, "k")
	}
	d, err := l.Allow(ctx, "k")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 6, d.Count)
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l, err := NewMemoryLimiter(Config{Window: time.Minute, Limit: 10}, func() time.Time { return now })
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		_, _ = l.Allow(ctx, "k")
	}

	now = start.Add(time.Minute)
	_, err = l.Allow(ctx, "k")
	require.ErrorIs(t, err, ErrRateLimited, "a window exactly W old is still current")

	now = start.Add(61 * time.Second)
	d, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 1, d.Count)
	require.Equal(t, now.Add(time.Minute), d.ResetAt)
}

func TestMemoryLimiterConcurrentCountsAreExact(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l, err := NewMemoryLimiter(Config{Window: time.Minute, Limit: 50}, func() time.Time { return now })
	require.NoError(t, err)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Allow(context.Background(), "hot"); err == nil {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(50), allowed.Load())
}

func TestMemoryLimiterPrune(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l, err := NewMemoryLimiter(Config{}, func() time.Time { return now })
	require.NoError(t, err)

	_, _ = l.Allow(context.Background(), "a")
	_, _ = l.Allow(context.Background(), "b")

	now = start.Add(2 * time.Minute)
	require.Equal(t, 2, l.Prune())
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l, err := NewRedisLimiter(rdb, Config{})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		d, err := l.Allow(ctx, "203.0.113.7")
		require.NoError(t, err, "request %d", i)
		require.Equal(t, i, d.Count)
	}

	d, err := l.Allow(ctx, "203.0.113.7")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 11, d.Count)

	_, err = l.Allow(ctx, "198.51.100.2")
	require.NoError(t, err)

	ttl := mr.TTL(keyPrefix + "203.0.113.7")
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Minute)

	mr.FastForward(61 * time.Second)

	d, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.Equal(t, 1, d.Count)
}

func TestRedisLimiterUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l, err := NewRedisLimiter(rdb, Config{})
	require.NoError(t, err)
	mr.Close()

	_, err = l.Allow(context.Background(), "k")
	require.ErrorIs(t, err, ErrRedisUnavailable)
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewMemoryLimiter(Config{Window: time.Microsecond, Limit: 1}, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewMemoryLimiter(Config{Window: time.Minute, Limit: -1}, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClientKey(t *testing.T) {
	cases := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{name: "remote addr", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "first forwarded", xff: "203.0.113.7, 10.0.0.1", remote: "10.0.0.2:80", want: "203.0.113.7"},
		{name: "skips blank entries", xff: " , 198.51.100.4", remote: "10.0.0.2:80", want: "198.51.100.4"},
		{name: "all blank falls back", xff: " , ", remote: "192.0.2.9:1", want: "192.0.2.9"},
		{name: "remote without port", remote: "192.0.2.10", want: "192.0.2.10"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/auth/login", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			require.Equal(t, tc.want, ClientKey(r))
		})
	}
}
