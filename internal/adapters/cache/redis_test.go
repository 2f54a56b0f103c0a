package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestConnectAcceptsURLAndAddress(t *testing.T) {
	t.Parallel()
	srv := miniredis.RunT(t)

	for _, raw := range []string{srv.Addr(), "redis://" + srv.Addr() + "/0"} {
		client, err := Connect(context.Background(), raw)
		require.NoError(t, err, raw)
		require.NoError(t, client.Close())
	}
}

func TestConnectFailsWhenUnreachable(t *testing.T) {
	t.Parallel()
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := Connect(context.Background(), addr)
	require.Error(t, err)
}

func TestRateLimiterAllowsUpToLimitWithinWindow(t *testing.T) {
	t.Parallel()
	srv, client := newTestClient(t)
	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "register:ip:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, ok, "hit %d", i+1)
	}
	ok, err := limiter.Allow(ctx, "register:ip:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	other, err := limiter.Allow(ctx, "register:ip:10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	require.True(t, other)

	srv.FastForward(time.Minute + time.Second)
	ok, err = limiter.Allow(ctx, "register:ip:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRateLimiterWindowIsNotExtendedByLaterHits(t *testing.T) {
	t.Parallel()
	srv, client := newTestClient(t)
	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	srv.FastForward(40 * time.Second)
	_, err = limiter.Allow(ctx, "k", 5, time.Minute)
	require.NoError(t, err)

	ttl := srv.TTL(rateLimitPrefix + "k")
	require.LessOrEqual(t, ttl, 20*time.Second)
}

func TestRevocationStoreMarksUntilExpiry(t *testing.T) {
	t.Parallel()
	srv, client := newTestClient(t)
	store := NewRedisSessionRevocationStore(client)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, store.MarkRevoked(ctx, "abc", time.Now().Add(time.Hour)))
	revoked, err = store.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	require.True(t, revoked)

	srv.FastForward(time.Hour + time.Minute)
	revoked, err = store.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevocationStoreSkipsExpiredTokens(t *testing.T) {
	t.Parallel()
	srv, client := newTestClient(t)
	store := NewRedisSessionRevocationStore(client)

	require.NoError(t, store.MarkRevoked(context.Background(), "old", time.Now().Add(-time.Minute)))
	require.False(t, srv.Exists(revokedPrefix+"old"))
}
