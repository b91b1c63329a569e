package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisService(t *testing.T) *RedisService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisService(client)
}

func testServiceGetSetDelete(t *testing.T, svc Service) {
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Set(ctx, "k1", []byte("v1"), 0))
	got, err := svc.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)

	exists, err := svc.Exists(ctx, "k1")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, svc.Delete(ctx, "k1"))
	exists, err = svc.Exists(ctx, "k1")
	require.NoError(t, err)
	require.False(t, exists)
}

func testServiceIncr(t *testing.T, svc Service) {
	ctx := context.Background()

	n, err := svc.Incr(ctx, "counter", 1, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = svc.Incr(ctx, "counter", 4, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	got, err := svc.GetCounter(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, int64(5), got)

	ttl, err := svc.TTL(ctx, "counter")
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}

func testServiceDeletePattern(t *testing.T, svc Service) {
	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "authz:project:1:viewer", []byte("x"), 0))
	require.NoError(t, svc.Set(ctx, "authz:project:1:admin", []byte("x"), 0))
	require.NoError(t, svc.Set(ctx, "authz:project:2:admin", []byte("x"), 0))

	n, err := svc.DeletePattern(ctx, "authz:project:1:*")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	exists, err := svc.Exists(ctx, "authz:project:2:admin")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestMemoryService(t *testing.T) {
	svc := NewMemoryService()
	testServiceGetSetDelete(t, svc)
	testServiceIncr(t, svc)
	testServiceDeletePattern(t, svc)
}

func TestMemoryServiceExpiration(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "ephemeral", []byte("v"), 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)
	_, err := svc.Get(ctx, "ephemeral")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisService(t *testing.T) {
	svc := newTestRedisService(t)
	testServiceGetSetDelete(t, svc)
	testServiceIncr(t, svc)
	testServiceDeletePattern(t, svc)
}

func TestRedisServiceHealthCheck(t *testing.T) {
	svc := newTestRedisService(t)
	require.NoError(t, svc.HealthCheck(context.Background()))
}
