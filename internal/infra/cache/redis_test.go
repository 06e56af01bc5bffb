package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "ecom:"), mr
}

func TestRedis_SetGetWithPrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	require.NoError(t, r.Set(ctx, "order:1", []byte("payload"), 30*time.Minute))

	assert.True(t, mr.Exists("ecom:order:1"))
	assert.Equal(t, 30*time.Minute, mr.TTL("ecom:order:1"))

	v, ok, err := r.Get(ctx, "order:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(v))

	mr.FastForward(31 * time.Minute)
	_, ok, err = r.Get(ctx, "order:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Delete(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	require.NoError(t, r.Set(ctx, "order:1", []byte("a"), time.Minute))
	require.NoError(t, r.Set(ctx, "user-orders:u", []byte("b"), time.Minute))

	require.NoError(t, r.Delete(ctx, "order:1", "user-orders:u", "all-orders"))
	assert.False(t, mr.Exists("ecom:order:1"))
	assert.False(t, mr.Exists("ecom:user-orders:u"))
}

func TestRedis_GetErrorWhenDown(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)
	mr.Close()

	_, ok, err := r.Get(ctx, "order:1")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := DialRedis(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	_ = client.Close()
}
