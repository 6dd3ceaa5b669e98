package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

func newMiniredisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store, err := NewRedisStore(client)
	require.NoError(t, err)
	return mr, store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	t.Parallel()

	mr, store := newMiniredisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute))

	got, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreMissAndDelete(t *testing.T) {
	t.Parallel()

	_, store := newMiniredisStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = store.Get(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestResponseCacheOverRedis(t *testing.T) {
	t.Parallel()

	mr, store := newMiniredisStore(t)
	rc := NewResponseCache(store, 30*time.Second, WithKeyPrefix("test:"))
	ctx := context.Background()

	rc.Set(ctx, "tenant", "Opening hours?", sampleOutput("8am to 8pm"), contractx.UsageStats{Rounds: 1})
	got, ok := rc.Get(ctx, "tenant", "opening hours?")
	require.True(t, ok)
	assert.Equal(t, "8am to 8pm", got.ResponseText)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "test:resp:tenant:")

	mr.FastForward(time.Minute)
	_, ok = rc.Get(ctx, "tenant", "opening hours?")
	assert.False(t, ok)
}

func TestRedisOutageIsAMiss(t *testing.T) {
	t.Parallel()

	mr, store := newMiniredisStore(t)
	rc := NewResponseCache(store, time.Minute)
	mr.Close()

	_, ok := rc.Get(context.Background(), "tenant", "anything")
	assert.False(t, ok)
	assert.Equal(t, int64(1), rc.Stats().Misses)
}
