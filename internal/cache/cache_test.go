package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:"), mr
}

func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	var got sample
	require.ErrorIs(t, store.Get(ctx, "missing", &got), ErrMiss)

	require.NoError(t, store.Set(ctx, "k", sample{Name: "a", Count: 2}, time.Minute))
	require.NoError(t, store.Get(ctx, "k", &got))
	require.Equal(t, sample{Name: "a", Count: 2}, got)

	require.NoError(t, store.Delete(ctx, "k", "other"))
	require.ErrorIs(t, store.Get(ctx, "k", &got), ErrMiss)

	require.NoError(t, store.Set(ctx, "nonce", "abc", time.Minute))
	var nonce string
	require.NoError(t, store.Take(ctx, "nonce", &nonce))
	require.Equal(t, "abc", nonce)
	require.ErrorIs(t, store.Take(ctx, "nonce", &nonce), ErrMiss)
}

func TestRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)
	exerciseStore(t, store)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", 1, 5*time.Second))
	require.True(t, mr.Exists("test:k"))

	mr.FastForward(6 * time.Second)

	var v int
	require.ErrorIs(t, store.Get(ctx, "k", &v), ErrMiss)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", 1, 5*time.Second))

	var v int
	require.NoError(t, store.Get(ctx, "k", &v))

	now = now.Add(5 * time.Second)
	require.ErrorIs(t, store.Get(ctx, "k", &v), ErrMiss)
}
