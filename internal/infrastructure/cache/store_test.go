package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/seoforge/seoforge-backend/internal/infrastructure/config"
)

func setupTestRedisStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	store, err := NewRedisStore(&config.RedisConfig{
		URL:         s.Addr(),
		DialTimeout: time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, s
}

// storeContract runs the behaviors every Store implementation must share.
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get absent key", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.IsType(t, ErrKeyNotFound{}, err)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k1", "v1", 0))

		got, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "v1", got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k2", "v2", 0))
		require.NoError(t, store.Delete(ctx, "k2"))

		_, err := store.Get(ctx, "k2")
		assert.IsType(t, ErrKeyNotFound{}, err)

		// Deleting an absent key is not an error.
		assert.NoError(t, store.Delete(ctx, "k2"))
	})

	t.Run("keys by prefix", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "pfx:a", "1", 0))
		require.NoError(t, store.Set(ctx, "pfx:b", "2", 0))
		require.NoError(t, store.Set(ctx, "other:c", "3", 0))

		keys, err := store.Keys(ctx, "pfx:")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"pfx:a", "pfx:b"}, keys)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	store, _ := setupTestRedisStore(t)
	storeContract(t, store)
}

func TestMemoryStore_TTL(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ephemeral", "v", 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, err := store.Get(ctx, "ephemeral")
	assert.IsType(t, ErrKeyNotFound{}, err)
}

func TestRedisStore_TTL(t *testing.T) {
	store, s := setupTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ephemeral", "v", time.Minute))

	// miniredis only expires on explicit clock advance.
	s.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "ephemeral")
	assert.IsType(t, ErrKeyNotFound{}, err)
}
