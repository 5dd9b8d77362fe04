package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, ttl), mr
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, 15*24*time.Hour)

	token, err := store.Create(ctx, "user-1")
	require.NoError(t, err)

	// トークン本体は保存されない
	assert.False(t, mr.Exists(sessionKey(token)))
	assert.True(t, mr.Exists(sessionKey(Hash(token))))
	assert.Equal(t, 15*24*time.Hour, mr.TTL(sessionKey(Hash(token))))

	userID, err := store.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	require.NoError(t, store.Delete(ctx, token))
	_, err = store.Lookup(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)

	members, err := mr.Members(userSessionKey("user-1"))
	if err == nil {
		assert.NotContains(t, members, Hash(token))
	}

	assert.NoError(t, store.Delete(ctx, token))
}

func TestRedisStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)

	token, err := store.Create(ctx, "user-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Lookup(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreDeleteByUser(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Hour)

	first, err := store.Create(ctx, "user-1")
	require.NoError(t, err)
	second, err := store.Create(ctx, "user-1")
	require.NoError(t, err)
	other, err := store.Create(ctx, "user-2")
	require.NoError(t, err)

	require.NoError(t, store.DeleteByUser(ctx, "user-1"))

	_, err = store.Lookup(ctx, first)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Lookup(ctx, second)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(userSessionKey("user-1")))

	userID, err := store.Lookup(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "user-2", userID)

	// セッションがないユーザーでもエラーにならない
	assert.NoError(t, store.DeleteByUser(ctx, "nobody"))
}

func TestRedisStoreConnectionError(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Hour)
	mr.Close()

	_, err := store.Create(ctx, "user-1")
	require.Error(t, err)

	_, err = store.Lookup(ctx, "whatever")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
