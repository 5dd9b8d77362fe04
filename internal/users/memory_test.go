package users

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(plainHasher{})

	exists, err := store.Exists(ctx, "alice12")
	require.NoError(t, err)
	assert.False(t, exists)

	id, err := store.Create(ctx, "alice12", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	exists, err = store.Exists(ctx, "alice12")
	require.NoError(t, err)
	assert.True(t, exists)

	gotID, err := store.GetIDByName(ctx, "alice12")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	user, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice12", user.Username)
	assert.Equal(t, "hashed:password123", user.PasswordHash)

	ok, err := store.MatchesPassword(ctx, id, "password123")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.ChangePassword(ctx, id, "newpassword456"))
	ok, err = store.MatchesPassword(ctx, id, "password123")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.MatchesPassword(ctx, id, "newpassword456")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	exists, err = store.Exists(ctx, "alice12")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(plainHasher{})

	_, err := store.Create(ctx, "alice12", "password123")
	require.NoError(t, err)

	_, err = store.Create(ctx, "alice12", "password456")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMemoryStoreConcurrentCreateSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(plainHasher{})

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Create(ctx, "racer", "password123"); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestMemoryStoreMissingUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(plainHasher{})

	_, err := store.GetIDByName(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.MatchesPassword(ctx, "missing", "password123")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.ChangePassword(ctx, "missing", "password123"), ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "missing"), ErrNotFound)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(plainHasher{})
	id, err := store.Create(ctx, "alice12", "password123")
	require.NoError(t, err)

	user, err := store.Get(ctx, id)
	require.NoError(t, err)
	user.PasswordHash = "tampered"

	ok, err := store.MatchesPassword(ctx, id, "password123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserJSONOmitsHash(t *testing.T) {
	user := &User{ID: "id-1", Username: "alice12", PasswordHash: "secret-hash"}

	raw, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-hash")
	assert.NotContains(t, string(raw), "hash")

	raw, err = json.Marshal(user.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hash")
	assert.Contains(t, string(raw), `"username":"alice12"`)
}
