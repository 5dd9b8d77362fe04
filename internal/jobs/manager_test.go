package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/account-api/internal/tokens"
)

func newTestManager(t *testing.T, store tokens.Store) *Manager {
	t.Helper()
	m, err := NewManager("redis://127.0.0.1:6379/0", store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func purgeTask(t *testing.T, userID string) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(PurgePayload{UserID: userID})
	require.NoError(t, err)
	return asynq.NewTask(TaskPurgeSessions, body)
}

func TestNewManagerRejectsBadInput(t *testing.T) {
	_, err := NewManager("redis://127.0.0.1:6379/0", nil, nil)
	require.Error(t, err)

	_, err = NewManager("http://not-redis", tokens.NewMemoryStore(time.Hour), nil)
	require.Error(t, err)
}

func TestHandlePurgeSessions(t *testing.T) {
	ctx := context.Background()
	store := tokens.NewMemoryStore(time.Hour)
	first, err := store.Create(ctx, "user-1")
	require.NoError(t, err)
	second, err := store.Create(ctx, "user-1")
	require.NoError(t, err)
	other, err := store.Create(ctx, "user-2")
	require.NoError(t, err)

	m := newTestManager(t, store)
	require.NoError(t, m.handlePurgeSessions(ctx, purgeTask(t, "user-1")))

	_, err = store.Lookup(ctx, first)
	assert.ErrorIs(t, err, tokens.ErrNotFound)
	_, err = store.Lookup(ctx, second)
	assert.ErrorIs(t, err, tokens.ErrNotFound)

	id, err := store.Lookup(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "user-2", id)
}

func TestHandlePurgeSessionsSkipsRetryOnBadPayload(t *testing.T) {
	m := newTestManager(t, tokens.NewMemoryStore(time.Hour))

	err := m.handlePurgeSessions(context.Background(), asynq.NewTask(TaskPurgeSessions, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = m.handlePurgeSessions(context.Background(), purgeTask(t, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type failingStore struct {
	tokens.Store
}

func (failingStore) DeleteByUser(ctx context.Context, userID string) error {
	return errors.New("connection refused")
}

func TestHandlePurgeSessionsRetriesStoreFailure(t *testing.T) {
	m := newTestManager(t, failingStore{})

	err := m.handlePurgeSessions(context.Background(), purgeTask(t, "user-1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestPurgeSessionsRequiresUserID(t *testing.T) {
	m := newTestManager(t, tokens.NewMemoryStore(time.Hour))
	require.Error(t, m.PurgeSessions(context.Background(), ""))
}

func TestInlinePurger(t *testing.T) {
	ctx := context.Background()
	store := tokens.NewMemoryStore(time.Hour)
	token, err := store.Create(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, NewInlinePurger(store).PurgeSessions(ctx, "user-1"))

	_, err = store.Lookup(ctx, token)
	assert.ErrorIs(t, err, tokens.ErrNotFound)
}
