//go:build integration

package database_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/account-api/internal/database"
	"github.com/yourusername/account-api/internal/tokens"
	"github.com/yourusername/account-api/internal/users"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("accounts_test"),
		postgres.WithUsername("accounts"),
		postgres.WithPassword("accounts"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		panic(err)
	}
	defer func() { _ = container.Terminate(context.Background()) }()

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	migrator, err := database.NewMigrator(dbURL)
	if err != nil {
		panic(err)
	}
	if err := migrator.Up(); err != nil {
		panic(err)
	}
	version, dirty, err := migrator.Version()
	if err != nil || dirty || version != 2 {
		panic("unexpected migration state")
	}
	_ = migrator.Close()

	testPool, err = database.Connect(ctx, dbURL)
	if err != nil {
		panic(err)
	}
	defer testPool.Close()

	return m.Run()
}

func TestPostgresStoresLifecycle(t *testing.T) {
	ctx := context.Background()
	userStore := users.NewPostgresStore(testPool, users.NewBcryptHasher(bcrypt.MinCost))
	tokenStore := tokens.NewPostgresStore(testPool, time.Hour)

	id, err := userStore.Create(ctx, "integration", "password-123")
	require.NoError(t, err)

	_, err = userStore.Create(ctx, "integration", "password-456")
	assert.ErrorIs(t, err, users.ErrAlreadyExists)

	ok, err := userStore.MatchesPassword(ctx, id, "password-123")
	require.NoError(t, err)
	assert.True(t, ok)

	token, err := tokenStore.Create(ctx, id)
	require.NoError(t, err)

	owner, err := tokenStore.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, id, owner)

	// ユーザーを消すと sessions も連鎖削除される
	require.NoError(t, userStore.Delete(ctx, id))

	_, err = tokenStore.Lookup(ctx, token)
	assert.ErrorIs(t, err, tokens.ErrNotFound)

	_, err = userStore.Get(ctx, id)
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestPostgresTokenExpiry(t *testing.T) {
	ctx := context.Background()
	userStore := users.NewPostgresStore(testPool, users.NewBcryptHasher(bcrypt.MinCost))
	tokenStore := tokens.NewPostgresStore(testPool, time.Millisecond)

	id, err := userStore.Create(ctx, "expiring", "password-123")
	require.NoError(t, err)
	t.Cleanup(func() { _ = userStore.Delete(context.Background(), id) })

	token, err := tokenStore.Create(ctx, id)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = tokenStore.Lookup(ctx, token)
	assert.ErrorIs(t, err, tokens.ErrNotFound)

	n, err := tokenStore.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestPostgresTokenWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	userStore := users.NewPostgresStore(testPool, users.NewBcryptHasher(bcrypt.MinCost))
	tokenStore := tokens.NewPostgresStore(testPool, 0)

	id, err := userStore.Create(ctx, "forever", "password-123")
	require.NoError(t, err)
	t.Cleanup(func() { _ = userStore.Delete(context.Background(), id) })

	token, err := tokenStore.Create(ctx, id)
	require.NoError(t, err)

	_, err = tokenStore.DeleteExpired(ctx)
	require.NoError(t, err)

	owner, err := tokenStore.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, id, owner)
}
