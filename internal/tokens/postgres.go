package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore は sessions テーブルにトークンを保存します。
type PostgresStore struct {
	pool poolIface
	ttl  time.Duration
}

// NewPostgresStore は PostgresStore を作成します。
func NewPostgresStore(pool poolIface, ttl time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, ttl: ttl}
}

// Create はトークンを発行します。
func (s *PostgresStore) Create(ctx context.Context, userID string) (string, error) {
	token, err := Generate()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	// ttl が 0 以下の場合は他のストアと同じく期限なし（expires_at は NULL）
	var expiresAt *time.Time
	if s.ttl > 0 {
		t := now.Add(s.ttl)
		expiresAt = &t
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, Hash(token), userID, expiresAt, now)
	if err != nil {
		return "", oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", userID).
			Wrap(err)
	}
	return token, nil
}

// Lookup は期限内のトークンに紐づく userID を返します。
func (s *PostgresStore) Lookup(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx, `
		SELECT user_id::text FROM sessions
		WHERE token_hash = $1 AND (expires_at IS NULL OR expires_at > $2)
	`, Hash(token), time.Now().UTC()).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code("TOKEN_NOT_FOUND").Wrap(ErrNotFound)
	}
	if err != nil {
		return "", oops.Code("TOKEN_LOOKUP_FAILED").
			With("operation", "get session").
			Wrap(err)
	}
	return userID, nil
}

// Delete はトークンを削除します。
func (s *PostgresStore) Delete(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, Hash(token)); err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// DeleteByUser はユーザーの全トークンを削除します。
func (s *PostgresStore) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete user sessions").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// DeleteExpired は期限切れのセッション行を削除し、削除件数を返します。
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, oops.Code("TOKEN_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}
