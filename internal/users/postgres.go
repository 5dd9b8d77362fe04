package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// poolIface は PostgresStore が使う pgxpool.Pool のサブセットです（pgxmock でも満たせます）。
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore は users テーブルに保存する Store です。
type PostgresStore struct {
	pool   poolIface
	hasher PasswordHasher
}

// NewPostgresStore は PostgresStore を作成します。
func NewPostgresStore(pool poolIface, hasher PasswordHasher) *PostgresStore {
	return &PostgresStore{pool: pool, hasher: hasher}
}

// Exists はユーザー名が登録済みかを返します。
func (s *PostgresStore) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, oops.Code("USER_EXISTS_FAILED").
			With("operation", "check username").
			With("username", username).
			Wrap(err)
	}
	return exists, nil
}

// Create はユーザーを作成します。一意制約違反は ErrAlreadyExists になります。
func (s *PostgresStore) Create(ctx context.Context, username, password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, username, hash, now, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return "", oops.Code("USER_ALREADY_EXISTS").With("username", username).Wrap(ErrAlreadyExists)
		}
		return "", oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", username).
			Wrap(err)
	}
	return id, nil
}

// Get はユーザーを取得します。
func (s *PostgresStore) Get(ctx context.Context, id string) (*User, error) {
	if !validID(id) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}

	user := &User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, username, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// GetIDByName はユーザー名から ID を引きます。
func (s *PostgresStore) GetIDByName(ctx context.Context, username string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id::text FROM users WHERE username = $1`,
		username,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code("USER_NOT_FOUND").With("username", username).Wrap(ErrNotFound)
	}
	if err != nil {
		return "", oops.Code("USER_GET_ID_FAILED").
			With("operation", "get user id by name").
			With("username", username).
			Wrap(err)
	}
	return id, nil
}

// MatchesPassword はパスワードが保存済みハッシュと一致するかを返します。
func (s *PostgresStore) MatchesPassword(ctx context.Context, id, password string) (bool, error) {
	if !validID(id) {
		return false, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}

	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT password_hash FROM users WHERE id = $1`,
		id,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return false, oops.Code("USER_GET_HASH_FAILED").
			With("operation", "get password hash").
			With("id", id).
			Wrap(err)
	}
	return s.hasher.Verify(password, hash)
}

// ChangePassword はパスワードを更新します。
func (s *PostgresStore) ChangePassword(ctx context.Context, id, newPassword string) error {
	if !validID(id) {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, hash, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update password").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return nil
}

// Delete はユーザーを削除します。sessions は外部キーの ON DELETE CASCADE で消えます。
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return nil
}

// validID は UUID として解釈できない ID をクエリ前に弾きます。
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
