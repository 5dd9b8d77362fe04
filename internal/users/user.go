// Package users はユーザーレコードの保存とパスワード検証を提供します。
package users

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound は指定したユーザーが存在しない場合に返されます。
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists はユーザー名が既に使われている場合に返されます。
	ErrAlreadyExists = errors.New("user already exists")
)

// User は保存されたユーザーレコードです。PasswordHash は JSON に出力されません。
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser はクライアントに返すユーザー情報です。
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Public はハッシュを除いたユーザー情報を返します。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Store はユーザーレコードの永続化を担います。
// パスワードは平文で受け取り、ハッシュ化して保存します。
type Store interface {
	Exists(ctx context.Context, username string) (bool, error)
	// Create はユーザーを作成して ID を返します。ユーザー名が重複している場合は ErrAlreadyExists を返します。
	Create(ctx context.Context, username, password string) (string, error)
	Get(ctx context.Context, id string) (*User, error)
	GetIDByName(ctx context.Context, username string) (string, error)
	MatchesPassword(ctx context.Context, id, password string) (bool, error)
	ChangePassword(ctx context.Context, id, newPassword string) error
	Delete(ctx context.Context, id string) error
}
