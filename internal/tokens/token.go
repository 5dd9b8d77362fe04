// Package tokens はセッショントークンの発行・検索・削除を提供します。
// トークン本体はクライアントにだけ渡し、ストアには SHA-256 ハッシュのみを保存します。
package tokens

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/samber/oops"
)

// TokenBytes はトークンの乱数バイト数です（hex で 64 文字）。
const TokenBytes = 32

// ErrNotFound はトークンが存在しないか期限切れの場合に返されます。
var ErrNotFound = errors.New("token not found")

// Store はセッショントークンの永続化を担います。
type Store interface {
	// Create は userID に紐づく新しいトークンを発行します。
	Create(ctx context.Context, userID string) (string, error)
	// Lookup はトークンに紐づく userID を返します。見つからなければ ErrNotFound を返します。
	Lookup(ctx context.Context, token string) (string, error)
	// Delete はトークンを無効化します。存在しないトークンの削除はエラーになりません。
	Delete(ctx context.Context, token string) error
	// DeleteByUser はユーザーの全トークンを無効化します。
	DeleteByUser(ctx context.Context, userID string) error
}

// Generate は暗号論的乱数からトークンを生成します。
func Generate() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// Hash はトークンの SHA-256 ハッシュを hex で返します。
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
