package users

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// plainHasher はテスト用の高速な PasswordHasher です。
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Verify(password, hash string) (bool, error) {
	return hash == "hashed:"+password, nil
}

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	ok, err := h.Verify("password123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrongpassword", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasherInvalidHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	ok, err := h.Verify("password123", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestNewBcryptHasherFallsBackToDefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).cost)
	assert.Equal(t, 12, NewBcryptHasher(12).cost)
}

func TestBcryptHasherLongMultibytePassword(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	// 30 文字だが 90 バイト
	password := strings.Repeat("パ", 30)
	require.Greater(t, len(password), 72)

	hash, err := h.Hash(password)
	require.NoError(t, err)

	ok, err := h.Verify(password, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	// 先頭 72 バイトが同じでも別のパスワードとして扱う
	ok, err = h.Verify(strings.Repeat("パ", 24)+strings.Repeat("ピ", 6), hash)
	require.NoError(t, err)
	assert.False(t, ok)
}
