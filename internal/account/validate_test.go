package account

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUser(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{name: "minimum lengths", username: "bob", password: "0123456789", want: true},
		{name: "maximum lengths", username: strings.Repeat("a", 20), password: strings.Repeat("p", 32), want: true},
		{name: "username too short", username: "bo", password: "0123456789"},
		{name: "username too long", username: strings.Repeat("a", 21), password: "0123456789"},
		{name: "password too short", username: "bob", password: "012345678"},
		{name: "password too long", username: "bob", password: strings.Repeat("p", 33)},
		{name: "empty", username: "", password: ""},
		// マルチバイト文字は1文字として数える
		{name: "multibyte username", username: "ユーザー", password: "パスワードパスワードです", want: true},
		{name: "multibyte username too short", username: "ユー", password: "0123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidUser(tt.username, tt.password))
		})
	}
}

func TestIsValidPassword(t *testing.T) {
	assert.True(t, isValidPassword("0123456789"))
	assert.False(t, isValidPassword("short"))
	assert.False(t, isValidPassword(strings.Repeat("x", 33)))
}
