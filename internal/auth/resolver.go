// Package auth はセッション Cookie の解決とログイン試行制限を提供します。
package auth

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/account-api/internal/tokens"
)

// Resolver はリクエストの Cookie からログイン中のユーザーを特定します。
type Resolver struct {
	tokens tokens.Store
}

// NewResolver は Resolver を作成します。
func NewResolver(store tokens.Store) *Resolver {
	return &Resolver{tokens: store}
}

// Resolve は auth_token と user_id の Cookie を検証し、ユーザー ID を返します。
// トークンが存在し、かつ user_id Cookie と同じユーザーに紐づく場合のみ ok が true になります。
// ストアの障害は err として返します。
func (r *Resolver) Resolve(c *gin.Context) (userID string, ok bool, err error) {
	token, err := c.Cookie(CookieAuthToken)
	if err != nil || token == "" {
		return "", false, nil
	}
	claimed, err := c.Cookie(CookieUserID)
	if err != nil || claimed == "" {
		return "", false, nil
	}

	owner, err := r.tokens.Lookup(c.Request.Context(), token)
	if errors.Is(err, tokens.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if owner != claimed {
		return "", false, nil
	}
	return owner, true, nil
}
