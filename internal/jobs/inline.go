package jobs

import (
	"context"

	"github.com/yourusername/account-api/internal/tokens"
)

// InlinePurger はキューを使わずにその場でトークンを削除します。
// QUEUE_REDIS_URL が未設定の場合に使います。
type InlinePurger struct {
	tokens tokens.Store
}

// NewInlinePurger は InlinePurger を作成します。
func NewInlinePurger(store tokens.Store) *InlinePurger {
	return &InlinePurger{tokens: store}
}

// PurgeSessions はユーザーの全トークンを削除します。
func (p *InlinePurger) PurgeSessions(ctx context.Context, userID string) error {
	return p.tokens.DeleteByUser(ctx, userID)
}
