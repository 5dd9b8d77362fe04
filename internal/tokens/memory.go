package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"
)

type memoryEntry struct {
	userID    string
	expiresAt time.Time
}

// MemoryStore はプロセス内にトークンを保持する Store です。
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStore は MemoryStore を作成します。ttl が 0 以下の場合は期限なしです。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Create はトークンを発行します。
func (s *MemoryStore) Create(ctx context.Context, userID string) (string, error) {
	token, err := Generate()
	if err != nil {
		return "", err
	}

	entry := memoryEntry{userID: userID}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[Hash(token)] = entry
	s.mu.Unlock()
	return token, nil
}

// Lookup はトークンに紐づく userID を返します。期限切れのエントリはここで削除します。
func (s *MemoryStore) Lookup(ctx context.Context, token string) (string, error) {
	key := Hash(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", oops.Code("TOKEN_NOT_FOUND").Wrap(ErrNotFound)
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return "", oops.Code("TOKEN_EXPIRED").Wrap(ErrNotFound)
	}
	return entry.userID, nil
}

// Delete はトークンを削除します。
func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.entries, Hash(token))
	s.mu.Unlock()
	return nil
}

// DeleteByUser はユーザーの全トークンを削除します。
func (s *MemoryStore) DeleteByUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if entry.userID == userID {
			delete(s.entries, key)
		}
	}
	return nil
}
