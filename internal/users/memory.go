package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MemoryStore はプロセス内にユーザーを保持する Store です。開発とテストで使います。
type MemoryStore struct {
	hasher PasswordHasher

	mu     sync.RWMutex
	byID   map[string]*User
	byName map[string]string
}

// NewMemoryStore は MemoryStore を作成します。
func NewMemoryStore(hasher PasswordHasher) *MemoryStore {
	return &MemoryStore{
		hasher: hasher,
		byID:   make(map[string]*User),
		byName: make(map[string]string),
	}
}

// Exists はユーザー名が登録済みかを返します。
func (s *MemoryStore) Exists(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byName[username]
	return ok, nil
}

// Create はユーザーを作成します。重複チェックと登録はロック内で行います。
func (s *MemoryStore) Create(ctx context.Context, username, password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[username]; ok {
		return "", oops.Code("USER_ALREADY_EXISTS").With("username", username).Wrap(ErrAlreadyExists)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[user.ID] = user
	s.byName[username] = user.ID
	return user.ID, nil
}

// Get はユーザーのコピーを返します。
func (s *MemoryStore) Get(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	copied := *user
	return &copied, nil
}

// GetIDByName はユーザー名から ID を引きます。
func (s *MemoryStore) GetIDByName(ctx context.Context, username string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return "", oops.Code("USER_NOT_FOUND").With("username", username).Wrap(ErrNotFound)
	}
	return id, nil
}

// MatchesPassword はパスワードが保存済みハッシュと一致するかを返します。
func (s *MemoryStore) MatchesPassword(ctx context.Context, id, password string) (bool, error) {
	s.mu.RLock()
	user, ok := s.byID[id]
	var hash string
	if ok {
		hash = user.PasswordHash
	}
	s.mu.RUnlock()

	if !ok {
		return false, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return s.hasher.Verify(password, hash)
}

// ChangePassword はパスワードを更新します。
func (s *MemoryStore) ChangePassword(ctx context.Context, id, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete はユーザーを削除します。
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	delete(s.byName, user.Username)
	delete(s.byID, id)
	return nil
}
