package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

// RedisStore はトークンを Redis に保存します。
// session:<hash> に userID を TTL 付きで保存し、user_sessions:<userID> にハッシュの集合を保持します。
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRedisStore は RedisStore を作成します。
func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
	}
}

// Create はトークンを発行します。
func (s *RedisStore) Create(ctx context.Context, userID string) (string, error) {
	token, err := Generate()
	if err != nil {
		return "", err
	}
	hash := Hash(token)

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(hash), userID, s.ttl)
		pipe.SAdd(ctx, userSessionKey(userID), hash)
		if s.ttl > 0 {
			pipe.Expire(ctx, userSessionKey(userID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return "", oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "store session").
			With("user_id", userID).
			Wrap(err)
	}
	return token, nil
}

// Lookup はトークンに紐づく userID を返します。
func (s *RedisStore) Lookup(ctx context.Context, token string) (string, error) {
	userID, err := s.rdb.Get(ctx, sessionKey(Hash(token))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", oops.Code("TOKEN_NOT_FOUND").Wrap(ErrNotFound)
		}
		return "", oops.Code("TOKEN_LOOKUP_FAILED").
			With("operation", "get session").
			Wrap(err)
	}
	return userID, nil
}

// Delete はトークンを削除します。
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	hash := Hash(token)
	key := sessionKey(hash)

	userID, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, userSessionKey(userID), hash)
		return nil
	})
	if err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete session").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// DeleteByUser はユーザーの全トークンを削除します。
func (s *RedisStore) DeleteByUser(ctx context.Context, userID string) error {
	setKey := userSessionKey(userID)

	hashes, err := s.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "list user sessions").
			With("user_id", userID).
			Wrap(err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, hash := range hashes {
		keys = append(keys, sessionKey(hash))
	}
	keys = append(keys, setKey)

	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete user sessions").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

func sessionKey(hash string) string {
	return sessionKeyPrefix + hash
}

func userSessionKey(userID string) string {
	return userSessionKeyPrefix + userID
}
