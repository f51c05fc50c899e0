package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key used when NewRedisStore is given an empty key.
const DefaultRedisKey = "storefront:session"

// RedisStore persists the session as one encoded blob under a single Redis key, so
// Save and Clear are single-command replacements.
type RedisStore struct {
	redis redis.UniversalClient
	key   string
}

// NewRedisStore creates a [RedisStore] on the given client. key namespaces the session;
// clients sharing a Redis must use distinct keys.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{redis: client, key: key}
}

// Key returns the Redis key holding the session.
func (s *RedisStore) Key() string {
	return s.key
}

// Save encodes the session and SETs it without expiry. The refresh token outlives the
// access token, so Redis TTLs are not used to model session lifetime.
//
//	Performance: 1 Redis SET.
func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	if err := checkPair(sess); err != nil {
		return err
	}
	if sess.IsZero() {
		return s.Clear(ctx)
	}

	data, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Load reads and decodes the session. A missing key yields the zero session.
//
//	Performance: 1 Redis GET.
func (s *RedisStore) Load(ctx context.Context) (Session, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	return sess, nil
}

// Clear deletes the session key. Deleting a missing key is not an error.
//
//	Performance: 1 Redis DEL.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping returns a Redis availability check.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
