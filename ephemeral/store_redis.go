package ephemeral

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 5 * time.Second

// RedisStore backs the Store interface with a shared Redis instance so that
// the authorization request and its callback can be handled by different
// processes. Pop maps to GETDEL, which keeps the one-time guarantee atomic
// on the server side; expiry is delegated to Redis TTLs.
type RedisStore struct {
	client  redis.Cmdable
	timeout time.Duration
}

// RedisStoreOption defines a function type to modify the RedisStore instance.
type RedisStoreOption func(*RedisStore)

// WithTimeout sets the per-operation timeout for Redis calls.
func WithTimeout(timeout time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.timeout = timeout
	}
}

// NewRedisStore creates a Redis-backed ephemeral store.
func NewRedisStore(client redis.Cmdable, options ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("[NewRedisStore] redis client is required")
	}

	s := &RedisStore{client: client, timeout: defaultRedisTimeout}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

var _ Store = (*RedisStore)(nil)

// Set stores value under key with a Redis-side TTL, overwriting any
// existing entry.
func (s *RedisStore) Set(key, value string, ttl time.Duration) error {
	ctx, cancel := s.opContext()
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore.Set] client.Set")
	}
	return nil
}

// Get returns the value for key if present and unexpired.
func (s *RedisStore) Get(key string) (string, bool) {
	ctx, cancel := s.opContext()
	defer cancel()

	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

// Pop returns and removes the value for key via GETDEL.
func (s *RedisStore) Pop(key string) (string, bool) {
	ctx, cancel := s.opContext()
	defer cancel()

	value, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

// Delete removes the entry for key if present.
func (s *RedisStore) Delete(key string) error {
	ctx, cancel := s.opContext()
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore.Delete] client.Del")
	}
	return nil
}

func (s *RedisStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
