package ephemeral

import (
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// InMemoryStore is a thread-safe in-memory implementation of the Store
// interface. Expired entries are swept opportunistically on every write and
// lookup, so no background timer is needed. Suitable for single-process
// deployments; use RedisStore when the authorization request and its
// callback may land on different processes.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	nowTime func() time.Time // nowTime function (injectable for testing)
}

// InMemoryStoreOption defines a function type to modify the InMemoryStore instance.
type InMemoryStoreOption func(*InMemoryStore)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) InMemoryStoreOption {
	return func(s *InMemoryStore) {
		s.nowTime = nowFunc
	}
}

// NewInMemoryStore creates a new in-memory ephemeral store
func NewInMemoryStore(options ...InMemoryStoreOption) *InMemoryStore {
	s := &InMemoryStore{
		entries: make(map[string]entry),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

var _ Store = (*InMemoryStore)(nil)

// Set stores value under key, overwriting any existing entry.
func (s *InMemoryStore) Set(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	s.entries[key] = entry{value: value, expiresAt: s.nowTime().Add(ttl)}
	return nil
}

// Get returns the value for key if present and unexpired.
func (s *InMemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	return e.value, true
}

// Pop returns and removes the value for key if present and unexpired.
func (s *InMemoryStore) Pop(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	delete(s.entries, key)
	return e.value, true
}

// Delete removes the entry for key if present.
func (s *InMemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// sweep removes expired entries to bound memory growth. Callers must hold
// the lock.
func (s *InMemoryStore) sweep() {
	now := s.nowTime()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
