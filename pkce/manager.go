package pkce

import (
	"time"

	"github.com/jrsteele09/go-oidc-login/ephemeral"
	"github.com/pkg/errors"
)

const (
	// VerifierTTL bounds the replay window: long enough for a human to
	// finish logging in, short enough that a stale state is soon worthless.
	VerifierTTL = 600 * time.Second

	keyPrefix = "pkce:"
)

// Manager stores code verifiers keyed by the flow's state parameter.
// Retrieval is one-time: the backing store pops the entry, so a second
// retrieval for the same state always reports absent.
type Manager struct {
	store ephemeral.Store
	ttl   time.Duration
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithTTL overrides the verifier TTL (primarily for testing).
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// NewManager creates a Manager bound to the given store.
func NewManager(store ephemeral.Store, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}

	m := &Manager{store: store, ttl: VerifierTTL}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Store saves the verifier for the given state.
func (m *Manager) Store(state, verifier string) error {
	if state == "" {
		return errors.New("[Manager.Store] state cannot be empty")
	}
	if verifier == "" {
		return errors.New("[Manager.Store] verifier cannot be empty")
	}

	if err := m.store.Set(keyPrefix+state, verifier, m.ttl); err != nil {
		return errors.Wrap(err, "[Manager.Store] store.Set")
	}
	return nil
}

// Retrieve returns and removes the verifier stored for state. It reports
// false when the state is unknown or the entry has expired.
func (m *Manager) Retrieve(state string) (string, bool) {
	if state == "" {
		return "", false
	}
	return m.store.Pop(keyPrefix + state)
}
