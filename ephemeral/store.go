package ephemeral

import "time"

// Store is a TTL key-value store for short-lived, one-time-use secrets
// (PKCE verifiers, state parameters) that must survive between the
// authorization request and the callback. Implementations must be safe for
// concurrent use from multiple in-flight requests.
//
// Absence is a normal result, never an error: Get and Pop report a missing
// or expired entry through their boolean return.
type Store interface {
	// Upsert-style set: stores value under key with an absolute expiry of
	// now+ttl, overwriting any existing entry.
	Set(key, value string, ttl time.Duration) error

	// Get returns the value if present and unexpired.
	Get(key string) (string, bool)

	// Pop atomically returns and removes an unexpired value. Two concurrent
	// pops of the same key must never both succeed; this is the primitive
	// that guarantees one-time use.
	Pop(key string) (string, bool)

	// Delete removes the entry if present.
	Delete(key string) error
}
