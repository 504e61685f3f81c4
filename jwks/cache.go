// Package jwks fetches, caches and refreshes a provider's JSON Web Key Set
// (RFC 7517) for ID-token signature verification.
package jwks

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultTTL is how long a fetched key set is considered fresh. Key
	// rotations inside the window are picked up by the forced refresh in Key.
	DefaultTTL = time.Hour

	defaultHTTPTimeout = 30 * time.Second
	maxErrorBodyBytes  = 1024
)

// ErrKeyNotFound reports a kid that is absent even after a forced refresh.
var ErrKeyNotFound = errors.New("signing key not found")

// FetchError wraps a transport or HTTP failure while fetching the key set.
// A previously cached key set survives a failed fetch.
type FetchError struct {
	URI string
	Err error
}

func (e *FetchError) Error() string {
	return "fetching JWKS from " + e.URI + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// jwk is a single key as served by the provider. Only RSA signing keys are
// converted; other key types are skipped.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDoc struct {
	Keys []jwk `json:"keys"`
}

// Cache fetches and caches a provider's signing keys. The key map is
// replaced wholesale on every successful fetch so readers never observe a
// partially updated set; a failed fetch leaves the previous (possibly
// stale) set in place.
type Cache struct {
	jwksURI string
	client  *http.Client
	ttl     time.Duration
	nowTime func() time.Time // nowTime function (injectable for testing)

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// CacheOption defines a function type to modify the Cache instance.
type CacheOption func(*Cache)

// WithHTTPClient sets the HTTP client used for JWKS fetches.
func WithHTTPClient(client *http.Client) CacheOption {
	return func(c *Cache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTTL sets how long a fetched key set stays fresh.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) CacheOption {
	return func(c *Cache) {
		c.nowTime = nowFunc
	}
}

// NewCache creates a key cache for the given JWKS endpoint. No fetch happens
// until a key set is first requested.
func NewCache(jwksURI string, options ...CacheOption) (*Cache, error) {
	if jwksURI == "" {
		return nil, errors.New("[NewCache] jwksURI is required")
	}

	c := &Cache{
		jwksURI: jwksURI,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		ttl:     DefaultTTL,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Keys returns the current key set, fetching it when the cache is empty,
// stale, or force is set.
func (c *Cache) Keys(ctx context.Context, force bool) (map[string]*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if force || c.isStaleLocked() {
		if err := c.fetchLocked(ctx); err != nil {
			return nil, err
		}
	}

	keys := make(map[string]*rsa.PublicKey, len(c.keys))
	for kid, key := range c.keys {
		keys[kid] = key
	}
	return keys, nil
}

// Key looks up kid in the current key set. On a miss it performs at most one
// forced refresh before failing with ErrKeyNotFound, bounding the cost of a
// malicious or malformed kid. When a refresh fails, a stale-but-present key
// is still served.
func (c *Cache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fetched := false
	if c.isStaleLocked() {
		if err := c.fetchLocked(ctx); err != nil {
			// Serve stale keys for already-known kids; fail only when the
			// key truly isn't present.
			if key, ok := c.keys[kid]; ok {
				return key, nil
			}
			return nil, err
		}
		fetched = true
	}

	if key, ok := c.keys[kid]; ok {
		return key, nil
	}

	if !fetched {
		if err := c.fetchLocked(ctx); err != nil {
			return nil, err
		}
		if key, ok := c.keys[kid]; ok {
			return key, nil
		}
	}

	return nil, errors.Wrapf(ErrKeyNotFound, "kid %q", kid)
}

func (c *Cache) isStaleLocked() bool {
	return c.keys == nil || c.nowTime().Sub(c.fetchedAt) >= c.ttl
}

// fetchLocked replaces the cached key set from the JWKS endpoint. Callers
// must hold the lock. On failure the previous set is left untouched.
func (c *Cache) fetchLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURI, http.NoBody)
	if err != nil {
		return &FetchError{URI: c.jwksURI, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &FetchError{URI: c.jwksURI, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &FetchError{URI: c.jwksURI, Err: errors.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var doc jwksDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return &FetchError{URI: c.jwksURI, Err: errors.Wrap(err, "decode response")}
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		publicKey, err := k.rsaPublicKey()
		if err != nil {
			continue
		}
		keys[k.Kid] = publicKey
	}

	c.keys = keys
	c.fetchedAt = c.nowTime()
	return nil
}

// rsaPublicKey converts the JWK's modulus and exponent to a Go public key.
func (k *jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, errors.Wrap(err, "decode RSA N")
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, errors.Wrap(err, "decode RSA E")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
