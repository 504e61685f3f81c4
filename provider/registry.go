package provider

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Factory constructs a fresh client for one provider. Factories run on every
// resolution so a client never carries state between requests.
type Factory func() (Authenticator, error)

// Registry maps provider names to factories. Names are case-insensitive.
// The zero value is not usable; construct with NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	fallback  string
}

type RegistryOption func(*Registry)

// WithDefaultProvider sets the provider resolved when callers pass an empty
// name.
func WithDefaultProvider(name string) RegistryOption {
	return func(r *Registry) {
		r.fallback = strings.ToLower(name)
	}
}

func NewRegistry(options ...RegistryOption) *Registry {
	registry := &Registry{factories: make(map[string]Factory)}
	for _, option := range options {
		option(registry)
	}
	return registry
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = factory
}

// Resolve builds a client for name, or for the default provider when name is
// empty. Unknown names fail with *NotSupportedError.
func (r *Registry) Resolve(name string) (Authenticator, error) {
	r.mu.RLock()
	if name == "" {
		name = r.fallback
	}
	factory, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()

	if !ok {
		return nil, &NotSupportedError{Name: name, Registered: r.Names()}
	}

	client, err := factory()
	if err != nil {
		return nil, errors.Wrapf(err, "[Registry.Resolve] building provider %q", name)
	}
	return client, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
