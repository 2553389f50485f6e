package gatekeeper

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicateCheck is returned when a check key is registered twice.
	ErrDuplicateCheck = errors.New("duplicate check key")
	// ErrCheckNotFound is returned when a key does not resolve to a check.
	ErrCheckNotFound = errors.New("check not found")
	// ErrRegistrySealed is returned when registering after startup completed.
	ErrRegistrySealed = errors.New("check registry is sealed")
)

// Registry maps check keys to check implementations.
// It is filled once at startup, sealed, and only read afterwards.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]Check
	sealed bool
}

// NewRegistry creates an empty check registry.
func NewRegistry() *Registry {
	return &Registry{
		checks: make(map[string]Check),
	}
}

// Register adds a check to the registry.
func (r *Registry) Register(check Check) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, check.Key())
	}
	if check.Key() == "" {
		return fmt.Errorf("check key must not be empty")
	}
	if _, exists := r.checks[check.Key()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCheck, check.Key())
	}

	r.checks[check.Key()] = check
	return nil
}

// MustRegister adds a check and panics on failure. Intended for startup wiring.
func (r *Registry) MustRegister(check Check) {
	if err := r.Register(check); err != nil {
		panic(err)
	}
}

// Seal makes the registry immutable.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed returns true once Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Resolve retrieves a check by key.
func (r *Registry) Resolve(key string) (Check, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	check, ok := r.checks[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCheckNotFound, key)
	}
	return check, nil
}

// Has returns true if the key resolves to a check.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.checks[key]
	return ok
}

// Keys returns all registered check keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.checks))
	for key := range r.checks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// All returns all registered checks, sorted by key.
func (r *Registry) All() []Check {
	keys := r.Keys()

	r.mu.RLock()
	defer r.mu.RUnlock()

	checks := make([]Check, 0, len(keys))
	for _, key := range keys {
		checks = append(checks, r.checks[key])
	}
	return checks
}

// Len returns the number of registered checks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checks)
}
