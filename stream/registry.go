// Package stream syncs the audit trail to external stream targets.
package stream

import (
	"errors"
	"sort"
	"sync"

	corestream "github.com/safedep/gatekeeper/core/stream"
)

// Target types understood by the configuration.
const (
	TargetTypeNop    = "nop"
	TargetTypeStdout = "stdout"
)

// Registry manages registered stream targets.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]corestream.Target
}

// NewRegistry creates a new stream target registry.
func NewRegistry() *Registry {
	return &Registry{
		targets: make(map[string]corestream.Target),
	}
}

// Register adds a target to the registry, replacing any target of the same name.
func (r *Registry) Register(target corestream.Target) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.targets[target.Name()] = target
}

// Get retrieves a target by name.
func (r *Registry) Get(name string) (corestream.Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target, ok := r.targets[name]
	return target, ok
}

// All returns all registered targets ordered by name.
func (r *Registry) All() []corestream.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]corestream.Target, 0, len(r.targets))
	for _, t := range r.targets {
		targets = append(targets, t)
	}

	sortTargets(targets)
	return targets
}

// Enabled returns all enabled targets ordered by name.
func (r *Registry) Enabled() []corestream.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var targets []corestream.Target
	for _, t := range r.targets {
		if t.Enabled() {
			targets = append(targets, t)
		}
	}

	sortTargets(targets)
	return targets
}

// Close closes every registered target.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, t := range r.targets {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func sortTargets(targets []corestream.Target) {
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Name() < targets[j].Name()
	})
}
