// Package checks provides the built-in admission checks.
package checks

import (
	"time"

	"github.com/safedep/gatekeeper/core/gatekeeper"
)

// Check keys of the built-in checks, as used in policy documents.
const (
	KeyBlockDefaultAvatar  = "block_default_avatar"
	KeyBlockBots           = "block_bots"
	KeyMinimumCreationTime = "minimum_creation_time"
	KeyBlockAll            = "block_all"
	KeyUsernameRegex       = "username_regex"
)

// Options configures the built-in checks.
type Options struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// All returns a fresh instance of every built-in check.
func All(opts Options) []gatekeeper.Check {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return []gatekeeper.Check{
		NewBlockDefaultAvatarCheck(),
		NewBlockBotsCheck(),
		NewMinimumCreationTimeCheck(now),
		NewBlockAllCheck(),
		NewUsernameRegexCheck(),
	}
}

// Register adds every built-in check to the registry.
func Register(registry *gatekeeper.Registry, opts Options) error {
	for _, check := range All(opts) {
		if err := registry.Register(check); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRegistry returns a sealed registry holding the built-in checks.
func DefaultRegistry() *gatekeeper.Registry {
	registry := gatekeeper.NewRegistry()
	for _, check := range All(Options{}) {
		registry.MustRegister(check)
	}
	registry.Seal()
	return registry
}
