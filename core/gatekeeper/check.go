package gatekeeper

import (
	"context"

	"github.com/safedep/gatekeeper/core/member"
)

// Check defines the interface for admission checks.
//
// Implementations must be safe for concurrent use and must not keep
// per-call state. Anything derived from the configuration string, such as
// a compiled pattern, is either rebuilt on every call or cached keyed by
// the configuration value.
type Check interface {
	// Key returns the unique identifier used in policy documents.
	Key() string
	// Description returns a human readable explanation for configuration UIs.
	Description() string
	// Evaluate runs the check with the raw configuration string from the
	// policy entry. Configuration that cannot be understood yields a Report.
	Evaluate(ctx context.Context, config string, event *member.JoinEvent) Outcome
}

// CheckFunc adapts a plain function into a Check.
type CheckFunc struct {
	key         string
	description string
	fn          func(ctx context.Context, config string, event *member.JoinEvent) Outcome
}

// NewCheckFunc creates a Check from a function.
func NewCheckFunc(key, description string, fn func(ctx context.Context, config string, event *member.JoinEvent) Outcome) *CheckFunc {
	return &CheckFunc{key: key, description: description, fn: fn}
}

func (c *CheckFunc) Key() string         { return c.key }
func (c *CheckFunc) Description() string { return c.description }

func (c *CheckFunc) Evaluate(ctx context.Context, config string, event *member.JoinEvent) Outcome {
	return c.fn(ctx, config, event)
}

var _ Check = (*CheckFunc)(nil)
