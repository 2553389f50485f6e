// Package nop provides a stream target that drops audit records. A sync
// against it still advances the stream cursor, which is how an operator
// skips a backlog without shipping it anywhere.
package nop

import (
	"context"
	"sync"

	"github.com/safedep/dry/log"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	corestream "github.com/safedep/gatekeeper/core/stream"
	"github.com/safedep/gatekeeper/stream"
)

// Target accepts every batch and keeps a per verdict tally of what it
// dropped.
type Target struct {
	name    string
	enabled bool

	mu        sync.Mutex
	discarded map[gatekeeper.VerdictKind]int
}

// New creates a discarding target.
func New(name string, enabled bool) *Target {
	return &Target{
		name:      name,
		enabled:   enabled,
		discarded: make(map[gatekeeper.VerdictKind]int),
	}
}

func (t *Target) Name() string  { return t.name }
func (t *Target) Type() string  { return stream.TargetTypeNop }
func (t *Target) Enabled() bool { return t.enabled }

// Send drops the batch. A cancelled context rejects the batch so the
// cursor is not advanced past records the caller gave up on.
func (t *Target) Send(ctx context.Context, items []corestream.StreamItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, item := range items {
		if item.Audit == nil {
			continue
		}
		t.discarded[item.Audit.Verdict]++
	}

	log.Debugf("stream target %s discarded %d audit records", t.name, len(items))
	return nil
}

// Discarded returns how many audit records were dropped for a verdict.
func (t *Target) Discarded(verdict gatekeeper.VerdictKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.discarded[verdict]
}

func (t *Target) Close() error { return nil }

var _ corestream.Target = (*Target)(nil)
