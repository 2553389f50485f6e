// Package stdout provides a stream target that writes audit records as
// JSON lines.
package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	corestream "github.com/safedep/gatekeeper/core/stream"
	"github.com/safedep/gatekeeper/stream"
)

// Target implements stream.Target by printing one JSON object per record.
type Target struct {
	name    string
	enabled bool
	w       io.Writer
}

// New creates a new stdout stream target.
func New(name string, enabled bool) *Target {
	return NewWithWriter(name, enabled, os.Stdout)
}

// NewWithWriter creates a target that writes to w instead of stdout.
func NewWithWriter(name string, enabled bool, w io.Writer) *Target {
	return &Target{
		name:    name,
		enabled: enabled,
		w:       w,
	}
}

func (t *Target) Name() string  { return t.name }
func (t *Target) Type() string  { return stream.TargetTypeStdout }
func (t *Target) Enabled() bool { return t.enabled }

func (t *Target) Send(ctx context.Context, items []corestream.StreamItem) error {
	enc := json.NewEncoder(t.w)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("failed to encode stream item: %w", err)
		}
	}

	return nil
}

func (t *Target) Close() error { return nil }

var _ corestream.Target = (*Target)(nil)
