// Package stream defines the contract for audit stream destinations.
package stream

import (
	"context"

	"github.com/safedep/gatekeeper/core/audit"
)

// ItemSchemaURL identifies the JSON schema of a serialized StreamItem.
const ItemSchemaURL = "https://github.com/safedep/gatekeeper/blob/main/schema/stream-item.schema.json"

// StreamItem represents a single item to be streamed to a target.
type StreamItem struct {
	Audit *audit.Record `json:"audit"`
}

// Target defines the interface for a stream destination.
type Target interface {
	// Name returns the name of the stream target.
	Name() string
	// Type returns the kind of target, such as "stdout".
	Type() string
	// Enabled returns true if the target is enabled.
	Enabled() bool
	// Send delivers the items in order. A failed Send is retried from the
	// same checkpoint on the next sync.
	Send(ctx context.Context, items []StreamItem) error
	// Close allows the target to clean up any resources.
	Close() error
}
