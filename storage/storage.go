// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/safedep/gatekeeper/core/audit"
)

// PolicyStore defines the interface for persisting raw guild policy documents.
// It satisfies gatekeeper.PolicySource.
type PolicyStore interface {
	// ReadPolicy returns the document for a guild. ok is false when none is stored.
	ReadPolicy(ctx context.Context, guildID string) (doc []byte, ok bool, err error)

	// WritePolicy replaces the document for a guild.
	WritePolicy(ctx context.Context, guildID string, doc []byte) error

	// DeletePolicy removes the document for a guild. Missing documents are not an error.
	DeletePolicy(ctx context.Context, guildID string) error

	// ListPolicies returns metadata for every stored document, ordered by guild.
	ListPolicies(ctx context.Context) ([]PolicyInfo, error)
}

// AuditStore defines the interface for storing and querying audit records.
type AuditStore interface {
	// SaveAudit persists a new audit record.
	SaveAudit(ctx context.Context, record *audit.Record) error

	// QueryAudits retrieves records matching the filter, newest first.
	QueryAudits(ctx context.Context, filter *audit.Filter) ([]*audit.Record, error)

	// CountAudits returns the number of records matching the filter.
	CountAudits(ctx context.Context, filter *audit.Filter) (int, error)

	// QueryAuditsAfter retrieves records after the given time, ordered ascending.
	// When afterID is not uuid.Nil, a compound cursor (timestamp, id) is used so
	// that records sharing the same timestamp are not skipped at batch boundaries.
	QueryAuditsAfter(ctx context.Context, after time.Time, afterID uuid.UUID, limit int) ([]*audit.Record, error)

	// DeleteAuditsBefore deletes records older than the given time.
	DeleteAuditsBefore(ctx context.Context, before time.Time) (int, error)
}

// StreamCheckpointStore defines the interface for stream sync checkpoints.
type StreamCheckpointStore interface {
	// GetStreamCheckpoint retrieves a checkpoint by target name. Returns nil if none.
	GetStreamCheckpoint(ctx context.Context, targetName string) (*StreamCheckpoint, error)

	// SaveStreamCheckpoint persists a stream checkpoint.
	SaveStreamCheckpoint(ctx context.Context, checkpoint *StreamCheckpoint) error
}

// StreamCheckpoint represents the sync state for a stream target.
type StreamCheckpoint struct {
	TargetName   string
	LastSyncedAt time.Time
	LastRecordID string
}

// PolicyInfo describes a stored policy document.
type PolicyInfo struct {
	GuildID   string    `json:"guild_id"`
	SizeBytes int       `json:"size_bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store combines all storage interfaces.
type Store interface {
	PolicyStore
	AuditStore
	StreamCheckpointStore

	// Init initializes the database schema.
	Init(ctx context.Context) error

	// Info returns information about the database.
	Info(ctx context.Context) (*DatabaseInfo, error)

	// Close closes the database connection.
	Close() error
}

// DatabaseInfo contains information about the database.
type DatabaseInfo struct {
	Path        string    `json:"path"`
	SizeBytes   int64     `json:"size_bytes"`
	PolicyCount int       `json:"policy_count"`
	AuditCount  int       `json:"audit_count"`
	OldestAudit time.Time `json:"oldest_audit,omitempty"`
	NewestAudit time.Time `json:"newest_audit,omitempty"`
}

// splitStore serves policies from a dedicated backend and everything else
// from the base store.
type splitStore struct {
	Store
	policies PolicyStore
}

// WithPolicyStore returns a Store that reads and writes policy documents
// through policies and delegates the rest to base.
func WithPolicyStore(base Store, policies PolicyStore) Store {
	if policies == nil {
		return base
	}
	return &splitStore{Store: base, policies: policies}
}

func (s *splitStore) ReadPolicy(ctx context.Context, guildID string) ([]byte, bool, error) {
	return s.policies.ReadPolicy(ctx, guildID)
}

func (s *splitStore) WritePolicy(ctx context.Context, guildID string, doc []byte) error {
	return s.policies.WritePolicy(ctx, guildID, doc)
}

func (s *splitStore) DeletePolicy(ctx context.Context, guildID string) error {
	return s.policies.DeletePolicy(ctx, guildID)
}

func (s *splitStore) ListPolicies(ctx context.Context) ([]PolicyInfo, error) {
	return s.policies.ListPolicies(ctx)
}

func (s *splitStore) Info(ctx context.Context) (*DatabaseInfo, error) {
	info, err := s.Store.Info(ctx)
	if err != nil {
		return nil, err
	}

	policies, err := s.policies.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	info.PolicyCount = len(policies)

	return info, nil
}
