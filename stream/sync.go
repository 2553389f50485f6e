package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/safedep/dry/log"
	"github.com/safedep/gatekeeper/core/audit"
	corestream "github.com/safedep/gatekeeper/core/stream"
	"github.com/safedep/gatekeeper/storage"
)

const defaultBatchSize = 500

// Store is the persistence a Syncer reads records and checkpoints from.
type Store interface {
	QueryAuditsAfter(ctx context.Context, after time.Time, afterID uuid.UUID, limit int) ([]*audit.Record, error)
	GetStreamCheckpoint(ctx context.Context, targetName string) (*storage.StreamCheckpoint, error)
	SaveStreamCheckpoint(ctx context.Context, checkpoint *storage.StreamCheckpoint) error
}

// SyncResult holds the overall result of a sync operation.
type SyncResult struct {
	TargetResults []TargetSyncResult
}

// HasErrors returns true if any target failed.
func (r *SyncResult) HasErrors() bool {
	for _, tr := range r.TargetResults {
		if tr.Error != nil {
			return true
		}
	}
	return false
}

// TargetSyncResult holds the result for a single target.
type TargetSyncResult struct {
	TargetName  string
	RecordsSent int
	Error       error
}

// SyncProgress reports progress during sync.
type SyncProgress struct {
	TargetName  string
	RecordsSent int
	IsComplete  bool
}

// SyncOption configures sync behavior.
type SyncOption func(*syncOptions)

type syncOptions struct {
	onProgress func(SyncProgress)
	batchSize  int
	iterations int // 0 = unlimited (drain all)
}

// WithProgressCallback sets a callback for progress updates.
func WithProgressCallback(fn func(SyncProgress)) SyncOption {
	return func(o *syncOptions) {
		o.onProgress = fn
	}
}

// WithBatchSize sets the number of records to fetch per iteration.
// A value of 0 uses the Syncer's default batch size.
func WithBatchSize(size int) SyncOption {
	return func(o *syncOptions) {
		o.batchSize = size
	}
}

// WithIterations sets the maximum number of batch iterations.
// A value of 0 means unlimited (drain all pending records).
func WithIterations(n int) SyncOption {
	return func(o *syncOptions) {
		o.iterations = n
	}
}

// Syncer orchestrates syncing audit records to stream targets.
type Syncer struct {
	store     Store
	registry  *Registry
	batchSize int
}

// NewSyncer creates a new Syncer.
func NewSyncer(store Store, registry *Registry) *Syncer {
	return &Syncer{
		store:     store,
		registry:  registry,
		batchSize: defaultBatchSize,
	}
}

// Sync sends unsent audit records to all enabled targets. Each target keeps
// its own checkpoint so a failing target does not hold back the others.
func (s *Syncer) Sync(ctx context.Context, opts ...SyncOption) (*SyncResult, error) {
	var options syncOptions
	for _, opt := range opts {
		opt(&options)
	}

	batchSize := options.batchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	targets := s.registry.Enabled()
	result := &SyncResult{
		TargetResults: make([]TargetSyncResult, 0, len(targets)),
	}

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		tr := s.syncTarget(ctx, target, batchSize, options.iterations, options.onProgress)
		if tr.Error != nil {
			log.Warnf("stream target %s failed after %d records: %v", tr.TargetName, tr.RecordsSent, tr.Error)
		}
		result.TargetResults = append(result.TargetResults, tr)
	}

	return result, nil
}

func (s *Syncer) syncTarget(ctx context.Context, target corestream.Target, batchSize, maxIterations int, onProgress func(SyncProgress)) TargetSyncResult {
	tr := TargetSyncResult{TargetName: target.Name()}

	reportProgress := func(complete bool) {
		if onProgress != nil {
			onProgress(SyncProgress{
				TargetName:  target.Name(),
				RecordsSent: tr.RecordsSent,
				IsComplete:  complete,
			})
		}
	}

	reportProgress(false)

	cp, err := s.store.GetStreamCheckpoint(ctx, target.Name())
	if err != nil {
		tr.Error = err
		return tr
	}

	var after time.Time
	var lastID uuid.UUID
	if cp != nil {
		after = cp.LastSyncedAt
		lastID, _ = uuid.Parse(cp.LastRecordID)
	}

	iteration := 0
	for maxIterations <= 0 || iteration < maxIterations {
		records, err := s.store.QueryAuditsAfter(ctx, after, lastID, batchSize)
		if err != nil {
			tr.Error = err
			return tr
		}

		if len(records) == 0 {
			break
		}

		items := make([]corestream.StreamItem, 0, len(records))
		for _, r := range records {
			items = append(items, corestream.StreamItem{Audit: r})
		}

		if err := target.Send(ctx, items); err != nil {
			tr.Error = err
			return tr
		}

		// Records arrive ordered by (timestamp, id) so the last one is the cursor.
		last := records[len(records)-1]
		after = last.Timestamp
		lastID = last.ID
		tr.RecordsSent += len(records)

		newCP := &storage.StreamCheckpoint{
			TargetName:   target.Name(),
			LastSyncedAt: after,
			LastRecordID: lastID.String(),
		}

		if err := s.store.SaveStreamCheckpoint(ctx, newCP); err != nil {
			tr.Error = err
			return tr
		}

		iteration++
		reportProgress(false)

		if len(records) < batchSize {
			break
		}
	}

	reportProgress(true)
	return tr
}
