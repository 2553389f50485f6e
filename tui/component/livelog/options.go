package livelog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/safedep/gatekeeper/core/audit"
)

// Store is the audit trail the live view reads from.
type Store interface {
	QueryAudits(ctx context.Context, filter *audit.Filter) ([]*audit.Record, error)
	QueryAuditsAfter(ctx context.Context, after time.Time, afterID uuid.UUID, limit int) ([]*audit.Record, error)
}

type Options struct {
	Store        Store
	PollInterval time.Duration
	GuildFilter  string
	InitialLimit int
	Since        time.Time
}

func (o Options) pollInterval() time.Duration {
	if o.PollInterval > 0 {
		return o.PollInterval
	}
	return 2 * time.Second
}

func (o Options) initialLimit() int {
	if o.InitialLimit > 0 {
		return o.InitialLimit
	}
	return 50
}
