package audit

import (
	"time"
)

// RetentionPolicy defines how long audit records are kept.
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep records (0 = never delete).
	RetentionDays int
}

// NewRetentionPolicy creates a new RetentionPolicy with the given retention days.
func NewRetentionPolicy(days int) *RetentionPolicy {
	return &RetentionPolicy{RetentionDays: days}
}

// DefaultRetentionPolicy returns the default retention policy (90 days).
func DefaultRetentionPolicy() *RetentionPolicy {
	return NewRetentionPolicy(90)
}

// CutoffTime returns the time before which records should be deleted.
// Returns zero time if retention is disabled.
func (p *RetentionPolicy) CutoffTime(now time.Time) time.Time {
	if !p.IsEnabled() {
		return time.Time{}
	}
	return now.AddDate(0, 0, -p.RetentionDays)
}

// IsEnabled returns true if retention is enabled.
func (p *RetentionPolicy) IsEnabled() bool {
	return p.RetentionDays > 0
}

// ShouldDelete returns true if a record with the given timestamp is past retention.
func (p *RetentionPolicy) ShouldDelete(recordTime, now time.Time) bool {
	if !p.IsEnabled() {
		return false
	}
	return recordTime.Before(p.CutoffTime(now))
}
