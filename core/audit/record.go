// Package audit describes the audit trail of gatekeeper decisions.
package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/core/member"
)

// Action represents what the dispatcher did in response to a verdict.
type Action string

const (
	// ActionNone means no visible action was taken.
	ActionNone Action = "none"
	// ActionKick means the member was removed from the guild.
	ActionKick Action = "kick"
	// ActionReport means a diagnostic was posted to the moderation channel.
	ActionReport Action = "report"
)

// String returns the string representation of an Action.
func (a Action) String() string {
	return string(a)
}

// Result represents the outcome of an action.
type Result string

const (
	// ResultSuccess indicates the action completed.
	ResultSuccess Result = "success"
	// ResultError indicates the action failed.
	ResultError Result = "error"
	// ResultSkipped indicates the action was not attempted.
	ResultSkipped Result = "skipped"
)

// String returns the string representation of a Result.
func (r Result) String() string {
	return string(r)
}

// Record is one entry in the audit trail.
type Record struct {
	// ID is the unique identifier for this record.
	ID uuid.UUID `json:"id"`
	// Timestamp is when the verdict was dispatched (UTC).
	Timestamp time.Time `json:"timestamp"`
	// GuildID is the guild the member joined.
	GuildID string `json:"guild_id"`
	// MemberID is the joining member.
	MemberID string `json:"member_id"`
	// Username is the member's username at join time.
	Username string `json:"username"`
	// Verdict is the engine decision.
	Verdict gatekeeper.VerdictKind `json:"verdict"`
	// CheckKey is the blocking check, if any.
	CheckKey string `json:"check,omitempty"`
	// Reason is the block reason, if any.
	Reason string `json:"reason,omitempty"`
	// Reports are the diagnostics raised during evaluation.
	Reports []gatekeeper.ReportEntry `json:"reports,omitempty"`
	// PolicyDigest identifies the evaluated policy.
	PolicyDigest string `json:"policy_digest,omitempty"`
	// Action is what was done about the verdict.
	Action Action `json:"action"`
	// Result is the outcome of the action.
	Result Result `json:"result"`
	// ErrorMessage contains error details if the action failed.
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewRecord creates a Record for a verdict with a generated UUID.
func NewRecord(verdict *gatekeeper.Verdict, event *member.JoinEvent) *Record {
	reports := make([]gatekeeper.ReportEntry, len(verdict.Reports))
	copy(reports, verdict.Reports)

	return &Record{
		ID:           uuid.New(),
		Timestamp:    time.Now().UTC(),
		GuildID:      event.GuildID,
		MemberID:     event.MemberID,
		Username:     event.Username,
		Verdict:      verdict.Kind,
		CheckKey:     verdict.CheckKey,
		Reason:       verdict.Reason,
		Reports:      reports,
		PolicyDigest: verdict.PolicyDigest,
		Action:       ActionNone,
		Result:       ResultSkipped,
	}
}

// WithAction sets the action and marks it successful.
func (r *Record) WithAction(action Action) *Record {
	r.Action = action
	r.Result = ResultSuccess
	return r
}

// WithError marks the action as failed with the given error.
func (r *Record) WithError(err error) *Record {
	r.Result = ResultError
	r.ErrorMessage = err.Error()
	return r
}

// Filter provides filtering for audit record queries.
type Filter struct {
	Since   *time.Time
	Until   *time.Time // exclusive
	GuildID string
	Verdict gatekeeper.VerdictKind
	Limit   int
}
