package tui

import (
	"time"

	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"
)

// StatusView represents the status output data.
type StatusView struct {
	Version  string            `json:"version"`
	Database DatabaseView      `json:"database"`
	Config   ConfigStatusView  `json:"config"`
	Server   *ServerStatusView `json:"server,omitempty"`
}

// DatabaseView represents database information.
type DatabaseView struct {
	Location    string    `json:"location"`
	SizeBytes   int64     `json:"size_bytes"`
	SizeHuman   string    `json:"size_human"`
	PolicyCount int       `json:"policy_count"`
	AuditCount  int       `json:"audit_count"`
	OldestAudit time.Time `json:"oldest_audit,omitempty"`
	NewestAudit time.Time `json:"newest_audit,omitempty"`
}

// ConfigStatusView represents configuration status.
type ConfigStatusView struct {
	Location        string    `json:"location"`
	PolicyBackend   string    `json:"policy_backend"`
	GatewayURL      string    `json:"gateway_url"`
	RetentionDays   int       `json:"retention_days"`
	AuditsToPrune   int       `json:"audits_to_prune"`
	RetentionCutoff time.Time `json:"retention_cutoff,omitempty"`
}

// ServerStatusView represents what a running server reports about itself.
type ServerStatusView struct {
	Address      string        `json:"address"`
	Reachable    bool          `json:"reachable"`
	Error        string        `json:"error,omitempty"`
	Ready        bool          `json:"ready"`
	Version      string        `json:"version,omitempty"`
	Uptime       time.Duration `json:"uptime"`
	CachedGuilds int           `json:"cached_guilds"`
	Evaluations  int64         `json:"evaluations"`
	Blocks       int64         `json:"blocks"`
	ReportOnly   int64         `json:"report_only"`
	Timeouts     int64         `json:"timeouts"`
	InternalErrs int64         `json:"internal_errors"`
}

// CheckView represents a registered check.
type CheckView struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// GuildPolicyView represents a stored policy in a listing.
type GuildPolicyView struct {
	GuildID   string    `json:"guild_id"`
	SizeBytes int       `json:"size_bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PolicyView represents the compiled policy of a guild.
type PolicyView struct {
	GuildID  string   `json:"guild_id"`
	Document string   `json:"config"`
	Checks   []string `json:"checks"`
	Digest   string   `json:"digest"`
}

// ValidationView represents the result of compiling a policy document.
type ValidationView struct {
	Source  string   `json:"source"`
	Valid   bool     `json:"valid"`
	Checks  []string `json:"checks,omitempty"`
	Code    string   `json:"code,omitempty"`
	Line    int      `json:"line,omitempty"`
	Message string   `json:"message,omitempty"`
}

// ReportView represents a diagnostic raised during evaluation.
type ReportView struct {
	CheckKey string `json:"check"`
	Message  string `json:"message"`
}

// VerdictView represents a dry-run evaluation.
type VerdictView struct {
	GuildID      string        `json:"guild_id"`
	MemberID     string        `json:"member_id"`
	Member       string        `json:"member"`
	Verdict      string        `json:"verdict"`
	CheckKey     string        `json:"check,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	Reports      []ReportView  `json:"reports,omitempty"`
	Evaluated    []string      `json:"evaluated"`
	TimedOut     bool          `json:"timed_out,omitempty"`
	PolicyDigest string        `json:"policy_digest,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// AuditView represents an audit record for display.
type AuditView struct {
	ID           string       `json:"id"`
	ShortID      string       `json:"-"`
	Timestamp    time.Time    `json:"timestamp"`
	GuildID      string       `json:"guild_id"`
	MemberID     string       `json:"member_id"`
	Username     string       `json:"username,omitempty"`
	Verdict      string       `json:"verdict"`
	CheckKey     string       `json:"check,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	Reports      []ReportView `json:"reports,omitempty"`
	Action       string       `json:"action"`
	Result       string       `json:"result"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// PruneView represents the result of applying audit retention.
type PruneView struct {
	Cutoff  time.Time `json:"cutoff"`
	Deleted int       `json:"deleted"`
	DryRun  bool      `json:"dry_run"`
}

// ConfigView represents configuration for display.
type ConfigView struct {
	Location string                 `json:"location"`
	Values   map[string]interface{} `json:"values"`
}

// DiffView represents the change a policy update makes.
type DiffView struct {
	GuildID string `json:"guild_id"`
	Changed bool   `json:"changed"`
	Content string `json:"diff"`
}

// StreamSyncView represents the results of a stream sync.
type StreamSyncView struct {
	Targets []StreamTargetView `json:"targets"`
}

// StreamTargetView represents the sync result for one target.
type StreamTargetView struct {
	Name        string `json:"name"`
	RecordsSent int    `json:"records_sent"`
	Error       string `json:"error,omitempty"`
}

// NewAuditView converts an audit record for display.
func NewAuditView(r *audit.Record) *AuditView {
	id := r.ID.String()
	return &AuditView{
		ID:           id,
		ShortID:      FormatShortID(id),
		Timestamp:    r.Timestamp,
		GuildID:      r.GuildID,
		MemberID:     r.MemberID,
		Username:     r.Username,
		Verdict:      string(r.Verdict),
		CheckKey:     r.CheckKey,
		Reason:       r.Reason,
		Reports:      reportViews(r.Reports),
		Action:       r.Action.String(),
		Result:       r.Result.String(),
		ErrorMessage: r.ErrorMessage,
	}
}

// NewAuditViews converts a list of audit records.
func NewAuditViews(records []*audit.Record) []*AuditView {
	views := make([]*AuditView, 0, len(records))
	for _, r := range records {
		views = append(views, NewAuditView(r))
	}
	return views
}

// NewVerdictView converts a verdict for display.
func NewVerdictView(v *gatekeeper.Verdict, memberID, member string) *VerdictView {
	return &VerdictView{
		GuildID:      v.GuildID,
		MemberID:     memberID,
		Member:       member,
		Verdict:      string(v.Kind),
		CheckKey:     v.CheckKey,
		Reason:       v.Reason,
		Reports:      reportViews(v.Reports),
		Evaluated:    v.Evaluated,
		TimedOut:     v.TimedOut,
		PolicyDigest: v.PolicyDigest,
		Duration:     v.Duration,
	}
}

func reportViews(entries []gatekeeper.ReportEntry) []ReportView {
	if len(entries) == 0 {
		return nil
	}
	views := make([]ReportView, 0, len(entries))
	for _, e := range entries {
		views = append(views, ReportView{CheckKey: e.CheckKey, Message: e.Message})
	}
	return views
}
