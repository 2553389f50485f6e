package gatekeeper

import (
	"fmt"
	"strings"
	"time"
)

// VerdictKind represents the engine's final decision for a join.
type VerdictKind string

const (
	// VerdictAllow admits the member with nothing to report.
	VerdictAllow VerdictKind = "allow"
	// VerdictBlock rejects the member.
	VerdictBlock VerdictKind = "block"
	// VerdictReportOnly admits the member but carries diagnostics for operators.
	VerdictReportOnly VerdictKind = "report"
)

// EngineCheckKey is used as the check key for diagnostics raised by the
// engine itself rather than by a configured check.
const EngineCheckKey = "gatekeeper"

// ReportEntry is one diagnostic collected during evaluation.
type ReportEntry struct {
	CheckKey string `json:"check"`
	Message  string `json:"message"`
}

// Verdict aggregates the outcome of evaluating a guild policy for one join.
type Verdict struct {
	// Kind is the overall decision.
	Kind VerdictKind `json:"kind"`
	// GuildID is the guild whose policy was evaluated.
	GuildID string `json:"guild_id"`
	// CheckKey names the check that blocked. Empty unless Kind is block.
	CheckKey string `json:"check,omitempty"`
	// Reason is the block reason. Empty unless Kind is block.
	Reason string `json:"reason,omitempty"`
	// Reports contains diagnostics in evaluation order.
	Reports []ReportEntry `json:"reports,omitempty"`
	// Evaluated lists the check keys that were run, in order.
	Evaluated []string `json:"evaluated"`
	// TimedOut is true if the evaluation budget expired.
	TimedOut bool `json:"timed_out,omitempty"`
	// PolicyDigest identifies the policy that was evaluated.
	PolicyDigest string `json:"policy_digest,omitempty"`
	// Duration is how long evaluation took.
	Duration time.Duration `json:"duration"`
}

// NewAllowVerdict creates a Verdict admitting the member.
func NewAllowVerdict(guildID string) *Verdict {
	return &Verdict{
		Kind:      VerdictAllow,
		GuildID:   guildID,
		Reports:   make([]ReportEntry, 0),
		Evaluated: make([]string, 0),
	}
}

// IsAllowed returns true if the member is admitted (allow or report only).
func (v *Verdict) IsAllowed() bool {
	return v.Kind != VerdictBlock
}

// HasReports returns true if there is anything for operators to look at.
func (v *Verdict) HasReports() bool {
	return len(v.Reports) > 0
}

// addReport records a diagnostic.
func (v *Verdict) addReport(checkKey, message string) {
	v.Reports = append(v.Reports, ReportEntry{CheckKey: checkKey, Message: message})
}

// finish settles the kind for an evaluation that did not block.
func (v *Verdict) finish() {
	if v.Kind == VerdictBlock {
		return
	}
	if len(v.Reports) > 0 {
		v.Kind = VerdictReportOnly
	} else {
		v.Kind = VerdictAllow
	}
}

// Summary returns a single line description of the verdict.
func (v *Verdict) Summary() string {
	switch v.Kind {
	case VerdictBlock:
		return fmt.Sprintf("blocked by %s: %s", v.CheckKey, v.Reason)
	case VerdictReportOnly:
		parts := make([]string, len(v.Reports))
		for i, r := range v.Reports {
			parts[i] = fmt.Sprintf("%s: %s", r.CheckKey, r.Message)
		}
		return "allowed with reports (" + strings.Join(parts, "; ") + ")"
	default:
		return "allowed"
	}
}
