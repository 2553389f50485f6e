package tui

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// CSVPresenter renders output as CSV.
type CSVPresenter struct {
	w      io.Writer
	writer *csv.Writer
}

// NewCSVPresenter creates a new CSV presenter.
func NewCSVPresenter(opts PresenterOptions) *CSVPresenter {
	return &CSVPresenter{
		w:      opts.Writer,
		writer: csv.NewWriter(opts.Writer),
	}
}

func (p *CSVPresenter) flush() error {
	p.writer.Flush()
	return p.writer.Error()
}

func csvTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// RenderStatus renders the status as type,name,value rows.
func (p *CSVPresenter) RenderStatus(status *StatusView) error {
	p.writer.Write([]string{"type", "name", "value"})
	p.writer.Write([]string{"version", "gatekeeper", status.Version})

	p.writer.Write([]string{"database", "location", status.Database.Location})
	p.writer.Write([]string{"database", "size_bytes", strconv.FormatInt(status.Database.SizeBytes, 10)})
	p.writer.Write([]string{"database", "policies", strconv.Itoa(status.Database.PolicyCount)})
	p.writer.Write([]string{"database", "audits", strconv.Itoa(status.Database.AuditCount)})

	p.writer.Write([]string{"config", "location", status.Config.Location})
	p.writer.Write([]string{"config", "policy_backend", status.Config.PolicyBackend})
	p.writer.Write([]string{"config", "retention_days", strconv.Itoa(status.Config.RetentionDays)})

	if s := status.Server; s != nil {
		p.writer.Write([]string{"server", "address", s.Address})
		p.writer.Write([]string{"server", "reachable", strconv.FormatBool(s.Reachable)})
		p.writer.Write([]string{"server", "ready", strconv.FormatBool(s.Ready)})
		p.writer.Write([]string{"server", "evaluations", strconv.FormatInt(s.Evaluations, 10)})
		p.writer.Write([]string{"server", "blocks", strconv.FormatInt(s.Blocks, 10)})
	}

	return p.flush()
}

func (p *CSVPresenter) RenderChecks(checks []*CheckView) error {
	p.writer.Write([]string{"key", "description"})
	for _, c := range checks {
		p.writer.Write([]string{c.Key, c.Description})
	}
	return p.flush()
}

func (p *CSVPresenter) RenderGuilds(guilds []*GuildPolicyView) error {
	p.writer.Write([]string{"guild_id", "size_bytes", "updated_at"})
	for _, g := range guilds {
		p.writer.Write([]string{g.GuildID, strconv.Itoa(g.SizeBytes), csvTime(g.UpdatedAt)})
	}
	return p.flush()
}

// RenderPolicy renders one row per policy entry.
func (p *CSVPresenter) RenderPolicy(policy *PolicyView) error {
	p.writer.Write([]string{"guild_id", "position", "check"})
	for i, key := range policy.Checks {
		p.writer.Write([]string{policy.GuildID, strconv.Itoa(i + 1), key})
	}
	return p.flush()
}

func (p *CSVPresenter) RenderValidation(result *ValidationView) error {
	p.writer.Write([]string{"source", "valid", "code", "line", "message"})
	p.writer.Write([]string{
		result.Source,
		strconv.FormatBool(result.Valid),
		result.Code,
		strconv.Itoa(result.Line),
		result.Message,
	})
	return p.flush()
}

func (p *CSVPresenter) RenderVerdict(v *VerdictView) error {
	p.writer.Write([]string{"guild_id", "member_id", "verdict", "check", "reason", "reports"})
	p.writer.Write([]string{v.GuildID, v.MemberID, v.Verdict, v.CheckKey, v.Reason, joinReports(v.Reports)})
	return p.flush()
}

func (p *CSVPresenter) RenderAudits(records []*AuditView) error {
	p.writer.Write([]string{
		"id", "timestamp", "guild_id", "member_id", "username", "verdict",
		"check", "reason", "reports", "action", "result", "error",
	})

	for _, r := range records {
		p.writer.Write([]string{
			r.ID,
			csvTime(r.Timestamp),
			r.GuildID,
			r.MemberID,
			r.Username,
			r.Verdict,
			r.CheckKey,
			r.Reason,
			joinReports(r.Reports),
			r.Action,
			r.Result,
			r.ErrorMessage,
		})
	}

	return p.flush()
}

func joinReports(reports []ReportView) string {
	parts := make([]string, 0, len(reports))
	for _, r := range reports {
		parts = append(parts, fmt.Sprintf("%s: %s", r.CheckKey, r.Message))
	}
	return strings.Join(parts, "; ")
}

func (p *CSVPresenter) RenderPrune(result *PruneView) error {
	p.writer.Write([]string{"cutoff", "deleted", "dry_run"})
	p.writer.Write([]string{csvTime(result.Cutoff), strconv.Itoa(result.Deleted), strconv.FormatBool(result.DryRun)})
	return p.flush()
}

// RenderConfig renders flattened key,value rows.
func (p *CSVPresenter) RenderConfig(config *ConfigView) error {
	p.writer.Write([]string{"key", "value"})
	p.writeConfigMap(redactSecrets(config.Values), "")
	return p.flush()
}

func (p *CSVPresenter) writeConfigMap(m map[string]interface{}, prefix string) {
	for _, key := range sortedKeys(m) {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := m[key].(map[string]interface{}); ok {
			p.writeConfigMap(nested, fullKey)
			continue
		}
		p.writer.Write([]string{fullKey, fmt.Sprint(m[key])})
	}
}

func (p *CSVPresenter) RenderDiff(diff *DiffView) error {
	p.writer.Write([]string{"guild_id", "changed", "diff"})
	p.writer.Write([]string{diff.GuildID, strconv.FormatBool(diff.Changed), diff.Content})
	return p.flush()
}

func (p *CSVPresenter) RenderStreamSync(result *StreamSyncView) error {
	p.writer.Write([]string{"target", "records_sent", "error"})
	for _, t := range result.Targets {
		p.writer.Write([]string{t.Name, strconv.Itoa(t.RecordsSent), t.Error})
	}
	return p.flush()
}

func (p *CSVPresenter) RenderError(err error) error {
	p.writer.Write([]string{"error"})
	p.writer.Write([]string{err.Error()})
	return p.flush()
}

func (p *CSVPresenter) RenderMessage(message string) error {
	p.writer.Write([]string{"message"})
	p.writer.Write([]string{message})
	return p.flush()
}

// Ensure CSVPresenter implements Presenter
var _ Presenter = (*CSVPresenter)(nil)
