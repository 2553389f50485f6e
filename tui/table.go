package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// TablePresenter renders output in table format.
type TablePresenter struct {
	w         io.Writer
	color     *Colorizer
	termWidth int
	verbose   bool
	loc       *time.Location
}

// NewTablePresenter creates a new table presenter.
func NewTablePresenter(opts PresenterOptions) *TablePresenter {
	termWidth := opts.TerminalWidth
	if termWidth == 0 {
		termWidth = tableWidth(opts.Writer)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &TablePresenter{
		w:         opts.Writer,
		color:     NewColorizer(opts.UseColors),
		termWidth: termWidth,
		verbose:   opts.Verbose,
		loc:       loc,
	}
}

func (p *TablePresenter) writer() *sheetWriter {
	return newSheetWriter(p.w, p.color)
}

func (p *TablePresenter) fmtTime(t time.Time) string {
	if t.IsZero() {
		return FormatTime(t)
	}
	return FormatTime(t.In(p.loc))
}

// RenderStatus renders local database, config and server status.
func (p *TablePresenter) RenderStatus(status *StatusView) error {
	tw := p.writer()

	tw.printf("%s\n\n", p.color.Header("gatekeeper "+status.Version))

	if s := status.Server; s != nil {
		tw.section("Server")
		tw.field("Address", s.Address)
		switch {
		case !s.Reachable:
			tw.field("State", p.color.StatusSkip()+" "+p.color.Dim(s.Error))
		case s.Ready:
			tw.field("State", p.color.StatusOK()+" ready")
		default:
			tw.field("State", p.color.StatusFail()+" gateway disconnected")
		}
		if s.Reachable {
			tw.field("Version", s.Version)
			tw.field("Uptime", FormatDuration(s.Uptime))
			tw.field("Guilds cached", p.color.Number(FormatNumber(s.CachedGuilds)))
			tw.field("Evaluations", p.color.Number(FormatNumber(int(s.Evaluations))))
			tw.field("Blocks", p.color.Number(FormatNumber(int(s.Blocks))))
			tw.field("Report only", p.color.Number(FormatNumber(int(s.ReportOnly))))
			if s.Timeouts > 0 || s.InternalErrs > 0 {
				tw.field("Timeouts", p.color.Warning(FormatNumber(int(s.Timeouts))))
				tw.field("Check faults", p.color.Warning(FormatNumber(int(s.InternalErrs))))
			}
		}
		tw.println()
	}

	tw.section("Database")
	tw.field("Location", p.color.Path(status.Database.Location))
	tw.field("Size", status.Database.SizeHuman)
	tw.field("Policies", p.color.Number(FormatNumber(status.Database.PolicyCount)))
	tw.field("Audit records", p.color.Number(FormatNumber(status.Database.AuditCount)))
	if !status.Database.OldestAudit.IsZero() {
		tw.field("Oldest", p.fmtTime(status.Database.OldestAudit))
		tw.field("Latest", p.fmtTime(status.Database.NewestAudit))
	}
	tw.println()

	tw.section("Config")
	tw.field("Location", p.color.Path(status.Config.Location))
	tw.field("Policies in", status.Config.PolicyBackend)
	tw.field("Gateway", status.Config.GatewayURL)
	if status.Config.RetentionDays > 0 {
		retention := fmt.Sprintf("%d days", status.Config.RetentionDays)
		if status.Config.AuditsToPrune > 0 {
			retention += fmt.Sprintf(" (%s records older than %s)",
				p.color.Warning(FormatNumber(status.Config.AuditsToPrune)),
				FormatDate(status.Config.RetentionCutoff.In(p.loc)))
		}
		tw.field("Retention", retention)
	} else {
		tw.field("Retention", "forever")
	}

	return tw.Err()
}

// RenderChecks renders the registered checks.
func (p *TablePresenter) RenderChecks(checks []*CheckView) error {
	tw := p.writer()

	if len(checks) == 0 {
		tw.println("No checks registered.")
		return tw.Err()
	}

	width := 0
	for _, c := range checks {
		if len(c.Key) > width {
			width = len(c.Key)
		}
	}

	tw.section(fmt.Sprintf("Checks (%d)", len(checks)))
	tw.rule(p.termWidth)
	for _, c := range checks {
		tw.printf("  %s  %s\n", p.color.Check(PadRight(c.Key, width)), c.Description)
	}

	return tw.Err()
}

// RenderGuilds renders guilds with a stored policy.
func (p *TablePresenter) RenderGuilds(guilds []*GuildPolicyView) error {
	tw := p.writer()

	if len(guilds) == 0 {
		tw.println("No guild policies stored.")
		return tw.Err()
	}

	tw.printf("Guild policies (%d)\n", len(guilds))
	tw.rule(p.termWidth)
	tw.printf("%-22s %-10s %s\n", "Guild", "Size", "Updated")
	for _, g := range guilds {
		tw.printf("%s %-10s %s\n",
			p.color.Guild(PadRight(g.GuildID, 22)),
			FormatBytes(int64(g.SizeBytes)),
			p.fmtTime(g.UpdatedAt))
	}

	return tw.Err()
}

// RenderPolicy renders a guild policy document.
func (p *TablePresenter) RenderPolicy(policy *PolicyView) error {
	tw := p.writer()

	tw.printf("%-8s %s\n", "Guild:", p.color.Guild(policy.GuildID))
	tw.printf("%-8s %s\n", "Digest:", p.color.Dim(FormatShortID(policy.Digest)))
	tw.rule(p.termWidth)

	if len(policy.Checks) == 0 {
		tw.println(p.color.Dim("(empty policy, every join is allowed)"))
		return tw.Err()
	}

	tw.printf("%s", policy.Document)
	if !strings.HasSuffix(policy.Document, "\n") {
		tw.println()
	}

	return tw.Err()
}

// RenderValidation renders the result of compiling a policy document.
func (p *TablePresenter) RenderValidation(result *ValidationView) error {
	tw := p.writer()

	if result.Valid {
		tw.printf("%s  %s\n", p.color.StatusOK(), result.Source)
		if len(result.Checks) == 0 {
			tw.printf("      %s\n", p.color.Dim("empty policy"))
		} else {
			tw.printf("      checks: %s\n", strings.Join(result.Checks, ", "))
		}
		return tw.Err()
	}

	tw.printf("%s  %s\n", p.color.StatusFail(), result.Source)
	location := ""
	if result.Line > 0 {
		location = fmt.Sprintf("line %d: ", result.Line)
	}
	tw.printf("      %s%s\n", location, p.color.Error(result.Message))
	if result.Code != "" {
		tw.printf("      %s\n", p.color.Dim(result.Code))
	}

	return tw.Err()
}

// RenderVerdict renders a dry-run evaluation.
func (p *TablePresenter) RenderVerdict(v *VerdictView) error {
	tw := p.writer()

	tw.printf("%-10s %s\n", "Guild:", p.color.Guild(v.GuildID))
	tw.printf("%-10s %s (%s)\n", "Member:", v.Member, p.color.Dim(v.MemberID))
	tw.printf("%-10s %s\n", "Verdict:", p.color.Verdict(v.Verdict))
	if v.CheckKey != "" {
		tw.printf("%-10s %s: %s\n", "Blocked:", p.color.Check(v.CheckKey), v.Reason)
	}
	if v.TimedOut {
		tw.printf("%-10s %s\n", "", p.color.Warning("evaluation timed out"))
	}

	if len(v.Reports) > 0 {
		tw.println()
		tw.section("Reports")
		for _, r := range v.Reports {
			tw.printf("  - %s: %s\n", p.color.Check(r.CheckKey), r.Message)
		}
	}

	if p.verbose {
		tw.println()
		tw.printf("%-10s %s\n", "Evaluated:", strings.Join(v.Evaluated, ", "))
		tw.printf("%-10s %s\n", "Policy:", FormatShortID(v.PolicyDigest))
		tw.printf("%-10s %s\n", "Took:", FormatDuration(v.Duration))
	}

	return tw.Err()
}

// auditColumnWidths holds the calculated widths for audit table columns.
type auditColumnWidths struct {
	time    int
	guild   int
	member  int
	verdict int
	action  int
	detail  int
	total   int
}

// calculateAuditColumnWidths computes column widths based on terminal width.
// Detail absorbs the remaining space.
func (p *TablePresenter) calculateAuditColumnWidths() auditColumnWidths {
	const (
		timeWidth      = 19
		guildWidth     = 20
		memberWidth    = 16
		verdictWidth   = 7
		actionWidth    = 7
		minDetailWidth = 15
		maxDetailWidth = 80
		spacing        = 6
	)

	fixedWidth := timeWidth + guildWidth + memberWidth + verdictWidth + actionWidth + spacing
	detailWidth := p.termWidth - fixedWidth
	if detailWidth < minDetailWidth {
		detailWidth = minDetailWidth
	}
	if detailWidth > maxDetailWidth {
		detailWidth = maxDetailWidth
	}

	return auditColumnWidths{
		time:    timeWidth,
		guild:   guildWidth,
		member:  memberWidth,
		verdict: verdictWidth,
		action:  actionWidth,
		detail:  detailWidth,
		total:   fixedWidth + detailWidth,
	}
}

// RenderAudits renders audit records.
func (p *TablePresenter) RenderAudits(records []*AuditView) error {
	tw := p.writer()

	if len(records) == 0 {
		tw.println("No audit records found.")
		return tw.Err()
	}

	cols := p.calculateAuditColumnWidths()

	tw.printf("Audit records (%d)\n", len(records))
	tw.rule(cols.total)

	rowFmt := fmt.Sprintf("%%-%ds %%-%ds %%-%ds %%s %%-%ds %%s\n",
		cols.time, cols.guild, cols.member, cols.action)

	tw.printf(rowFmt, "Time", "Guild", "Member", PadRight("Verdict", cols.verdict), "Action", "Detail")
	tw.rule(cols.total)

	for _, r := range records {
		member := r.Username
		if member == "" {
			member = r.MemberID
		}

		detail := auditDetail(r)
		if r.Result == "error" {
			detail = "failed: " + r.ErrorMessage
		}

		// Pad before coloring so escape codes do not skew the columns.
		tw.printf(rowFmt,
			p.fmtTime(r.Timestamp),
			TruncateString(r.GuildID, cols.guild),
			TruncateString(member, cols.member),
			p.color.Verdict(PadRight(r.Verdict, cols.verdict)),
			r.Action,
			TruncateString(detail, cols.detail))

		if p.verbose {
			for _, rep := range r.Reports {
				tw.printf("%s- %s: %s\n", strings.Repeat(" ", cols.time+1), rep.CheckKey, rep.Message)
			}
		}
	}

	tw.rule(cols.total)

	return tw.Err()
}

func auditDetail(r *AuditView) string {
	if r.CheckKey != "" {
		return r.CheckKey + ": " + r.Reason
	}
	switch len(r.Reports) {
	case 0:
		return ""
	case 1:
		return r.Reports[0].CheckKey + ": " + r.Reports[0].Message
	default:
		return fmt.Sprintf("%d reports", len(r.Reports))
	}
}

// RenderPrune renders the result of applying audit retention.
func (p *TablePresenter) RenderPrune(result *PruneView) error {
	tw := p.writer()

	verb := "Deleted"
	if result.DryRun {
		verb = "Would delete"
	}
	tw.printf("%s %s audit records older than %s\n",
		verb, p.color.Number(FormatNumber(result.Deleted)), p.fmtTime(result.Cutoff))

	return tw.Err()
}

// RenderConfig renders the configuration.
func (p *TablePresenter) RenderConfig(config *ConfigView) error {
	tw := p.writer()

	tw.section("Configuration")
	tw.printf("Location: %s\n", p.color.Path(config.Location))
	tw.rule(p.termWidth)
	tw.println()

	p.renderConfigMap(tw, config.Values, "")

	return tw.Err()
}

func (p *TablePresenter) renderConfigMap(tw *sheetWriter, m map[string]interface{}, prefix string) {
	for _, key := range sortedKeys(m) {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		switch v := m[key].(type) {
		case map[string]interface{}:
			if len(v) == 0 {
				tw.printf("  %-32s %s\n", fullKey, p.color.Dim("{}"))
				continue
			}
			p.renderConfigMap(tw, v, fullKey)
		default:
			if isSecretKey(key) && fmt.Sprint(v) != "" {
				v = secretMask
			}
			tw.printf("  %-32s %v\n", fullKey, v)
		}
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isSecretKey(key string) bool {
	return key == "token" || strings.HasSuffix(key, "_token")
}

const secretMask = "********"

// redactSecrets returns a copy of m with every non-empty token masked.
func redactSecrets(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]interface{}:
			out[k] = redactSecrets(vv)
		default:
			if isSecretKey(k) && fmt.Sprint(v) != "" {
				v = secretMask
			}
			out[k] = v
		}
	}
	return out
}

// RenderDiff renders a policy diff.
func (p *TablePresenter) RenderDiff(diff *DiffView) error {
	tw := p.writer()

	if !diff.Changed {
		tw.printf("Policy for guild %s is unchanged.\n", p.color.Guild(diff.GuildID))
		return tw.Err()
	}

	for _, line := range strings.Split(strings.TrimRight(diff.Content, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			tw.println(p.color.DiffHeader(line))
		case strings.HasPrefix(line, "+"):
			tw.println(p.color.DiffAdd(line))
		case strings.HasPrefix(line, "-"):
			tw.println(p.color.DiffRemove(line))
		case strings.HasPrefix(line, "@@"):
			tw.println(p.color.Cyan(line))
		default:
			tw.println(line)
		}
	}

	return tw.Err()
}

// RenderStreamSync renders stream sync results.
func (p *TablePresenter) RenderStreamSync(result *StreamSyncView) error {
	tw := p.writer()

	if len(result.Targets) == 0 {
		tw.println("No enabled stream targets configured.")
		return tw.Err()
	}

	for _, t := range result.Targets {
		if t.Error != "" {
			tw.printf("%s  %-16s %s\n", p.color.StatusFail(), t.Name, p.color.Error(t.Error))
			continue
		}
		tw.printf("%s  %-16s synced %s audit records\n",
			p.color.StatusOK(), t.Name, p.color.Number(FormatNumber(t.RecordsSent)))
	}

	return tw.Err()
}

// RenderError renders an error message.
func (p *TablePresenter) RenderError(err error) error {
	tw := p.writer()
	tw.printf("%s %s\n", p.color.Error("Error:"), err.Error())
	return tw.Err()
}

// RenderMessage renders a simple message.
func (p *TablePresenter) RenderMessage(message string) error {
	tw := p.writer()
	tw.println(message)
	return tw.Err()
}

// Ensure TablePresenter implements Presenter
var _ Presenter = (*TablePresenter)(nil)
