package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/tui"
	"github.com/safedep/gatekeeper/tui/component/livelog"
	"github.com/spf13/cobra"
)

// NewAuditCmd creates the audit command.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
		Long: `Inspect the audit trail.

Every block and report-only verdict is recorded together with the
moderation action taken and its result. Allowed joins are not recorded.`,
	}

	cmd.AddCommand(
		newAuditListCmd(),
		newAuditTailCmd(),
		newAuditPruneCmd(),
	)

	return cmd
}

func newAuditListCmd() *cobra.Command {
	var (
		since   string
		until   string
		guild   string
		verdict string
		limit   int
		format  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit records, newest first",
		Example: `  gatekeeper audit list
  gatekeeper audit list --since 1d --verdict block
  gatekeeper audit list --guild 1234 --format csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := &audit.Filter{
				GuildID: guild,
				Limit:   limit,
			}

			now := time.Now()
			if since != "" {
				t, err := parseSince(since, now)
				if err != nil {
					return NewCLIError(ExitGeneral, fmt.Sprintf("invalid --since: %v", err))
				}
				filter.Since = &t
			}
			if until != "" {
				t, err := parseSince(until, now)
				if err != nil {
					return NewCLIError(ExitGeneral, fmt.Sprintf("invalid --until: %v", err))
				}
				filter.Until = &t
			}
			if verdict != "" {
				kind, err := parseVerdict(verdict)
				if err != nil {
					return err
				}
				filter.Verdict = kind
			}

			return withStore(cmd.Context(), func(app *App) error {
				if err := app.UsePresenter(format, cmd.OutOrStdout()); err != nil {
					return err
				}

				records, err := app.Store.QueryAudits(cmd.Context(), filter)
				if err != nil {
					return ErrDatabase("failed to query audit records", err)
				}

				return app.Presenter.RenderAudits(tui.NewAuditViews(records))
			})
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "show records after this time (e.g. 1h, 2d, 2026-01-02)")
	cmd.Flags().StringVar(&until, "until", "", "show records before this time")
	cmd.Flags().StringVar(&guild, "guild", "", "filter by guild id")
	cmd.Flags().StringVar(&verdict, "verdict", "", "filter by verdict: block, report")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, jsonl, csv")

	return cmd
}

func parseVerdict(s string) (gatekeeper.VerdictKind, error) {
	switch kind := gatekeeper.VerdictKind(s); kind {
	case gatekeeper.VerdictBlock, gatekeeper.VerdictReportOnly, gatekeeper.VerdictAllow:
		return kind, nil
	}
	return "", NewCLIError(ExitGeneral, fmt.Sprintf("unknown verdict: %s", s))
}

func newAuditTailCmd() *cobra.Command {
	var (
		guild    string
		since    string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the audit trail in a live view",
		Long: `Follow the audit trail in a live view.

Polls the audit store and shows new records as they are written by a
running server. Press ? for key bindings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := livelog.Options{
				PollInterval: interval,
				GuildFilter:  guild,
			}

			if since != "" {
				t, err := parseSince(since, time.Now())
				if err != nil {
					return NewCLIError(ExitGeneral, fmt.Sprintf("invalid --since: %v", err))
				}
				opts.Since = t
			}

			return withStore(cmd.Context(), func(app *App) error {
				opts.Store = app.Store

				prog := tea.NewProgram(livelog.New(opts), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
				_, err := prog.Run()

				return err
			})
		},
	}

	cmd.Flags().StringVar(&guild, "guild", "", "only show records of this guild")
	cmd.Flags().StringVar(&since, "since", "", "load history from this time (default: last records)")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval")

	return cmd
}

func newAuditPruneCmd() *cobra.Command {
	var (
		dryRun bool
		days   int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit records older than the retention period",
		Long: `Delete audit records older than the retention period.

Uses storage.retention_days unless --days is given. A retention of 0
keeps records forever.`,
		Example: `  gatekeeper audit prune
  gatekeeper audit prune --dry-run
  gatekeeper audit prune --days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return withStore(ctx, func(app *App) error {
				app.Presenter = tui.NewPresenter(tui.FormatTable, presenterOptions(app.Config, cmd.OutOrStdout()))

				retention := audit.NewRetentionPolicy(app.Config.Storage.RetentionDays)
				if cmd.Flags().Changed("days") {
					retention = audit.NewRetentionPolicy(days)
				}

				if !retention.IsEnabled() {
					return app.Presenter.RenderMessage("Retention disabled (retention_days=0), nothing to prune.")
				}

				cutoff := retention.CutoffTime(time.Now())
				view := &tui.PruneView{Cutoff: cutoff, DryRun: dryRun}

				if dryRun {
					count, err := app.Store.CountAudits(ctx, &audit.Filter{Until: &cutoff})
					if err != nil {
						return ErrDatabase("failed to count audit records", err)
					}
					view.Deleted = count
					return app.Presenter.RenderPrune(view)
				}

				label := "Pruning audit records older than " + tui.FormatDate(cutoff)
				deleted, err := tui.RunStep(ctx, cmd.ErrOrStderr(), label, func(ctx context.Context) (int, error) {
					return app.Store.DeleteAuditsBefore(ctx, cutoff)
				}, tui.WithStepColors(app.Config.ShouldUseColors()))
				if err != nil {
					return ErrDatabase("failed to prune audit records", err)
				}
				view.Deleted = deleted

				return app.Presenter.RenderPrune(view)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count records without deleting")
	cmd.Flags().IntVar(&days, "days", 0, "override storage.retention_days")

	return cmd
}
