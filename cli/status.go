package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/internal/version"
	"github.com/safedep/gatekeeper/server"
	"github.com/safedep/gatekeeper/tui"
	"github.com/spf13/cobra"
)

const statusQueryTimeout = 2 * time.Second

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var (
		format  string
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database, configuration and server status",
		Long: `Show database, configuration and server status.

Displays:
- Tool version
- Database location, size and record counts
- Configuration and retention settings
- State of a running server at server.addr`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return withStore(ctx, func(app *App) error {
				if err := app.UsePresenter(format, cmd.OutOrStdout()); err != nil {
					return err
				}

				view := &tui.StatusView{Version: version.Version}

				info, err := app.Store.Info(ctx)
				if err != nil {
					return ErrDatabase("failed to read database info", err)
				}
				view.Database = tui.DatabaseView{
					Location:    info.Path,
					SizeBytes:   info.SizeBytes,
					SizeHuman:   tui.FormatBytes(info.SizeBytes),
					PolicyCount: info.PolicyCount,
					AuditCount:  info.AuditCount,
					OldestAudit: info.OldestAudit,
					NewestAudit: info.NewestAudit,
				}

				view.Config = tui.ConfigStatusView{
					Location:      configPath(),
					PolicyBackend: string(app.Config.Storage.PolicyBackend),
					GatewayURL:    app.Config.Gateway.URL,
					RetentionDays: app.Config.Storage.RetentionDays,
				}

				retention := audit.NewRetentionPolicy(app.Config.Storage.RetentionDays)
				if retention.IsEnabled() {
					cutoff := retention.CutoffTime(time.Now())
					view.Config.RetentionCutoff = cutoff
					if count, err := app.Store.CountAudits(ctx, &audit.Filter{Until: &cutoff}); err == nil {
						view.Config.AuditsToPrune = count
					}
				}

				if !offline {
					addr := app.Config.Server.Addr
					view.Server, _ = tui.RunStep(ctx, cmd.ErrOrStderr(), "Contacting server at "+addr,
						func(ctx context.Context) (*tui.ServerStatusView, error) {
							return queryServer(ctx, addr), nil
						}, tui.WithStepColors(app.Config.ShouldUseColors()))
				}

				return app.Presenter.RenderStatus(view)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, jsonl, csv")
	cmd.Flags().BoolVar(&offline, "offline", false, "do not contact a running server")

	return cmd
}

// serverBaseURL turns a listen address into a URL a local client can reach.
func serverBaseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + server.BasePath
}

// queryServer asks a running server for its status. An unreachable server
// is reported in the view rather than as an error.
func queryServer(ctx context.Context, addr string) *tui.ServerStatusView {
	view := &tui.ServerStatusView{Address: addr}

	ctx, cancel := context.WithTimeout(ctx, statusQueryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverBaseURL(addr)+"/status", nil)
	if err != nil {
		view.Error = err.Error()
		return view
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		view.Error = "not running"
		return view
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		view.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return view
	}

	var status server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		view.Error = fmt.Sprintf("invalid status response: %v", err)
		return view
	}

	view.Reachable = true
	view.Ready = status.Ready
	view.Version = status.Version
	view.Uptime = time.Duration(status.UptimeSeconds) * time.Second
	view.CachedGuilds = status.Engine.CachedGuilds
	view.Evaluations = status.Engine.Evaluations
	view.Blocks = status.Engine.Blocks
	view.ReportOnly = status.Engine.ReportOnly
	view.Timeouts = status.Engine.Timeouts
	view.InternalErrs = status.Engine.InternalErrs

	return view
}
