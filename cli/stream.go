package cli

import (
	"io"

	"github.com/safedep/dry/log"
	"github.com/safedep/gatekeeper/config"
	"github.com/safedep/gatekeeper/stream"
	"github.com/safedep/gatekeeper/stream/nop"
	"github.com/safedep/gatekeeper/stream/stdout"
	"github.com/safedep/gatekeeper/tui"
	"github.com/spf13/cobra"
)

// NewStreamCmd creates the stream parent command.
func NewStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Audit trail streaming",
	}

	cmd.AddCommand(newStreamSyncCmd())
	return cmd
}

func newStreamSyncCmd() *cobra.Command {
	var (
		format    string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync audit records to the configured stream targets",
		Long: `Sync audit records to the configured stream targets.

Each target keeps its own checkpoint and only receives records written
since its last successful sync. The summary is written to stderr so
that stdout targets can be piped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return withStore(ctx, func(app *App) error {
				if err := app.UsePresenter(format, cmd.ErrOrStderr()); err != nil {
					return err
				}

				registry := buildStreamRegistry(app.Config, cmd.OutOrStdout())
				defer func() {
					if err := registry.Close(); err != nil {
						log.Warnf("failed to close stream targets: %v", err)
					}
				}()

				if len(registry.Enabled()) == 0 {
					return app.Presenter.RenderMessage("No enabled stream targets configured.")
				}

				progress := tui.NewSyncProgress(cmd.ErrOrStderr(), app.Config.ShouldUseColors())
				syncer := stream.NewSyncer(app.Store, registry)

				result, err := syncer.Sync(ctx,
					stream.WithBatchSize(batchSize),
					stream.WithProgressCallback(func(p stream.SyncProgress) {
						if p.IsComplete {
							progress.Done()
							return
						}
						progress.Sent(p.TargetName, p.RecordsSent)
					}),
				)
				if err != nil {
					return err
				}

				view := &tui.StreamSyncView{}
				for _, tr := range result.TargetResults {
					tv := tui.StreamTargetView{Name: tr.TargetName, RecordsSent: tr.RecordsSent}
					if tr.Error != nil {
						tv.Error = tr.Error.Error()
					}
					view.Targets = append(view.Targets, tv)
				}

				return app.Presenter.RenderStreamSync(view)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, jsonl, csv")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per batch (default 500)")

	return cmd
}

func buildStreamRegistry(cfg *config.Config, out io.Writer) *stream.Registry {
	registry := stream.NewRegistry()
	for _, tc := range cfg.Streams.Targets {
		switch tc.Type {
		case stream.TargetTypeStdout:
			registry.Register(stdout.NewWithWriter(tc.Name, tc.Enabled, out))
		case stream.TargetTypeNop:
			registry.Register(nop.New(tc.Name, tc.Enabled))
		}
	}

	return registry
}
