package cli

import (
	"github.com/safedep/gatekeeper/tui"
	"github.com/spf13/cobra"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Inspect the registered checks",
	}

	cmd.AddCommand(newCheckListCmd())

	return cmd
}

func newCheckListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the checks a policy may reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp()
			if err != nil {
				return err
			}

			if err := app.UsePresenter(format, cmd.OutOrStdout()); err != nil {
				return err
			}

			registered := app.Registry.All()
			views := make([]*tui.CheckView, 0, len(registered))
			for _, c := range registered {
				views = append(views, &tui.CheckView{
					Key:         c.Key(),
					Description: c.Description(),
				})
			}

			return app.Presenter.RenderChecks(views)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, jsonl, csv")

	return cmd
}
