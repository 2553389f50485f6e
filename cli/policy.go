package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/tui"
	"github.com/spf13/cobra"
)

// NewPolicyCmd creates the policy command.
func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage guild policies",
		Long: `Manage guild policies.

A policy is a YAML list of checks, evaluated top to bottom:

  - block_bots:
  - minimum_creation_time: 172800
  - username_regex: "(?i)free nitro"

Documents are compiled before they are stored. A rejected document
never replaces the active policy.`,
	}

	cmd.AddCommand(
		newPolicyListCmd(),
		newPolicyGetCmd(),
		newPolicySetCmd(),
		newPolicyValidateCmd(),
		newPolicyDeleteCmd(),
	)

	return cmd
}

func newPolicyListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List guilds with a stored policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(app *App) error {
				if err := app.UsePresenter(format, cmd.OutOrStdout()); err != nil {
					return err
				}

				infos, err := app.Store.ListPolicies(cmd.Context())
				if err != nil {
					return ErrDatabase("failed to list policies", err)
				}

				views := make([]*tui.GuildPolicyView, 0, len(infos))
				for _, info := range infos {
					views = append(views, &tui.GuildPolicyView{
						GuildID:   info.GuildID,
						SizeBytes: info.SizeBytes,
						UpdatedAt: info.UpdatedAt,
					})
				}

				return app.Presenter.RenderGuilds(views)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, jsonl, csv")

	return cmd
}

func newPolicyGetCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <guild-id>",
		Short: "Show the policy of a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID := args[0]

			return withStore(cmd.Context(), func(app *App) error {
				if err := app.UsePresenter(format, cmd.OutOrStdout()); err != nil {
					return err
				}

				doc, ok, err := app.Store.ReadPolicy(cmd.Context(), guildID)
				if err != nil {
					return ErrDatabase("failed to read policy", err)
				}
				if !ok {
					return NewCLIError(ExitPolicy, fmt.Sprintf("no policy configured for guild %s", guildID))
				}

				policy, err := gatekeeper.NewCompiler(app.Registry).Compile(guildID, doc)
				if err != nil {
					return ErrPolicy("stored policy is invalid", err)
				}

				return app.Presenter.RenderPolicy(&tui.PolicyView{
					GuildID:  guildID,
					Document: string(doc),
					Checks:   policy.CheckKeys(),
					Digest:   policy.Digest(),
				})
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, jsonl, csv")

	return cmd
}

func newPolicySetCmd() *cobra.Command {
	var (
		format string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "set <guild-id> <file|->",
		Short: "Replace the policy of a guild",
		Long: `Replace the policy of a guild.

The document is compiled first. On success it is stored and the change
is shown as a unified diff against the previous document.`,
		Example: `  gatekeeper policy set 1234 policy.yaml
  cat policy.yaml | gatekeeper policy set 1234 -
  gatekeeper policy set 1234 policy.yaml --dry-run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID := args[0]

			doc, err := readDocument(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}

			return withStore(cmd.Context(), func(app *App) error {
				if err := app.UsePresenter(format, cmd.OutOrStdout()); err != nil {
					return err
				}

				previous, _, err := app.Store.ReadPolicy(cmd.Context(), guildID)
				if err != nil {
					return ErrDatabase("failed to read policy", err)
				}

				diff, err := policyDiff(guildID, previous, doc)
				if err != nil {
					return err
				}

				if dryRun {
					if _, err := gatekeeper.NewCompiler(app.Registry).Compile(guildID, doc); err != nil {
						return ErrPolicy("policy rejected", err)
					}
					return app.Presenter.RenderDiff(diff)
				}

				if _, err := app.NewEngine(nil).UpdatePolicy(cmd.Context(), guildID, doc); err != nil {
					if _, ok := gatekeeper.AsConfigError(err); ok {
						return ErrPolicy("policy rejected", err)
					}
					return ErrDatabase("failed to store policy", err)
				}

				return app.Presenter.RenderDiff(diff)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, jsonl, csv")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compile and show the diff without storing")

	return cmd
}

func newPolicyValidateCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate <file|->",
		Short: "Compile a policy document without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp()
			if err != nil {
				return err
			}

			if err := app.UsePresenter(format, cmd.OutOrStdout()); err != nil {
				return err
			}

			doc, err := readDocument(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			view := &tui.ValidationView{Source: args[0]}

			policy, err := gatekeeper.NewCompiler(app.Registry).Compile("", doc)
			if err != nil {
				view.Message = err.Error()
				if cfgErr, ok := gatekeeper.AsConfigError(err); ok {
					view.Code = string(cfgErr.Code)
					view.Line = cfgErr.Line
					view.Message = cfgErr.Detail
				}

				if rerr := app.Presenter.RenderValidation(view); rerr != nil {
					return rerr
				}
				return ErrPolicy("policy rejected", err)
			}

			view.Valid = true
			view.Checks = policy.CheckKeys()

			return app.Presenter.RenderValidation(view)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, jsonl, csv")

	return cmd
}

func newPolicyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <guild-id>",
		Short: "Remove the policy of a guild",
		Long: `Remove the policy of a guild.

Without a policy every join to the guild is allowed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID := args[0]

			return withStore(cmd.Context(), func(app *App) error {
				app.Presenter = tui.NewPresenter(tui.FormatTable, presenterOptions(app.Config, cmd.OutOrStdout()))

				if err := app.NewEngine(nil).DeletePolicy(cmd.Context(), guildID); err != nil {
					return ErrDatabase("failed to delete policy", err)
				}

				return app.Presenter.RenderMessage(fmt.Sprintf("Deleted policy for guild %s.", guildID))
			})
		},
	}

	return cmd
}

// readDocument reads a policy document from a file, or from stdin when
// the name is "-".
func readDocument(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		doc, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return doc, nil
	}

	doc, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return doc, nil
}

// policyDiff builds a unified diff between the stored and the proposed
// document.
func policyDiff(guildID string, previous, proposed []byte) (*tui.DiffView, error) {
	view := &tui.DiffView{
		GuildID: guildID,
		Changed: !bytes.Equal(previous, proposed),
	}
	if !view.Changed {
		return view, nil
	}

	content, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(previous)),
		B:        difflib.SplitLines(string(proposed)),
		FromFile: guildID + " (current)",
		ToFile:   guildID + " (proposed)",
		Context:  3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to diff policy: %w", err)
	}

	view.Content = content
	return view, nil
}
