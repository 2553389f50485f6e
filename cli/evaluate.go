package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/core/member"
	"github.com/safedep/gatekeeper/tui"
	"github.com/spf13/cobra"
)

type evaluateParams struct {
	memberID      string
	username      string
	discriminator string
	age           string
	avatar        string
	bot           bool
	policyFile    string
	format        string
}

// NewEvaluateCmd creates the evaluate command.
func NewEvaluateCmd() *cobra.Command {
	var p evaluateParams

	cmd := &cobra.Command{
		Use:   "evaluate <guild-id>",
		Short: "Dry-run a join against a guild policy",
		Long: `Dry-run a join against a guild policy.

Builds a synthetic join event from the flags and evaluates it against
the stored policy of the guild, or against a policy file. Nothing is
kicked, posted or recorded.`,
		Example: `  gatekeeper evaluate 1234 --username spam_bot --age 2h
  gatekeeper evaluate 1234 --bot
  gatekeeper evaluate 1234 --policy draft.yaml --username alice --avatar abc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID := args[0]

			age, err := parseSpan(p.age)
			if err != nil {
				return NewCLIError(ExitGeneral, fmt.Sprintf("invalid --age: %v", err))
			}

			event := member.NewJoinEvent(guildID, p.memberID, p.username, time.Now().Add(-age))
			event.Discriminator = p.discriminator
			event.Avatar = p.avatar
			event.Bot = p.bot

			if p.policyFile != "" {
				app, err := loadApp()
				if err != nil {
					return err
				}
				return evaluateWithFile(cmd, app, &p, event)
			}

			return withStore(cmd.Context(), func(app *App) error {
				if err := app.UsePresenter(p.format, cmd.OutOrStdout()); err != nil {
					return err
				}
				return renderEvaluation(cmd.Context(), app, app.NewEngine(nil), event)
			})
		},
	}

	cmd.Flags().StringVar(&p.memberID, "member-id", "dry-run", "member id of the synthetic join")
	cmd.Flags().StringVar(&p.username, "username", "member", "account name")
	cmd.Flags().StringVar(&p.discriminator, "discriminator", "", "legacy four digit tag")
	cmd.Flags().StringVar(&p.age, "age", "365d", "account age, e.g. 2h, 3d, 1w")
	cmd.Flags().StringVar(&p.avatar, "avatar", "", "avatar hash; empty means the default avatar")
	cmd.Flags().BoolVar(&p.bot, "bot", false, "mark the account as a bot")
	cmd.Flags().StringVar(&p.policyFile, "policy", "", "evaluate against this document instead of the stored policy")
	cmd.Flags().StringVar(&p.format, "format", "table", "output format: table, json, jsonl, csv")

	return cmd
}

func evaluateWithFile(cmd *cobra.Command, app *App, p *evaluateParams, event *member.JoinEvent) error {
	if err := app.UsePresenter(p.format, cmd.OutOrStdout()); err != nil {
		return err
	}

	doc, err := readDocument(p.policyFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	engine := gatekeeper.New(app.Registry, nil, &gatekeeper.Config{Timeout: app.Config.Engine.Timeout})
	policy, err := engine.Compiler().Compile(event.GuildID, doc)
	if err != nil {
		return ErrPolicy("policy rejected", err)
	}
	engine.Install(policy)

	return renderEvaluation(cmd.Context(), app, engine, event)
}

func renderEvaluation(ctx context.Context, app *App, engine *gatekeeper.Engine, event *member.JoinEvent) error {
	verdict := engine.Evaluate(ctx, event)
	return app.Presenter.RenderVerdict(tui.NewVerdictView(verdict, event.MemberID, event.Tag()))
}
