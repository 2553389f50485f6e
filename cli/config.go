package cli

import (
	"fmt"
	"os"

	"github.com/safedep/gatekeeper/config"
	"github.com/safedep/gatekeeper/tui"
	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or modify configuration",
		Long: `View or modify configuration.

Values are read from the config file, with GATEKEEPER_* environment
variables taking precedence when the server starts.`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigResetCmd(),
	)

	return cmd
}

// configPath returns the file the config commands operate on.
func configPath() string {
	if globalFlags.ConfigPath != "" {
		return globalFlags.ConfigPath
	}
	return config.ResolvePaths().ConfigFile
}

func newConfigShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp()
			if err != nil {
				return err
			}

			if err := app.UsePresenter(format, cmd.OutOrStdout()); err != nil {
				return err
			}

			mgr, err := config.NewManager(configPath())
			if err != nil {
				return ErrConfig("failed to read config", err)
			}

			return app.Presenter.RenderConfig(&tui.ConfigView{
				Location: mgr.ConfigPath(),
				Values:   mgr.AllSettings(),
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, jsonl, csv")

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get specific config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			mgr, err := config.NewManager(configPath())
			if err != nil {
				return ErrConfig("failed to read config", err)
			}

			value := mgr.Get(key)
			if value == nil {
				return NewCLIError(ExitConfig, fmt.Sprintf("key not found: %s", key))
			}

			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set config value",
		Long: `Set config value.

The resulting configuration is validated before it is written. An
invalid value leaves the file untouched.`,
		Example: `  gatekeeper config set engine.timeout 500ms
  gatekeeper config set storage.policy_backend redis
  gatekeeper config set moderation.channels.1234 5678`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			mgr, err := config.NewManager(configPath())
			if err != nil {
				return ErrConfig("failed to read config", err)
			}

			value := config.ParseValue(args[1])
			if err := mgr.Set(key, value); err != nil {
				return ErrConfig(fmt.Sprintf("failed to set %s", key), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, value)
			return nil
		},
	}

	return cmd
}

func newConfigResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset to default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()

			// A file that no longer parses can still be reset.
			mgr, err := config.NewManager(path)
			if err != nil {
				if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
					return ErrConfig("failed to reset config", rerr)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults.")
				return nil
			}

			if err := mgr.Reset(); err != nil {
				return ErrConfig("failed to reset config", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults.")
			return nil
		},
	}

	return cmd
}
