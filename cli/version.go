package cli

import (
	"fmt"

	"github.com/safedep/gatekeeper/internal/release"
	"github.com/safedep/gatekeeper/internal/version"
	"github.com/spf13/cobra"
)

func NewVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "gatekeeper %s\n", version.Version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", version.Commit)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "https://github.com/safedep/gatekeeper\n")

			if !check {
				return nil
			}

			latest, err := release.NewChecker().Check(cmd.Context(), version.Version)
			if err != nil {
				return fmt.Errorf("failed to check for updates: %w", err)
			}

			if notice := latest.Notice(); notice != "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), notice)
			} else {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "up to date")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "check for a newer release")

	return cmd
}
