package main

import (
	"fmt"

	"github.com/4thel00z/keeper/internal"
	"github.com/spf13/cobra"
)

func NewInstallCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install keeper's git hooks",
		Long:  `Install the post-commit, post-rewrite, post-checkout and reference-transaction hooks that feed the event log.`,
		Args:  cobra.NoArgs,
		RunE:  makeInstallRunner(a),
	}

	cmd.Flags().Bool("force", false, "Overwrite existing hooks (backs up originals)")
	return cmd
}

func makeInstallRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")

		out, err := internal.NewInstallHooksUseCase(a.resolver).Execute(cmd.Context(), internal.InstallHooksInput{Force: force})
		if err != nil {
			return err
		}

		for _, hook := range out.BackedUp {
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up existing %s hook to %s.bak\n", hook, hook)
		}
		for _, hook := range out.Installed {
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s hook\n", hook)
		}
		return nil
	}
}
