package main

import (
	"fmt"

	"github.com/4thel00z/keeper/internal"
	"github.com/spf13/cobra"
)

func NewUninstallCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove keeper's git hooks",
		Long:  `Remove the hooks installed by keeper. Restores any backed-up original hooks. The event log is kept.`,
		Args:  cobra.NoArgs,
		RunE:  makeUninstallRunner(a),
	}

	cmd.Flags().Bool("keep-config", false, "Leave the installed hooks list in the config untouched")
	return cmd
}

func makeUninstallRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		keepConfig, _ := cmd.Flags().GetBool("keep-config")

		out, err := internal.NewUninstallHooksUseCase(a.resolver).Execute(cmd.Context(), internal.UninstallHooksInput{
			KeepConfig: keepConfig,
		})
		if err != nil {
			return err
		}

		if len(out.Removed) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No keeper hooks installed")
			return nil
		}
		for _, hook := range out.Removed {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s hook\n", hook)
		}
		for _, hook := range out.Restored {
			fmt.Fprintf(cmd.OutOrStdout(), "Restored original %s hook\n", hook)
		}
		return nil
	}
}
