package main

import (
	"fmt"

	"github.com/4thel00z/keeper/internal"
	"github.com/spf13/cobra"
)

func NewInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Start recording history for this repository",
		Long:  `Create keeper's database and config inside the git directory and install its hooks.`,
		Args:  cobra.NoArgs,
		RunE:  makeInitRunner(a),
	}

	cmd.Flags().String("main-branch", "", "Name of the main branch (default: from config, else main)")
	cmd.Flags().Bool("no-hooks", false, "Do not install git hooks")
	cmd.Flags().Bool("force", false, "Overwrite existing hooks (backs up originals)")
	return cmd
}

func makeInitRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		mainBranch, _ := cmd.Flags().GetString("main-branch")
		noHooks, _ := cmd.Flags().GetBool("no-hooks")
		force, _ := cmd.Flags().GetBool("force")

		uc := internal.NewInitUseCase(a.resolver, a.openAt)
		out, err := uc.Execute(cmd.Context(), internal.InitInput{
			MainBranch: mainBranch,
			NoHooks:    noHooks,
			Force:      force,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Initialized keeper in %s\n", out.Location.MetaDir())
		for _, hook := range out.Installed {
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s hook\n", hook)
		}
		return nil
	}
}
