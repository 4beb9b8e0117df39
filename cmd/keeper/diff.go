package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func NewDiffCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <tx>",
		Short: "Show what an event transaction changed",
		Long:  `Compare the smartlog just before and just after an event transaction.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeDiffRunner(a),
	}

	return cmd
}

func makeDiffRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tx, err := parseTx(args[0])
		if err != nil {
			return err
		}

		diff, err := a.historySvc.Diff(cmd.Context(), tx)
		if err != nil {
			return fmt.Errorf("get diff: %w", err)
		}

		if !hasChanges(diff) {
			fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
			return nil
		}

		fmt.Fprint(cmd.OutOrStdout(), diff)
		return nil
	}
}

func hasChanges(diff string) bool {
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			return true
		}
	}
	return false
}
