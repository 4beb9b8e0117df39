package main

import (
	"fmt"
	"time"

	"github.com/4thel00z/keeper/internal"
	"github.com/spf13/cobra"
)

func NewSmartlogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "smartlog",
		Aliases: []string{"sl"},
		Short:   "Show your commits in progress",
		Long: `Show the commits you are working on, relative to the main branch.

Commits that have been hidden, or rewritten with nothing left building on them,
are left out. Use --at-tx to see the smartlog as it was right after an earlier
event transaction (see "keeper log").`,
		Args: cobra.NoArgs,
		RunE: makeSmartlogRunner(a),
	}

	cmd.Flags().Int64("at-tx", 0, "Show the smartlog as of this event transaction")
	cmd.Flags().Bool("hide-branches", false, "Let hidden commits disappear even when a branch points at them")
	cmd.Flags().Bool("watch", false, "Redraw whenever refs or the event log change")
	cmd.Flags().Duration("debounce", 200*time.Millisecond, "Debounce window for --watch")
	return cmd
}

func makeSmartlogRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		atTx, _ := cmd.Flags().GetInt64("at-tx")
		hideBranches, _ := cmd.Flags().GetBool("hide-branches")
		watch, _ := cmd.Flags().GetBool("watch")
		debounce, _ := cmd.Flags().GetDuration("debounce")

		input := internal.SmartlogInput{
			AtTx:         internal.EventTransactionID(atTx),
			HideBranches: hideBranches,
		}
		draw := func() error {
			return printSmartlog(cmd, a, input)
		}

		if !watch {
			return draw()
		}
		loc, err := a.resolver.Resolve("")
		if err != nil {
			return err
		}
		return watchRepository(cmd, loc, debounce, func() error {
			fmt.Fprint(cmd.OutOrStdout(), clearScreen)
			return draw()
		})
	}
}

func printSmartlog(cmd *cobra.Command, a *app, input internal.SmartlogInput) error {
	sl, err := a.smartlogSvc.Build(cmd.Context(), input)
	if err != nil {
		return fmt.Errorf("build smartlog: %w", err)
	}

	if wantJSON(cmd) {
		return writeJSON(cmd, sl.Entries())
	}
	fmt.Fprint(cmd.OutOrStdout(), a.renderer.Render(sl))
	return nil
}
