package main

import (
	"context"
	"fmt"

	"github.com/4thel00z/keeper/internal"
	"github.com/spf13/cobra"
)

func NewHideCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hide <commit>...",
		Short: "Hide commits from the smartlog",
		Long: `Hide commits from the smartlog. Nothing is deleted: the commits stay in the
repository and "keeper unhide" brings them back.`,
		Args: cobra.MinimumNArgs(1),
		RunE: makeVisibilityRunner(a, "Hid", func(v *internal.VisibilityService) visibilityFunc { return v.Hide }),
	}
	addVisibilityFlags(cmd)
	return cmd
}

func NewUnhideCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unhide <commit>...",
		Short: "Show previously hidden commits again",
		Args:  cobra.MinimumNArgs(1),
		RunE:  makeVisibilityRunner(a, "Unhid", func(v *internal.VisibilityService) visibilityFunc { return v.Unhide }),
	}
	addVisibilityFlags(cmd)
	return cmd
}

type visibilityFunc = func(ctx context.Context, input internal.VisibilityInput) ([]internal.NonZeroOid, error)

func addVisibilityFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("recursive", "r", false, "Also apply to every descendant commit")
	cmd.Flags().String("reason", "", "Note recorded with the event")
}

func makeVisibilityRunner(a *app, verb string, pick func(*internal.VisibilityService) visibilityFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		reason, _ := cmd.Flags().GetString("reason")

		oids, err := pick(a.visibilitySvc)(cmd.Context(), internal.VisibilityInput{
			Revisions: args,
			Reason:    reason,
			Recursive: recursive,
		})
		if err != nil {
			return err
		}

		if wantJSON(cmd) {
			out := make([]string, 0, len(oids))
			for _, oid := range oids {
				out = append(out, oid.String())
			}
			return writeJSON(cmd, out)
		}
		for _, oid := range oids {
			fmt.Fprintf(cmd.OutOrStdout(), "%s commit %s\n", verb, oid.Short())
		}
		return nil
	}
}
