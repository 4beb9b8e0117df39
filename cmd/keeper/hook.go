package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/4thel00z/keeper/internal"
	"github.com/spf13/cobra"
)

// Hook handlers exit non-zero when an event cannot be recorded. A repository
// keeper was never initialized in is not an error: the shims may outlive it.

func NewHookCmd(a *app) *cobra.Command {
	hookCmd := &cobra.Command{
		Use:    "hook",
		Short:  "Git hook handlers (internal)",
		Hidden: true,
	}

	hookCmd.AddCommand(
		newPostCommitHookCmd(a),
		newPostRewriteHookCmd(a),
		newPostCheckoutHookCmd(a),
		newReferenceTransactionHookCmd(a),
	)
	return hookCmd
}

func reportHookError(cmd *cobra.Command, hook string, err error) error {
	if errors.Is(err, internal.ErrNotInitialized) {
		fmt.Fprintf(cmd.ErrOrStderr(), "keeper %s: %v\n", hook, err)
		return nil
	}
	return fmt.Errorf("%s hook: %w", hook, err)
}

func reportSkipped(cmd *cobra.Command, skipped int) {
	if skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "keeper: skipped %s\n", internal.Pluralize(skipped, "malformed line", "malformed lines"))
	}
}

func newPostCommitHookCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:  internal.HookPostCommit,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := internal.NewPostCommitUseCase(a.open).Execute(cmd.Context())
			if err != nil {
				return reportHookError(cmd, internal.HookPostCommit, err)
			}
			if out.Commit != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "keeper: processed commit: %s %s\n", out.Commit.Oid.Short(), out.Commit.Summary)
			}
			return nil
		},
	}
}

func newPostRewriteHookCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:  internal.HookPostRewrite + " <amend|rebase>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := internal.NewPostRewriteUseCase(a.open).Execute(cmd.Context(), internal.PostRewriteInput{
				RewriteType: args[0],
				Lines:       cmd.InOrStdin(),
			})
			if err != nil {
				return reportHookError(cmd, internal.HookPostRewrite, err)
			}
			reportSkipped(cmd, out.Skipped)
			if out.Spurious {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "keeper: processing %s\n", internal.Pluralize(out.Rewritten, "rewritten commit", "rewritten commits"))
			if out.Abandoned != nil {
				fmt.Fprint(cmd.OutOrStdout(), a.renderer.RenderAbandonedWarning(out.Abandoned))
			}
			return nil
		},
	}
}

func newPostCheckoutHookCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:  internal.HookPostCheckout + " <previous-head> <current-head> <is-branch-checkout>",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			flag, err := strconv.Atoi(args[2])
			if err != nil {
				return reportHookError(cmd, internal.HookPostCheckout, fmt.Errorf("invalid checkout flag %q", args[2]))
			}

			out, err := internal.NewPostCheckoutUseCase(a.open).Execute(cmd.Context(), internal.PostCheckoutInput{
				PreviousHead:     args[0],
				CurrentHead:      args[1],
				IsBranchCheckout: flag != 0,
			})
			if err != nil {
				return reportHookError(cmd, internal.HookPostCheckout, err)
			}
			if out.Recorded {
				fmt.Fprintln(cmd.OutOrStdout(), "keeper: processing checkout")
			}
			return nil
		},
	}
}

func newReferenceTransactionHookCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:  internal.HookReferenceTransaction + " <prepared|committed|aborted>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := internal.NewReferenceTransactionUseCase(a.open).Execute(cmd.Context(), internal.ReferenceTransactionInput{
				State: args[0],
				Lines: cmd.InOrStdin(),
			})
			if err != nil {
				return reportHookError(cmd, internal.HookReferenceTransaction, err)
			}
			reportSkipped(cmd, out.Skipped)
			if len(out.Updates) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "keeper: %s\n", out.Summary())
			}
			return nil
		},
	}
}
