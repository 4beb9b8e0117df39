package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func NewStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what keeper knows about this repository",
		Args:  cobra.NoArgs,
		RunE:  makeStatusRunner(a),
	}

	return cmd
}

func makeStatusRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		st, err := a.statusSvc.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("get status: %w", err)
		}

		if wantJSON(cmd) {
			return writeJSON(cmd, map[string]any{
				"git_dir":         st.Location.GitDir,
				"head":            st.Head.Oid.String(),
				"head_ref":        st.Head.ReferenceName,
				"main_branch":     st.MainBranch,
				"main":            st.Main.String(),
				"events":          st.Events,
				"hidden":          st.Hidden,
				"rebasing":        st.Rebasing,
				"hooks_installed": st.HooksInstalled,
			})
		}

		w := cmd.OutOrStdout()
		switch {
		case st.Head.Oid.IsZero():
			fmt.Fprintf(w, "On unborn branch %s\n", strings.TrimPrefix(st.Head.ReferenceName, "refs/heads/"))
		case st.Head.IsDetached():
			fmt.Fprintf(w, "HEAD detached at %s\n", shortOid(st.Head.Oid.String()))
		default:
			fmt.Fprintf(w, "On branch %s\n", strings.TrimPrefix(st.Head.ReferenceName, "refs/heads/"))
		}

		if st.Main.IsZero() {
			fmt.Fprintf(w, "Main branch %s not found\n", st.MainBranch)
		} else {
			fmt.Fprintf(w, "Main branch %s at %s\n", st.MainBranch, shortOid(st.Main.String()))
		}
		if st.Rebasing {
			fmt.Fprintln(w, "Rebase in progress")
		}
		fmt.Fprintf(w, "%d events, %d hidden commits\n", st.Events, st.Hidden)
		if len(st.HooksInstalled) == 0 {
			fmt.Fprintln(w, "No hooks installed (run keeper install)")
		} else {
			fmt.Fprintf(w, "Hooks: %s\n", strings.Join(st.HooksInstalled, ", "))
		}
		return nil
	}
}

func shortOid(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
