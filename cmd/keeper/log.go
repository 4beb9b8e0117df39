package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/4thel00z/keeper/internal"
	"github.com/spf13/cobra"
)

func NewLogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the event log",
		Long:  `List recent event transactions, newest first, with the events each one recorded.`,
		Args:  cobra.NoArgs,
		RunE:  makeLogRunner(a),
	}

	cmd.Flags().IntP("number", "n", 10, "Limit number of transactions (0 for all)")
	cmd.Flags().Bool("oneline", false, "Show each transaction on one line")
	return cmd
}

func makeLogRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("number")
		oneline, _ := cmd.Flags().GetBool("oneline")

		entries, err := a.historySvc.List(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("read event log: %w", err)
		}

		if wantJSON(cmd) {
			return outputTransactionsJSON(cmd, entries)
		}

		for _, e := range entries {
			if oneline {
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s (%s)\n", e.ID, e.Message, internal.Pluralize(len(e.Events), "event", "events"))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tx %d %s\n", e.ID, e.Message)
			fmt.Fprintf(cmd.OutOrStdout(), "Date:   %s\n", e.Timestamp.Format("Mon Jan 2 15:04:05 2006 -0700"))
			for _, ev := range e.Events {
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", internal.Describe(ev))
			}
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	}
}

func outputTransactionsJSON(cmd *cobra.Command, entries []internal.TransactionEntry) error {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		events := make([]string, 0, len(e.Events))
		for _, ev := range e.Events {
			events = append(events, internal.Describe(ev))
		}
		out = append(out, map[string]any{
			"tx":        e.ID,
			"message":   e.Message,
			"timestamp": e.Timestamp,
			"events":    events,
		})
	}
	return writeJSON(cmd, out)
}

func parseTx(arg string) (internal.EventTransactionID, error) {
	n, err := strconv.ParseInt(strings.TrimPrefix(arg, "tx"), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid transaction id %q", arg)
	}
	return internal.EventTransactionID(n), nil
}
