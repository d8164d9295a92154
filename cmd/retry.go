package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/darmiel/insurelink/internal/retry"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Inspect and drain the retry queue of a provider",
}

var retryListCmd = &cobra.Command{
	Use:     "list PROVIDER",
	Aliases: []string{"ls"},
	Short:   "List queued and permanently failed operations",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		res, correlation, err := cli.ListRetries(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "failed to list retries")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Operation", "State", "Attempts", "Next Attempt", "Last Error"})
		appendEntries(t, res.Pending, color.YellowString("pending"))
		appendEntries(t, res.Failed, color.RedString("failed"))
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

var retryRunCmd = &cobra.Command{
	Use:   "run PROVIDER",
	Short: "Re-execute every queued operation now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		report, correlation, err := cli.RetryFailedOperations(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "retry failed")
		}
		logSuccess("%d succeeded, %d rescheduled, %d failed permanently",
			report.Succeeded, report.Rescheduled, len(report.PermanentlyFailed))
		for _, e := range report.PermanentlyFailed {
			fmt.Printf("  %s %s %s: %s\n", redCross, e.ID, e.Op.Kind, e.LastError)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(retryCmd)
	retryCmd.AddCommand(retryListCmd, retryRunCmd)
}

func appendEntries(t table.Writer, entries []retry.Entry, state string) {
	for _, e := range entries {
		t.AppendRow(table.Row{
			truncate(e.ID, 12),
			string(e.Op.Kind),
			state,
			e.Attempts,
			formatTime(&e.NextAttempt),
			truncate(e.LastError, 50),
		})
	}
}
