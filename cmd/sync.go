package cmd

import (
	"fmt"
	"os"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/darmiel/insurelink/internal/core"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize provider data",
}

var syncRunCmd = &cobra.Command{
	Use:   "run PROVIDER [TYPE...]",
	Short: "Pull changes since the last synchronization",
	Long: `Pulls the given data types (claims, eligibility, coverage, benefits, payments).
Without types, the provider's configured set is used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		types := make([]core.DataType, 0, len(args)-1)
		for _, a := range args[1:] {
			types = append(types, core.DataType(a))
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		res, correlation, err := cli.Synchronize(cmd.Context(), args[0], types...)
		if err != nil {
			return logError(err, correlation, "synchronization failed")
		}

		keys := make([]string, 0, len(res.Data))
		for k := range res.Data {
			keys = append(keys, string(k))
		}
		slices.Sort(keys)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Type", "Size"})
		for _, k := range keys {
			t.AppendRow(table.Row{k, fmt.Sprintf("%d bytes", len(res.Data[core.DataType(k)]))})
		}
		applyTableFormat(t)
		t.Render()

		logSuccess("synchronized %s at %s", bold(args[0]), formatTime(&res.Timestamp))
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status PROVIDER",
	Short: "Show session, token and watermark state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		st, correlation, err := cli.SyncStatus(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "failed to get sync status")
		}
		fmt.Printf("  %s:        %s\n", faint("Session"), yesNo(st.SessionActive))
		fmt.Printf("  %s:  %s\n", faint("Authenticated"), yesNo(st.Authenticated))
		fmt.Printf("  %s: %s\n", faint("Token Expires"), formatTime(st.TokenExpiresAt))
		fmt.Printf("  %s:      %s\n", faint("Last Sync"), formatTime(st.LastSync))
		fmt.Printf("  %s:      %s\n", faint("Next Sync"), formatTime(st.NextSync))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncRunCmd, syncStatusCmd)
}
