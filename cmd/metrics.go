package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/darmiel/insurelink/internal/core"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics PROVIDER",
	Short: "Show request metrics, error statistics and compliance of a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id := args[0]

		m, correlation, err := cli.Metrics(ctx, id)
		if err != nil {
			return logError(err, correlation, "failed to get metrics")
		}
		stats, correlation, err := cli.ErrorStats(ctx, id)
		if err != nil {
			return logError(err, correlation, "failed to get error statistics")
		}
		comp, correlation, err := cli.Compliance(ctx, id)
		if err != nil {
			return logError(err, correlation, "failed to get compliance status")
		}

		fmt.Println(bold("\n── Requests ──"))
		fmt.Printf("  %s:         %d\n", faint("Total"), m.TotalRequests)
		fmt.Printf("  %s:    %d (%.1f%%)\n", faint("Successful"), m.SuccessfulRequests, m.SuccessRate()*100)
		fmt.Printf("  %s:        %d\n", faint("Failed"), m.FailedRequests)
		fmt.Printf("  %s:  %d\n", faint("Rate Limited"), m.RateLimited)
		fmt.Printf("  %s:    %d\n", faint("Cache Hits"), m.CacheHits)
		fmt.Printf("  %s:       %d\n", faint("Retries"), m.Retries)
		fmt.Printf("  %s:   %s\n", faint("Avg Latency"), m.AverageLatency)

		if stats.TotalErrors > 0 {
			fmt.Println(bold("\n── Errors ──"))
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Kind", "Count"})
			kinds := make([]string, 0, len(stats.ByKind))
			for k := range stats.ByKind {
				kinds = append(kinds, string(k))
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				t.AppendRow(table.Row{k, stats.ByKind[core.ErrorKind(k)]})
			}
			applyTableFormat(t)
			t.Render()
			fmt.Printf("  %s: %s (%s)\n", faint("Last"), stats.LastError, formatTime(stats.LastErrorAt))
		}

		fmt.Println(bold("\n── Compliance ──"))
		state := color.GreenString("compliant")
		if !comp.Compliant {
			state = color.RedString("not compliant")
		}
		fmt.Printf("  %s: %s (score %.2f, %d checks)\n", faint("State"), state, comp.Score, comp.Checks)
		for _, v := range comp.Violations {
			fmt.Printf("  %s [%s] %s: %s\n", redCross, v.Severity, v.Rule, v.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
