package cmd

import (
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"task"},
	Short:   "Inspect the background retry and synchronization tasks",
	Long: `Every provider has a 'retry:<id>' task draining its retry queue and, with a sync
interval, a 'sync:<id>' task. Requires an admin token (insurelink login).`,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
