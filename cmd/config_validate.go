package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Parses the config file, validates every provider and compiles the compliance
rules. Nothing is connected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return logError(err, "", "configuration is invalid")
		}
		rules, err := cfg.ComplianceRules()
		if err != nil {
			return logError(err, "", "compliance rules are invalid")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Provider", "Endpoint", "Transport", "Encryption", "Sync"})
		for _, p := range cfg.Providers {
			sync := faint("off")
			if p.SyncInterval > 0 {
				sync = p.SyncInterval.String()
			}
			t.AppendRow(table.Row{bold(p.ID), p.Endpoint, p.Transport.Type, p.Encryption.Type, sync})
		}
		applyTableFormat(t)
		t.Render()

		logSuccess("configuration is valid (%d providers, %d compliance rules, admin api %s)",
			len(cfg.Providers), len(rules), enabled(cfg.Admin.Secret() != nil))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	f.bindConfigFlag(configValidateCmd.Flags())
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return fmt.Sprint(faint("disabled"))
}
