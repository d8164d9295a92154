package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/insurelink/internal/api"
	"github.com/darmiel/insurelink/internal/core"
)

var providersCmd = &cobra.Command{
	Use:     "providers",
	Aliases: []string{"provider", "p"},
	Short:   "Inspect and manage registered providers",
}

var providersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		list, correlation, err := cli.ListProviders(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to list providers")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Name", "Endpoint", "State", "Session", "Limits", "Last Sync"})
		for _, p := range list {
			t.AppendRow(table.Row{
				bold(p.ID),
				p.Name,
				truncate(p.Endpoint, 40),
				p.State,
				yesNo(p.Sync.SessionActive),
				fmt.Sprintf("%d/min %d/h", p.RateLimit.RequestsPerMinute, p.RateLimit.RequestsPerHour),
				formatTime(p.Sync.LastSync),
			})
		}
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

var providersGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a single provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		p, correlation, err := cli.GetProvider(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "failed to get provider")
		}
		printProvider(p)
		return nil
	},
}

var providersRegisterCmd = &cobra.Command{
	Use:   "register -f FILE",
	Short: "Register a provider from a YAML file (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading provider file: %w", err)
		}
		var cfg core.ProviderConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing provider file: %w", err)
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		p, correlation, err := cli.RegisterProvider(cmd.Context(), cfg)
		if err != nil {
			return logError(err, correlation, "failed to register provider")
		}
		logSuccess("registered provider %s", bold(p.ID))
		return nil
	},
}

var providersRemoveCmd = &cobra.Command{
	Use:     "remove ID",
	Aliases: []string{"rm"},
	Short:   "Remove a provider and drop its token, cache and queue (admin)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		correlation, err := cli.RemoveProvider(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "failed to remove provider")
		}
		log.Debug().Str("correlation", correlation).Msg("provider removed")
		logSuccess("removed provider %s", bold(args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
	providersCmd.AddCommand(providersListCmd, providersGetCmd, providersRegisterCmd, providersRemoveCmd)

	providersRegisterCmd.Flags().StringP("file", "f", "", "YAML file with the provider config")
	_ = providersRegisterCmd.MarkFlagRequired("file")
}

func printProvider(p *api.ProviderSummary) {
	fmt.Println(bold("\n── Provider " + p.ID + " ──"))
	fmt.Printf("  %s:        %s\n", faint("Name"), p.Name)
	fmt.Printf("  %s:    %s\n", faint("Endpoint"), p.Endpoint)
	fmt.Printf("  %s: %s\n", faint("API Version"), p.APIVersion)
	fmt.Printf("  %s:   %s / %s\n", faint("Transport"), p.Transport, p.Encryption)
	fmt.Printf("  %s:      %d/min, %d/h\n", faint("Limits"), p.RateLimit.RequestsPerMinute, p.RateLimit.RequestsPerHour)
	fmt.Printf("  %s:       %s\n", faint("State"), p.State)
	fmt.Printf("  %s:     %s\n", faint("Session"), yesNo(p.Sync.SessionActive))
	fmt.Printf("  %s:   %s\n", faint("Last Sync"), formatTime(p.Sync.LastSync))
	fmt.Printf("  %s:   %s\n", faint("Next Sync"), formatTime(p.Sync.NextSync))
}
