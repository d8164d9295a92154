package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/insurelink/internal/buildinfo"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show build information of the CLI and, with --server, of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		local := buildinfo.GetBuildInfo()
		printInfo("CLI", &local)

		if f.serverAddr() == "" {
			return nil
		}
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		log.Debug().Msg("Fetching build info from server...")
		remote, correlation, err := cli.Info(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to get info from server")
		}
		printInfo("Server", remote)

		if remote.WireSchema != local.WireSchema {
			log.Warn().Msgf("%s server speaks wire schema v%s, this CLI v%s",
				color.YellowString("!"), remote.WireSchema, local.WireSchema)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func printInfo(title string, info *buildinfo.Info) {
	fmt.Println(bold("\n── " + title + " ──"))
	fmt.Printf("  %s:     %s\n", faint("Version"), info.Version)
	fmt.Printf("  %s:      %s\n", faint("Commit"), info.CommitHash)
	fmt.Printf("  %s:          %s\n", faint("Go"), info.GoVersion)
	fmt.Printf("  %s: v%s\n", faint("Wire Schema"), info.WireSchema)
}
