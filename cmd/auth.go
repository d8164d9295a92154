package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/darmiel/insurelink/internal/core"
)

const clientSecretKey = "client_secret"

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the provider tokens held by the server",
}

var authLoginCmd = &cobra.Command{
	Use:   "login PROVIDER",
	Short: "Authenticate the server with a provider",
	Long: `Exchanges client credentials for a provider token. The token stays on the server.
The client secret is read from --client-secret or INSURELINK_CLIENT_SECRET.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, _ := cmd.Flags().GetString("client-id")
		scope, _ := cmd.Flags().GetString("scope")
		secret := viper.GetString(clientSecretKey)
		if secret == "" {
			return fmt.Errorf("client secret not provided (use --client-secret or INSURELINK_CLIENT_SECRET)")
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		info, correlation, err := cli.Authenticate(cmd.Context(), args[0], core.Credentials{
			ClientID:     clientID,
			ClientSecret: secret,
			Scope:        scope,
		})
		if err != nil {
			return logError(err, correlation, "authentication failed")
		}
		logSuccess("authenticated with %s", bold(args[0]))
		printTokenInfo(info)
		return nil
	},
}

var authInfoCmd = &cobra.Command{
	Use:   "info PROVIDER",
	Short: "Describe the current provider token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		info, correlation, err := cli.TokenInfo(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "no token")
		}
		printTokenInfo(info)
		return nil
	},
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh PROVIDER",
	Short: "Refresh the provider token now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		info, correlation, err := cli.RefreshToken(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "refresh failed")
		}
		logSuccess("refreshed token of %s", bold(args[0]))
		printTokenInfo(info)
		return nil
	},
}

var authRevokeCmd = &cobra.Command{
	Use:   "revoke PROVIDER",
	Short: "Revoke the provider token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		if correlation, err := cli.RevokeToken(cmd.Context(), args[0]); err != nil {
			return logError(err, correlation, "revoke failed")
		}
		logSuccess("revoked token of %s", bold(args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd, authInfoCmd, authRefreshCmd, authRevokeCmd)

	authLoginCmd.Flags().String("client-id", "", "Client id issued by the provider")
	authLoginCmd.Flags().String("client-secret", "", "Client secret issued by the provider")
	authLoginCmd.Flags().String("scope", "", "Requested scope (optional)")
	_ = authLoginCmd.MarkFlagRequired("client-id")
	_ = viper.BindPFlag(clientSecretKey, authLoginCmd.Flags().Lookup("client-secret"))
}

func printTokenInfo(info *core.TokenInfo) {
	fmt.Printf("  %s: %s\n", faint("Fingerprint"), info.Fingerprint)
	fmt.Printf("  %s:        %s\n", faint("Type"), info.TokenType)
	fmt.Printf("  %s:     %s\n", faint("Expires"), formatTime(&info.ExpiresAt))
	fmt.Printf("  %s: %s\n", faint("Refreshable"), yesNo(info.Refreshable))
}
