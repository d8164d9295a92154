package cmd

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Create an admin token signed with the secret of the config file",
	Long: `Signs an HS256 token with admin.jwt_secret (or the variable named by
admin.jwt_secret_env) of the server config. Pass it to 'insurelink login'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		roles, _ := cmd.Flags().GetStringSlice("roles")

		cfg, err := f.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		secret := cfg.Admin.Secret()
		if secret == nil {
			return fmt.Errorf("no admin secret configured")
		}

		token, err := signAdminToken(secret, subject, roles, ttl, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminTokenCmd)

	f.bindConfigFlag(adminTokenCmd.Flags())
	adminTokenCmd.Flags().String("subject", "operator", "Subject of the token")
	adminTokenCmd.Flags().Duration("ttl", 12*time.Hour, "Lifetime of the token")
	adminTokenCmd.Flags().StringSlice("roles", []string{"admin"}, "Roles granted by the token")
}

func signAdminToken(secret []byte, subject string, roles []string, ttl time.Duration, now time.Time) (string, error) {
	claims := struct {
		jwt.RegisteredClaims
		Roles []string `json:"roles"`
	}{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    "insurelink",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing admin token: %w", err)
	}
	return s, nil
}
