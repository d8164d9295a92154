package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/darmiel/insurelink/internal/core"
)

var claimsCmd = &cobra.Command{
	Use:     "claims",
	Aliases: []string{"claim"},
	Short:   "Submit, update and track claims",
}

func claimFromFlags(cmd *cobra.Command, id string) (core.Claim, error) {
	patient, _ := cmd.Flags().GetString("patient")
	amount, _ := cmd.Flags().GetFloat64("amount")
	claimType, _ := cmd.Flags().GetString("type")
	description, _ := cmd.Flags().GetString("description")
	dateStr, _ := cmd.Flags().GetString("date")

	claim := core.Claim{
		ID:          id,
		PatientID:   patient,
		Amount:      amount,
		Type:        core.ClaimType(claimType),
		Description: description,
	}
	if dateStr != "" {
		d, err := time.Parse(time.DateOnly, dateStr)
		if err != nil {
			return core.Claim{}, fmt.Errorf("invalid --date: %w", err)
		}
		claim.DateOfService = d
	}
	return claim, nil
}

func bindClaimFlags(cmd *cobra.Command) {
	cmd.Flags().String("patient", "", "Patient id")
	cmd.Flags().Float64("amount", 0, "Claimed amount")
	cmd.Flags().String("type", "", "Claim type (medical, dental, vision, prescription, mental_health, rehabilitation)")
	cmd.Flags().String("description", "", "Free text description")
	cmd.Flags().String("date", "", "Date of service (YYYY-MM-DD)")
}

var claimsSubmitCmd = &cobra.Command{
	Use:   "submit PROVIDER CLAIM_ID",
	Short: "Submit a new claim",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		claim, err := claimFromFlags(cmd, args[1])
		if err != nil {
			return err
		}
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		resp, correlation, err := cli.SubmitClaim(cmd.Context(), args[0], claim)
		if err != nil {
			return logError(err, correlation, "failed to submit claim")
		}
		logSuccess("claim %s is %s", bold(resp.ClaimID), resp.Status)
		if resp.Message != "" {
			fmt.Println(faint(resp.Message))
		}
		return nil
	},
}

var claimsUpdateCmd = &cobra.Command{
	Use:   "update PROVIDER CLAIM_ID",
	Short: "Replace the contents of a submitted claim",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		claim, err := claimFromFlags(cmd, args[1])
		if err != nil {
			return err
		}
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		resp, correlation, err := cli.UpdateClaim(cmd.Context(), args[0], claim)
		if err != nil {
			return logError(err, correlation, "failed to update claim")
		}
		logSuccess("claim %s is %s", bold(resp.ClaimID), resp.Status)
		return nil
	},
}

var claimsStatusCmd = &cobra.Command{
	Use:   "status PROVIDER CLAIM_ID",
	Short: "Show the processing status of a claim",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		st, correlation, err := cli.ClaimStatus(cmd.Context(), args[0], args[1])
		if err != nil {
			return logError(err, correlation, "failed to get claim status")
		}
		fmt.Printf("  %s:       %s\n", faint("Claim"), bold(st.ClaimID))
		fmt.Printf("  %s:      %s\n", faint("Status"), st.Status)
		fmt.Printf("  %s: %s\n", faint("Last Update"), formatTime(&st.LastUpdated))
		fmt.Printf("  %s: %s\n", faint("Next Update"), formatTime(st.NextUpdate))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(claimsCmd)
	claimsCmd.AddCommand(claimsSubmitCmd, claimsUpdateCmd, claimsStatusCmd)

	bindClaimFlags(claimsSubmitCmd)
	bindClaimFlags(claimsUpdateCmd)
}
