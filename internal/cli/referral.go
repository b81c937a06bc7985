package cli

import (
	"github.com/spf13/cobra"
)

func newReferralCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "referral",
		Short: "Referral commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "code",
		Short: "Show your referral code",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ReferralCode
			if err := client.Get(cmd.Context(), "/api/v1/accounts/me/referral", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "apply <code>",
		Short: "Claim the signup bonus with a friend's code (before your first game)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ReferralBonus
			if err := client.Post(cmd.Context(), "/api/v1/accounts/me/referral", map[string]string{"code": args[0]}, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	})

	return cmd
}
