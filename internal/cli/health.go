package cli

import (
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult

			if err := client.Get(cmd.Context(), "/api/v1/health", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <token>",
		Short: "Save an access token for later commands",
		Long: `Save an access token issued by the identity provider to the token file.

The token is checked against the server before it is saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client.SetToken(args[0])

			var acct Account
			if err := client.Get(cmd.Context(), "/api/v1/accounts/me", &acct); err != nil {
				return err
			}

			if err := cfg.SaveToken(args[0]); err != nil {
				return err
			}

			output(cmd).Print(acct)
			return nil
		},
	}
}
