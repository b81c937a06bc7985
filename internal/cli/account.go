package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account commands",
	}

	cmd.AddCommand(newAccountShowCmd())
	cmd.AddCommand(newAccountRoundsCmd())
	cmd.AddCommand(newEventsCmd())

	return cmd
}

func newAccountShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show points, level and experience",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Account

			if err := client.Get(cmd.Context(), "/api/v1/accounts/me", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newAccountRoundsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "rounds",
		Short: "List recent rounds, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result RoundList

			path := "/api/v1/accounts/me/rounds"
			if limit > 0 {
				path = fmt.Sprintf("%s?limit=%d", path, limit)
			}
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Number of rounds (server default when 0)")

	return cmd
}
