package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newLeaderboardCmd() *cobra.Command {
	var by string
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top players",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("by", by)
			if limit > 0 {
				q.Set("limit", fmt.Sprint(limit))
			}

			var result Leaderboard
			if err := client.Get(cmd.Context(), "/api/v1/leaderboard?"+q.Encode(), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", "points", "Ranking: points or experience")
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of entries (server default when 0)")

	return cmd
}

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <message>",
		Short: "Check whether a message may be posted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ChatVerdict
			if err := client.Post(cmd.Context(), "/api/v1/chat/check", map[string]string{"message": args[0]}, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "question",
		Short: "Show the chat bot's open question",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result BotQuestion
			if err := client.Get(cmd.Context(), "/api/v1/chat/question", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	})

	return cmd
}
