package cli

import (
	"net/http"

	"github.com/spf13/cobra"
)

func newAwardCmd() *cobra.Command {
	var userID, gameType, roundID string
	var points int64

	cmd := &cobra.Command{
		Use:   "award",
		Short: "Report a finished game through the legacy award endpoint",
		Long: `Report a finished game the way the minigame pages do.

The player's experience grows by the game's award. Passing --round-id makes
the report safe to repeat.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"userId":       userID,
				"gameType":     gameType,
				"pointsEarned": points,
			}
			if roundID != "" {
				body["roundId"] = roundID
			}

			var result AwardResult
			if err := client.Do(cmd.Context(), Request{
				Method:         http.MethodPost,
				Path:           "/award-experience",
				Body:           body,
				IdempotencyKey: roundID,
			}, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Player id (required)")
	cmd.Flags().StringVar(&gameType, "game", "", "Game type: impostor, spin, quiz (required)")
	cmd.Flags().Int64Var(&points, "points", 0, "Points earned in the game")
	cmd.Flags().StringVar(&roundID, "round-id", "", "Round id used as the idempotency key")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("game")

	return cmd
}
