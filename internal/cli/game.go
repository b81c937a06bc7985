package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSpinCmd() *cobra.Command {
	var requestID string

	cmd := &cobra.Command{
		Use:   "spin",
		Short: "Spin the reels (costs 50 points)",
		Long: `Spin three reels for 50 points.

Three of a kind pays three times the symbol's value and an adjacent pair
pays the symbol's value. Every spin carries a request id, so a spin retried
after a lost response is settled once. Pass --request-id to choose it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				requestID = uuid.NewString()
			}

			var result SpinResult
			req := Request{
				Method:         http.MethodPost,
				Path:           "/api/v1/games/spin",
				IdempotencyKey: requestID,
			}
			if err := client.Do(cmd.Context(), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request-id", "", "Idempotency key for the spin (random when empty)")

	return cmd
}

func newRoundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "round",
		Short: "Timed impostor and quiz rounds",
	}

	cmd.AddCommand(newRoundStartCmd())
	cmd.AddCommand(newRoundCompleteCmd())

	return cmd
}

func newRoundStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "start <impostor|quiz>",
		Short:     "Start a timed round",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"impostor", "quiz"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var result RoundStarted

			path := fmt.Sprintf("/api/v1/games/%s/rounds", url.PathEscape(args[0]))
			if err := client.Post(cmd.Context(), path, nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

// answer is one quiz answer as sent to the server
type answer struct {
	QuestionID  int `json:"question_id"`
	Answer      int `json:"answer"`
	SecondsLeft int `json:"seconds_left"`
}

func newRoundCompleteCmd() *cobra.Command {
	var pick int
	var answers []string

	cmd := &cobra.Command{
		Use:   "complete <round-id>",
		Short: "Submit a round",
		Long: `Submit an impostor pick or quiz answers for a round.

Impostor rounds take --pick with the suspected character's index.
Quiz rounds take one --answer per question as question=option[@seconds-left],
for example --answer 3=1@12.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{}
			if cmd.Flags().Changed("pick") {
				body["pick"] = pick
			}
			if len(answers) > 0 {
				parsed, err := parseAnswers(answers)
				if err != nil {
					return err
				}
				body["answers"] = parsed
			}

			var result RoundCompleted
			path := fmt.Sprintf("/api/v1/rounds/%s/complete", url.PathEscape(args[0]))
			if err := client.Do(cmd.Context(), Request{
				Method: http.MethodPost,
				Path:   path,
				Body:   body,
				// Completing a round twice returns the stored result
				IdempotencyKey: args[0],
			}, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&pick, "pick", 0, "Impostor pick")
	cmd.Flags().StringArrayVar(&answers, "answer", nil, "Quiz answer as question=option[@seconds-left]")

	return cmd
}

// parseAnswers reads question=option[@seconds] pairs
func parseAnswers(raw []string) ([]answer, error) {
	out := make([]answer, 0, len(raw))
	for _, r := range raw {
		q, rest, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("invalid answer %q: expected question=option", r)
		}
		opt, secs, hasSecs := strings.Cut(rest, "@")

		var a answer
		var err error
		if a.QuestionID, err = strconv.Atoi(strings.TrimSpace(q)); err != nil {
			return nil, fmt.Errorf("invalid question in %q", r)
		}
		if a.Answer, err = strconv.Atoi(strings.TrimSpace(opt)); err != nil {
			return nil, fmt.Errorf("invalid option in %q", r)
		}
		if hasSecs {
			if a.SecondsLeft, err = strconv.Atoi(strings.TrimSpace(secs)); err != nil {
				return nil, fmt.Errorf("invalid seconds in %q", r)
			}
		}
		out = append(out, a)
	}
	return out, nil
}
