package round

import (
	"fmt"
	"time"

	"github.com/mcoot/gaminghub/internal/model"
)

const (
	// ImpostorCharacters is the number of cards the impostor hides among
	ImpostorCharacters = 6
	// ImpostorTimeLimit is how long a player has to pick
	ImpostorTimeLimit = 30 * time.Second
	impostorBasePoints = 50

	// QuizQuestionTime is the per-question answer window
	QuizQuestionTime = 15 * time.Second

	// Every second left on the clock is worth this many points
	pointsPerSecondLeft = 2
)

// Submission is a player's answer to a round
type Submission struct {
	// Pick is the card chosen in an impostor round
	Pick *int `json:"pick,omitempty"`
	// Answers are the quiz answers
	Answers []QuizAnswer `json:"answers,omitempty"`
}

// QuizAnswer is one answered quiz question
type QuizAnswer struct {
	QuestionID int `json:"question_id"`
	Answer     int `json:"answer"`
	// SecondsLeft is what the player's timer showed when answering
	SecondsLeft int `json:"seconds_left"`
}

// scoreImpostor awards points for finding the impostor, faster is better
func scoreImpostor(round *model.Round, sub Submission, now time.Time) (int64, map[string]any, error) {
	if sub.Pick == nil {
		return 0, nil, fmt.Errorf("%w: pick is required", model.ErrInvalidSubmission)
	}
	pick := *sub.Pick
	if pick < 0 || pick >= ImpostorCharacters {
		return 0, nil, fmt.Errorf("%w: pick must be between 0 and %d", model.ErrInvalidSubmission, ImpostorCharacters-1)
	}

	impostor, ok := intValue(round.Secret["impostor"])
	if !ok {
		return 0, nil, fmt.Errorf("round %s has no impostor", round.ID)
	}

	secondsLeft := int64(round.Deadline.Sub(now) / time.Second)
	secondsLeft = clamp(secondsLeft, 0, int64(ImpostorTimeLimit/time.Second))

	correct := pick == impostor
	var points int64
	if correct {
		points = impostorBasePoints + pointsPerSecondLeft*secondsLeft
	}
	return points, map[string]any{
		"pick":         pick,
		"impostor":     impostor,
		"correct":      correct,
		"seconds_left": secondsLeft,
	}, nil
}

// scoreQuiz awards points for each correct answer, faster is better.
// Each question counts once; the client-reported timer is clamped to the window.
func scoreQuiz(bank *QuizBank, sub Submission) (int64, map[string]any, error) {
	maxSeconds := int64(QuizQuestionTime / time.Second)
	seen := make(map[int]bool, len(sub.Answers))
	var points int64
	correctAnswers := 0

	for _, a := range sub.Answers {
		q, ok := bank.Question(a.QuestionID)
		if !ok {
			return 0, nil, fmt.Errorf("%w: unknown question %d", model.ErrInvalidSubmission, a.QuestionID)
		}
		if seen[a.QuestionID] {
			return 0, nil, fmt.Errorf("%w: question %d answered twice", model.ErrInvalidSubmission, a.QuestionID)
		}
		seen[a.QuestionID] = true

		if a.Answer != q.Correct {
			continue
		}
		correctAnswers++
		points += q.Points + pointsPerSecondLeft*clamp(int64(a.SecondsLeft), 0, maxSeconds)
	}

	return points, map[string]any{
		"correct_answers": correctAnswers,
		"total_questions": bank.Len(),
	}, nil
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// intValue reads an int stored in round data, before or after a JSON round trip
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
