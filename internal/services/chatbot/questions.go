package chatbot

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed bot_questions.json
var botQuestionsJSON []byte

// Question is one chat bot prompt. A chat message containing Answer wins Reward.
type Question struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Reward   int64  `json:"reward"`
}

// ValidateQuestions rejects a bank the bot could not ask from
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("chat bot question bank is empty")
	}
	seen := make(map[int]struct{}, len(questions))
	for _, q := range questions {
		if strings.TrimSpace(q.Answer) == "" {
			return fmt.Errorf("question %d: empty answer", q.ID)
		}
		if q.Reward <= 0 {
			return fmt.Errorf("question %d: reward must be positive", q.ID)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("question %d: duplicate id", q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// DefaultQuestions loads the embedded question bank
func DefaultQuestions() ([]Question, error) {
	var questions []Question
	if err := json.Unmarshal(botQuestionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("decode chat bot questions: %w", err)
	}
	if err := ValidateQuestions(questions); err != nil {
		return nil, err
	}
	return questions, nil
}
