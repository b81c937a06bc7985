package round

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed quiz_questions.json
var quizQuestionsJSON []byte

// QuizQuestion is one multiple-choice question
type QuizQuestion struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  int      `json:"correct"`
	Points   int64    `json:"points"`
}

// PublicQuestion is a question without its answer
type PublicQuestion struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// QuizBank is the fixed set of questions every quiz round asks, in order
type QuizBank struct {
	questions []QuizQuestion
	byID      map[int]QuizQuestion
}

// NewQuizBank builds a bank, rejecting malformed questions
func NewQuizBank(questions []QuizQuestion) (*QuizBank, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("quiz bank is empty")
	}
	bank := &QuizBank{byID: make(map[int]QuizQuestion, len(questions))}
	for _, q := range questions {
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return nil, fmt.Errorf("question %d: correct option %d out of range", q.ID, q.Correct)
		}
		if _, dup := bank.byID[q.ID]; dup {
			return nil, fmt.Errorf("question %d: duplicate id", q.ID)
		}
		bank.byID[q.ID] = q
		bank.questions = append(bank.questions, q)
	}
	return bank, nil
}

// DefaultQuizBank loads the embedded questions
func DefaultQuizBank() (*QuizBank, error) {
	var questions []QuizQuestion
	if err := json.Unmarshal(quizQuestionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("decode quiz questions: %w", err)
	}
	return NewQuizBank(questions)
}

// Len returns the number of questions
func (b *QuizBank) Len() int {
	return len(b.questions)
}

// Public returns the questions with answers stripped
func (b *QuizBank) Public() []PublicQuestion {
	out := make([]PublicQuestion, len(b.questions))
	for i, q := range b.questions {
		out[i] = PublicQuestion{ID: q.ID, Question: q.Question, Options: q.Options}
	}
	return out
}

// Question looks a question up by id
func (b *QuizBank) Question(id int) (QuizQuestion, bool) {
	q, ok := b.byID[id]
	return q, ok
}
