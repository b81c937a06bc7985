package model

import "time"

// BotSessionID identifies one question posted by the chat bot
type BotSessionID string

// BotSessionState is the lifecycle phase of a chat bot question
type BotSessionState string

const (
	BotSessionOpen     BotSessionState = "open"
	BotSessionAnswered BotSessionState = "answered"
	BotSessionExpired  BotSessionState = "expired"
)

// BotSession is a question the chat bot posted to the community chat.
// At most one session is open at a time; the first correct answer closes it.
type BotSession struct {
	ID         BotSessionID    `json:"id"`
	QuestionID int             `json:"question_id"`
	Question   string          `json:"question"`
	Answer     string          `json:"answer"`
	Reward     int64           `json:"reward"`
	State      BotSessionState `json:"state"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	WinnerID   PlayerID        `json:"winner_id,omitempty"`
	ClosedAt   *time.Time      `json:"closed_at,omitempty"`
}

// Expired reports whether an open session has run past its expiry
func (s *BotSession) Expired(now time.Time) bool {
	return s.State == BotSessionOpen && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Closed returns a copy of the session won by winner, or expired when winner is empty
func (s BotSession) Closed(winner PlayerID, at time.Time) BotSession {
	s.ClosedAt = &at
	s.WinnerID = winner
	if winner == "" {
		s.State = BotSessionExpired
	} else {
		s.State = BotSessionAnswered
	}
	return s
}
