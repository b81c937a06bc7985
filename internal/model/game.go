package model

import (
	"strings"
	"time"
)

// GameType identifies which minigame produced a round
type GameType string

const (
	GameImpostor GameType = "impostor"
	GameSpin     GameType = "spin"
	GameQuiz     GameType = "quiz"
	GameOther    GameType = "other"
)

// ParseGameType maps a client-supplied tag to a GameType.
// Unknown tags become GameOther so they earn the default award.
func ParseGameType(s string) GameType {
	switch GameType(strings.ToLower(strings.TrimSpace(s))) {
	case GameImpostor:
		return GameImpostor
	case GameSpin:
		return GameSpin
	case GameQuiz:
		return GameQuiz
	default:
		return GameOther
	}
}

// experienceAwards is the experience granted per completed round
var experienceAwards = map[GameType]int64{
	GameImpostor: 10,
	GameSpin:     5,
	GameQuiz:     8,
}

// DefaultExperienceAward applies to GameOther and unknown types
const DefaultExperienceAward int64 = 5

// ExperienceFor returns the experience granted for one round of the game
func ExperienceFor(g GameType) int64 {
	if exp, ok := experienceAwards[g]; ok {
		return exp
	}
	return DefaultExperienceAward
}

// RoundID identifies one played round; it doubles as the idempotency key
type RoundID string

// RoundState is the lifecycle phase of a round.
// A player with no round in progress is Ready.
type RoundState string

const (
	RoundReady      RoundState = "ready"
	RoundInProgress RoundState = "in_progress"
	RoundWon        RoundState = "won"
	RoundLost       RoundState = "lost"
	RoundTimedOut   RoundState = "timed_out"
)

// IsTerminal reports whether the round has finished
func (s RoundState) IsTerminal() bool {
	return s == RoundWon || s == RoundLost || s == RoundTimedOut
}

// Round is a single play of a minigame, from start to settlement.
// Completed rounds double as the player's game history.
type Round struct {
	ID       RoundID        `json:"id"`
	PlayerID PlayerID       `json:"player_id"`
	GameType GameType       `json:"game_type"`
	State    RoundState     `json:"state"`
	Data     map[string]any `json:"data,omitempty"`
	// Secret holds server-side state such as answers; never sent to clients
	Secret   map[string]any `json:"secret,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	Deadline    time.Time `json:"deadline,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`

	// Settlement, filled once the round is reported to the engine
	PointsEarned  int64 `json:"points_earned"`
	ExpGained     int64 `json:"exp_gained"`
	NewExperience int64 `json:"new_experience"`
	NewLevel      int   `json:"new_level"`
	LeveledUp     bool  `json:"leveled_up"`
	TotalGames    int64 `json:"total_games"`
}

// Expired reports whether the round deadline has passed at now
func (r *Round) Expired(now time.Time) bool {
	return !r.Deadline.IsZero() && now.After(r.Deadline)
}
