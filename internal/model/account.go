package model

import "time"

// PlayerID identifies a player. It is issued by the external identity provider
// and never changes.
type PlayerID string

// Account is the persisted economy record for a player
type Account struct {
	ID          PlayerID  `json:"id"`
	Points      int64     `json:"points"`
	Experience  int64     `json:"experience"`
	Level       int       `json:"level"`
	GamesPlayed int64     `json:"games_played"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAccount returns an account with starting balances
func NewAccount(id PlayerID, now time.Time) *Account {
	return &Account{
		ID:        id,
		Level:     MinLevel,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Delta is a relative change applied atomically by the store.
// Stores never overwrite balances; they add these values under their own
// atomicity guarantee and recompute Level from the resulting Experience.
type Delta struct {
	// Key identifies the operation for idempotency. A repeated key returns the
	// originally stored result without applying the delta again.
	// Empty means the delta is not idempotent.
	Key string

	Points      int64
	Experience  int64
	GamesPlayed int64

	// MinBalance is the balance the account must hold before the delta is
	// applied. Used for paid actions whose cost is folded into Points.
	MinBalance int64

	// Memo is stored with the idempotency record and returned on replay,
	// so callers can recover what the first attempt settled
	Memo string

	At time.Time
}

// Validate checks the delta is well-formed
func (d Delta) Validate() error {
	if d.Experience < 0 || d.GamesPlayed < 0 || d.MinBalance < 0 {
		return ErrInvalidRequest
	}
	return nil
}

// DeltaResult describes the account before and after an applied delta
type DeltaResult struct {
	Before Account `json:"before"`
	After  Account `json:"after"`
	Memo   string  `json:"memo,omitempty"`
	// Applied is false when the key had already been used and the stored
	// result is being replayed
	Applied bool `json:"-"`
}

// Apply adds the delta to a copy of the account, enforcing the balance rules.
// Stores that apply deltas in Go code (memory, SQL) share this logic.
func (a Account) Apply(d Delta) (Account, error) {
	if a.Points < d.MinBalance {
		return a, ErrInsufficientFunds
	}
	next := a
	next.Points += d.Points
	if next.Points < 0 {
		return a, ErrInsufficientFunds
	}
	next.Experience += d.Experience
	next.GamesPlayed += d.GamesPlayed
	next.Level = LevelOf(next.Experience)
	if !d.At.IsZero() {
		next.UpdatedAt = d.At
	}
	return next, nil
}

// RankBy selects the leaderboard ordering
type RankBy string

const (
	RankByPoints     RankBy = "points"
	RankByExperience RankBy = "experience"
)

// ParseRankBy converts a query value to a RankBy, defaulting to points
func ParseRankBy(s string) (RankBy, bool) {
	switch RankBy(s) {
	case "", RankByPoints:
		return RankByPoints, true
	case RankByExperience, "level":
		return RankByExperience, true
	default:
		return "", false
	}
}
