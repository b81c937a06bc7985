// Package leaderboard ranks players by points or experience.
package leaderboard

import (
	"context"
	"log/slog"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/storage"
)

// Limits on a leaderboard page
const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// Entry is one ranked player
type Entry struct {
	Rank       int            `json:"rank"`
	PlayerID   model.PlayerID `json:"player_id"`
	Points     int64          `json:"points"`
	Experience int64          `json:"experience"`
	Level      int            `json:"level"`
}

// Service reads leaderboards from storage
type Service struct {
	storage storage.Storage
	logger  *slog.Logger
}

// New creates a new leaderboard Service
func New(storage storage.Storage, logger *slog.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

// Top returns the best players, highest first. Ties are broken by player id
// and share nothing: every entry gets its own rank.
func (s *Service) Top(ctx context.Context, by model.RankBy, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	accounts, err := s.storage.TopAccounts(ctx, by, limit)
	if err != nil {
		err = storage.Classify(err)
		s.logger.Error("failed to load leaderboard",
			slog.String("by", string(by)),
			slog.String("error", err.Error()))
		return nil, err
	}

	entries := make([]Entry, 0, len(accounts))
	for i, acct := range accounts {
		entries = append(entries, Entry{
			Rank:       i + 1,
			PlayerID:   acct.ID,
			Points:     acct.Points,
			Experience: acct.Experience,
			Level:      acct.Level,
		})
	}
	return entries, nil
}
