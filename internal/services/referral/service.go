// Package referral pays the signup bonus for joining with a friend's code.
package referral

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/economy"
)

const (
	codePrefix = "BILLIONS-"
	codeTail   = 8
	bonusKey   = "referral:signup"
)

var codePattern = regexp.MustCompile(`^BILLIONS-[A-Z0-9_-]{1,8}$`)

// Config holds referral rewards
type Config struct {
	SignupBonus int64
}

// DefaultConfig returns the standard ₿100 signup bonus
func DefaultConfig() Config {
	return Config{SignupBonus: 100}
}

// Bonus is a paid signup bonus
type Bonus struct {
	// Code is the referral code the bonus was first claimed with
	Code    string
	Amount  int64
	Balance int64
	// Replayed is true when the player had already claimed the bonus
	Replayed bool
}

// Service applies referral codes
type Service struct {
	engine *economy.Engine
	logger *slog.Logger
	cfg    Config
}

// New creates a new referral Service
func New(engine *economy.Engine, logger *slog.Logger, cfg Config) *Service {
	if cfg.SignupBonus <= 0 {
		cfg = DefaultConfig()
	}
	return &Service{engine: engine, logger: logger, cfg: cfg}
}

// Code returns the player's own referral code: the prefix and the last
// eight characters of the player id, upper-cased
func Code(playerID model.PlayerID) string {
	id := strings.ToUpper(string(playerID))
	if len(id) > codeTail {
		id = id[len(id)-codeTail:]
	}
	return codePrefix + id
}

// NormalizeCode trims and upper-cases a code as typed by a player
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Apply credits the signup bonus once per player. The bonus is only offered
// before the player's first game and never for the player's own code.
func (s *Service) Apply(ctx context.Context, playerID model.PlayerID, code string) (*Bonus, error) {
	code = NormalizeCode(code)
	if !codePattern.MatchString(code) || code == Code(playerID) {
		return nil, model.ErrReferralInvalid
	}

	acct, err := s.engine.Account(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if acct.GamesPlayed > 0 {
		return nil, model.ErrReferralUnavailable
	}

	res, err := s.engine.Settle(ctx, playerID, model.Delta{
		Key:    bonusKey,
		Points: s.cfg.SignupBonus,
		Memo:   code,
	})
	if err != nil {
		return nil, err
	}

	if res.Applied {
		s.logger.Info("referral bonus paid",
			slog.String("player_id", string(playerID)),
			slog.String("code", code),
			slog.Int64("amount", s.cfg.SignupBonus))
	}
	return &Bonus{
		Code:     res.Memo,
		Amount:   res.After.Points - res.Before.Points,
		Balance:  res.After.Points,
		Replayed: !res.Applied,
	}, nil
}
