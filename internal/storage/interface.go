package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcoot/gaminghub/internal/model"
)

// Storage defines the interface for data persistence.
//
// Balances are only ever changed through ApplyDelta, which every backend
// implements as a single atomic read-modify-write.
type Storage interface {
	// Account operations
	GetAccount(ctx context.Context, id model.PlayerID) (*model.Account, error)
	EnsureAccount(ctx context.Context, id model.PlayerID, now time.Time) (acct *model.Account, created bool, err error)
	ApplyDelta(ctx context.Context, id model.PlayerID, delta model.Delta) (*model.DeltaResult, error)
	TopAccounts(ctx context.Context, by model.RankBy, limit int) ([]*model.Account, error)

	// Round operations
	SaveRound(ctx context.Context, round *model.Round) error
	GetRound(ctx context.Context, id model.RoundID) (*model.Round, error)
	ListRecentRounds(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.Round, error)
	ListExpiredRounds(ctx context.Context, before time.Time, limit int) ([]*model.Round, error)

	// Chat bot operations.
	// CreateBotSession fails with model.ErrBotSessionActive while another session is open.
	// CloseBotSession replaces an open session with its closed form and reports
	// whether this call closed it; a session already closed is returned unchanged.
	CreateBotSession(ctx context.Context, session *model.BotSession) error
	GetBotSession(ctx context.Context, id model.BotSessionID) (*model.BotSession, error)
	GetOpenBotSession(ctx context.Context) (*model.BotSession, error)
	CloseBotSession(ctx context.Context, closed *model.BotSession) (*model.BotSession, bool, error)
	ListBotSessionsSince(ctx context.Context, since time.Time) ([]*model.BotSession, error)

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
	Close() error
}

// domainErrors are returned by stores as-is; anything else is an infrastructure failure
var domainErrors = []error{
	model.ErrInvalidRequest,
	model.ErrInsufficientFunds,
	model.ErrAccountNotFound,
	model.ErrRoundNotFound,
	model.ErrBotSessionNotFound,
	model.ErrBotSessionActive,
}

// Classify passes domain errors through and marks every other store failure
// (driver errors, timeouts, lost connections) as model.ErrStoreUnavailable.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, domainErr := range domainErrors {
		if errors.Is(err, domainErr) {
			return err
		}
	}
	if errors.Is(err, model.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
}
