// Package economy owns every change to a player's points, experience and level.
package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcoot/gaminghub/internal/dependencies/clock"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/notify"
	"github.com/mcoot/gaminghub/internal/storage"
)

const tracerName = "github.com/mcoot/gaminghub/internal/services/economy"

// Config holds engine settings
type Config struct {
	// StoreTimeout bounds every store call; slower stores fail with ErrStoreUnavailable
	StoreTimeout time.Duration
}

// DefaultConfig returns sensible engine defaults
func DefaultConfig() Config {
	return Config{
		StoreTimeout: 3 * time.Second,
	}
}

// Engine applies awards, credits and debits through the account store
type Engine struct {
	storage  storage.Storage
	clock    clock.Clock
	notifier notify.Notifier
	logger   *slog.Logger
	cfg      Config
	tracer   trace.Tracer
}

// New creates a new Engine
func New(storage storage.Storage, clock clock.Clock, notifier notify.Notifier, logger *slog.Logger, cfg Config) *Engine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Engine{
		storage:  storage,
		clock:    clock,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		tracer:   otel.Tracer(tracerName),
	}
}

// AwardResult is the outcome of an experience award
type AwardResult struct {
	PlayerID      model.PlayerID
	GameType      model.GameType
	ExpGained     int64
	NewExperience int64
	NewLevel      int
	LeveledUp     bool
	TotalGames    int64
	// Replayed is true when the key had already been awarded
	Replayed bool
}

// AwardExperience grants the game type's experience and counts one game played.
// A non-empty key makes the award idempotent: repeating it returns the first result.
func (e *Engine) AwardExperience(ctx context.Context, playerID model.PlayerID, gameType model.GameType, key string) (*AwardResult, error) {
	if err := validatePlayer(playerID); err != nil {
		return nil, err
	}

	res, err := e.Settle(ctx, playerID, model.Delta{
		Key:         key,
		Experience:  model.ExperienceFor(gameType),
		GamesPlayed: 1,
	})
	if err != nil {
		return nil, err
	}

	return &AwardResult{
		PlayerID:      playerID,
		GameType:      gameType,
		ExpGained:     res.After.Experience - res.Before.Experience,
		NewExperience: res.After.Experience,
		NewLevel:      res.After.Level,
		LeveledUp:     res.After.Level > res.Before.Level,
		TotalGames:    res.After.GamesPlayed,
		Replayed:      !res.Applied,
	}, nil
}

// CreditPoints adds points to the player's balance
func (e *Engine) CreditPoints(ctx context.Context, playerID model.PlayerID, amount int64, key string) (*model.DeltaResult, error) {
	if err := validatePlayer(playerID); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, model.ErrInvalidAmount
	}
	return e.Settle(ctx, playerID, model.Delta{Key: key, Points: amount})
}

// DebitPoints removes points, failing with ErrInsufficientFunds rather than
// taking the balance below zero
func (e *Engine) DebitPoints(ctx context.Context, playerID model.PlayerID, amount int64, key string) (*model.DeltaResult, error) {
	if err := validatePlayer(playerID); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, model.ErrInvalidAmount
	}
	return e.Settle(ctx, playerID, model.Delta{Key: key, Points: -amount})
}

// Settle applies an arbitrary delta atomically and publishes the resulting events.
// Game services use it to fold a round's points and experience into one write.
func (e *Engine) Settle(ctx context.Context, playerID model.PlayerID, delta model.Delta) (*model.DeltaResult, error) {
	if err := validatePlayer(playerID); err != nil {
		return nil, err
	}
	if delta.At.IsZero() {
		delta.At = e.clock.Now()
	}

	ctx, span := e.tracer.Start(ctx, "economy.Settle", trace.WithAttributes(
		attribute.String("player.id", string(playerID)),
		attribute.String("delta.key", delta.Key),
		attribute.Int64("delta.points", delta.Points),
		attribute.Int64("delta.experience", delta.Experience),
	))
	defer span.End()

	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()

	res, err := e.storage.ApplyDelta(storeCtx, playerID, delta)
	if err != nil {
		err = storage.Classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logDeltaFailure(playerID, delta, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("delta.applied", res.Applied))

	if !res.Applied {
		e.logger.Info("delta replayed",
			slog.String("player_id", string(playerID)),
			slog.String("key", delta.Key))
		return res, nil
	}

	e.logger.Info("delta applied",
		slog.String("player_id", string(playerID)),
		slog.String("key", delta.Key),
		slog.Int64("points", res.After.Points),
		slog.Int64("experience", res.After.Experience),
		slog.Int("level", res.After.Level))

	for _, event := range model.EventsForDelta(*res, delta.At) {
		e.notifier.Publish(event)
	}
	return res, nil
}

// Account returns the player's account, creating it on first sight
func (e *Engine) Account(ctx context.Context, playerID model.PlayerID) (*model.Account, error) {
	if err := validatePlayer(playerID); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "economy.Account", trace.WithAttributes(
		attribute.String("player.id", string(playerID)),
	))
	defer span.End()

	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()

	acct, created, err := e.storage.EnsureAccount(storeCtx, playerID, e.clock.Now())
	if err != nil {
		err = storage.Classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if created {
		e.logger.Info("account created", slog.String("player_id", string(playerID)))
	}
	return acct, nil
}

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.StoreTimeout)
}

func (e *Engine) logDeltaFailure(playerID model.PlayerID, delta model.Delta, err error) {
	attrs := []any{
		slog.String("player_id", string(playerID)),
		slog.String("key", delta.Key),
		slog.Int64("points", delta.Points),
		slog.Int64("experience", delta.Experience),
		slog.String("error", err.Error()),
	}
	if errors.Is(err, model.ErrStoreUnavailable) {
		e.logger.Error("delta failed", attrs...)
		return
	}
	e.logger.Info("delta rejected", attrs...)
}

func validatePlayer(playerID model.PlayerID) error {
	if strings.TrimSpace(string(playerID)) == "" {
		return fmt.Errorf("%w: player id is required", model.ErrInvalidRequest)
	}
	return nil
}
