// Package spin runs the paid three-reel spin game.
package spin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mcoot/gaminghub/internal/dependencies/clock"
	"github.com/mcoot/gaminghub/internal/dependencies/random"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/notify"
	"github.com/mcoot/gaminghub/internal/services/economy"
	"github.com/mcoot/gaminghub/internal/storage"
)

// requestNamespace scopes client request ids to stable spin ids
var requestNamespace = uuid.MustParse("5b8f0c3e-2f6a-4d1e-9a57-3c1d0e7f4a21")

// Service runs spins
type Service struct {
	engine   *economy.Engine
	storage  storage.Storage
	random   random.Random
	clock    clock.Clock
	notifier notify.Notifier
	logger   *slog.Logger
}

// New creates a new spin Service
func New(
	engine *economy.Engine,
	storage storage.Storage,
	random random.Random,
	clock clock.Clock,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		engine:   engine,
		storage:  storage,
		random:   random,
		clock:    clock,
		notifier: notifier,
		logger:   logger,
	}
}

// Result is the settled outcome of a spin
type Result struct {
	Round     *model.Round
	Reels     Reels
	Payout    int64
	Net       int64
	Balance   int64
	LeveledUp bool
	// Replayed is true when the request id had already been spun
	Replayed bool
}

// Spin charges the spin cost, draws the reels and pays out, all in one
// atomic settlement. A repeated requestID returns the original spin.
func (s *Service) Spin(ctx context.Context, playerID model.PlayerID, requestID string) (*Result, error) {
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", model.ErrInvalidRequest)
	}

	roundID := s.spinID(playerID, requestID)
	if requestID != "" {
		if prev, err := s.storage.GetRound(ctx, roundID); err == nil {
			return resultFromRound(prev, true)
		} else if !errors.Is(err, model.ErrRoundNotFound) {
			return nil, storage.Classify(err)
		}
	}

	acct, err := s.engine.Account(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if acct.Points < Cost {
		return nil, model.ErrInsufficientFunds
	}

	var drawn Reels
	for i := range drawn {
		drawn[i] = Symbols[s.random.Intn(len(Symbols))]
	}
	now := s.clock.Now()

	res, err := s.engine.Settle(ctx, playerID, model.Delta{
		Key:         string(roundID),
		Points:      Net(drawn),
		MinBalance:  Cost,
		Experience:  model.ExperienceFor(model.GameSpin),
		GamesPlayed: 1,
		Memo:        drawn.String(),
		At:          now,
	})
	if err != nil {
		return nil, err
	}

	reels := drawn
	if !res.Applied {
		// An earlier attempt with this request id settled first. Report what
		// it settled, never the reels drawn for this attempt.
		if prev, err := s.storage.GetRound(ctx, roundID); err == nil {
			return resultFromRound(prev, true)
		}
		settled, err := ParseReels(res.Memo)
		if err != nil {
			return nil, fmt.Errorf("spin %s settled without its reels: %w", roundID, err)
		}
		reels = settled
		s.logger.Warn("recovering history for settled spin",
			slog.String("round_id", string(roundID)),
			slog.String("player_id", string(playerID)))
	}
	payout := Payout(reels)
	net := res.After.Points - res.Before.Points

	state := model.RoundLost
	if payout > 0 {
		state = model.RoundWon
	}
	round := &model.Round{
		ID:       roundID,
		PlayerID: playerID,
		GameType: model.GameSpin,
		State:    state,
		Data: map[string]any{
			"reels":      reels.Strings(),
			"spin_cost":  Cost,
			"win_amount": payout,
			"balance":    res.After.Points,
		},
		StartedAt:     now,
		CompletedAt:   now,
		PointsEarned:  net,
		ExpGained:     res.After.Experience - res.Before.Experience,
		NewExperience: res.After.Experience,
		NewLevel:      res.After.Level,
		LeveledUp:     res.After.Level > res.Before.Level,
		TotalGames:    res.After.GamesPlayed,
	}

	if err := s.storage.SaveRound(ctx, round); err != nil {
		// The balance is already settled; losing the history entry is not fatal
		s.logger.Error("failed to save spin round",
			slog.String("round_id", string(roundID)),
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()))
	}

	if res.Applied {
		s.notifier.Publish(model.Event{
			Type:      model.EventRoundCompleted,
			Timestamp: now,
			PlayerID:  playerID,
			Payload: model.RoundCompletedPayload{
				RoundID:      roundID,
				GameType:     model.GameSpin,
				State:        state,
				PointsEarned: round.PointsEarned,
				ExpGained:    round.ExpGained,
			},
		})
	}

	s.logger.Info("spin settled",
		slog.String("round_id", string(roundID)),
		slog.String("player_id", string(playerID)),
		slog.Int64("payout", payout),
		slog.Int64("balance", res.After.Points))

	return &Result{
		Round:     round,
		Reels:     reels,
		Payout:    payout,
		Net:       net,
		Balance:   res.After.Points,
		LeveledUp: round.LeveledUp,
		Replayed:  !res.Applied,
	}, nil
}

// spinID derives a stable id from the client's request id, or a fresh one without it
func (s *Service) spinID(playerID model.PlayerID, requestID string) model.RoundID {
	if requestID == "" {
		return model.RoundID(s.random.NewID())
	}
	return model.RoundID(uuid.NewSHA1(requestNamespace, []byte(string(playerID)+"\x00"+requestID)).String())
}

// resultFromRound rebuilds a Result from stored history
func resultFromRound(round *model.Round, replayed bool) (*Result, error) {
	reels, err := reelsFromData(round.Data["reels"])
	if err != nil {
		return nil, err
	}
	payout := Payout(reels)
	return &Result{
		Round:     round,
		Reels:     reels,
		Payout:    payout,
		Net:       payout - Cost,
		Balance:   toInt64(round.Data["balance"]),
		LeveledUp: round.LeveledUp,
		Replayed:  replayed,
	}, nil
}

// reelsFromData accepts reels as stored in memory ([]string) or decoded from JSON ([]any)
func reelsFromData(v any) (Reels, error) {
	var reels Reels
	var names []string
	switch raw := v.(type) {
	case []string:
		names = raw
	case []any:
		for _, item := range raw {
			name, ok := item.(string)
			if !ok {
				return reels, fmt.Errorf("stored reel %v is not a symbol", item)
			}
			names = append(names, name)
		}
	default:
		return reels, fmt.Errorf("stored spin has no reels")
	}
	if len(names) != len(reels) {
		return reels, fmt.Errorf("stored spin has %d reels", len(names))
	}
	for i, name := range names {
		reels[i] = Symbol(name)
	}
	return reels, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
