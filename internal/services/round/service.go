// Package round runs the timed minigames (impostor and quiz). A round is
// started by the server, scored by the server when the player submits, and
// settled through the economy engine with the round id as its idempotency key.
package round

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcoot/gaminghub/internal/dependencies/clock"
	"github.com/mcoot/gaminghub/internal/dependencies/random"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/notify"
	"github.com/mcoot/gaminghub/internal/services/economy"
	"github.com/mcoot/gaminghub/internal/storage"
)

// History limits
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50
)

// Config holds round settings
type Config struct {
	// Grace is extra time allowed after a deadline before a round is swept
	Grace time.Duration
	// SweepBatch caps how many expired rounds one sweep settles
	SweepBatch int
}

// DefaultConfig returns sensible round defaults
func DefaultConfig() Config {
	return Config{
		Grace:      10 * time.Second,
		SweepBatch: 100,
	}
}

// Service manages timed rounds
type Service struct {
	engine   *economy.Engine
	storage  storage.Storage
	random   random.Random
	clock    clock.Clock
	notifier notify.Notifier
	logger   *slog.Logger
	quiz     *QuizBank
	cfg      Config
}

// New creates a new round Service
func New(
	engine *economy.Engine,
	storage storage.Storage,
	random random.Random,
	clock clock.Clock,
	notifier notify.Notifier,
	logger *slog.Logger,
	quiz *QuizBank,
	cfg Config,
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
		quiz:     quiz,
		cfg:      cfg,
	}
}

// Started is a newly started round with what the client needs to play it
type Started struct {
	Round     *model.Round
	Questions []PublicQuestion
}

// Start opens a timed round for the player
func (s *Service) Start(ctx context.Context, playerID model.PlayerID, gameType model.GameType) (*Started, error) {
	if gameType != model.GameImpostor && gameType != model.GameQuiz {
		return nil, model.ErrUnsupportedRound
	}
	if _, err := s.engine.Account(ctx, playerID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	round := &model.Round{
		ID:        model.RoundID(s.random.NewID()),
		PlayerID:  playerID,
		GameType:  gameType,
		State:     model.RoundInProgress,
		StartedAt: now,
	}

	started := &Started{Round: round}
	switch gameType {
	case model.GameImpostor:
		round.Deadline = now.Add(ImpostorTimeLimit)
		round.Data = map[string]any{"characters": ImpostorCharacters}
		round.Secret = map[string]any{"impostor": s.random.Intn(ImpostorCharacters)}
	case model.GameQuiz:
		round.Deadline = now.Add(time.Duration(s.quiz.Len()) * QuizQuestionTime)
		round.Data = map[string]any{"questions": s.quiz.Len()}
		started.Questions = s.quiz.Public()
	}

	if err := s.storage.SaveRound(ctx, round); err != nil {
		return nil, storage.Classify(err)
	}

	s.logger.Info("round started",
		slog.String("round_id", string(round.ID)),
		slog.String("player_id", string(playerID)),
		slog.String("game_type", string(gameType)),
		slog.Time("deadline", round.Deadline))

	return started, nil
}

// Completion is the settled outcome of a round
type Completion struct {
	Round *model.Round
	// Replayed is true when the round had already been settled
	Replayed bool
}

// Complete scores the player's submission and settles the round.
// Completing an already settled round returns the stored outcome.
func (s *Service) Complete(ctx context.Context, playerID model.PlayerID, roundID model.RoundID, sub Submission) (*Completion, error) {
	round, err := s.storage.GetRound(ctx, roundID)
	if err != nil {
		return nil, storage.Classify(err)
	}
	if round.PlayerID != playerID {
		return nil, model.ErrNotRoundOwner
	}
	if round.State.IsTerminal() {
		return &Completion{Round: round, Replayed: true}, nil
	}
	if round.State != model.RoundInProgress {
		return nil, model.ErrRoundNotActive
	}

	now := s.clock.Now()
	if round.Expired(now) {
		if err := s.settle(ctx, round, model.RoundTimedOut, 0, nil, now); err != nil {
			return nil, err
		}
		return &Completion{Round: round}, nil
	}

	var (
		points  int64
		outcome map[string]any
	)
	switch round.GameType {
	case model.GameImpostor:
		points, outcome, err = scoreImpostor(round, sub, now)
	case model.GameQuiz:
		points, outcome, err = scoreQuiz(s.quiz, sub)
	default:
		err = model.ErrUnsupportedRound
	}
	if err != nil {
		return nil, err
	}

	state := model.RoundLost
	if points > 0 {
		state = model.RoundWon
	}
	if err := s.settle(ctx, round, state, points, outcome, now); err != nil {
		return nil, err
	}
	return &Completion{Round: round}, nil
}

// ExpireStale settles every round whose deadline passed more than the grace
// period ago as timed out. It returns how many rounds were settled.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	now := s.clock.Now()
	rounds, err := s.storage.ListExpiredRounds(ctx, now.Add(-s.cfg.Grace), s.cfg.SweepBatch)
	if err != nil {
		return 0, storage.Classify(err)
	}

	expired := 0
	for _, round := range rounds {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if err := s.settle(ctx, round, model.RoundTimedOut, 0, nil, now); err != nil {
			s.logger.Error("failed to expire round",
				slog.String("round_id", string(round.ID)),
				slog.String("error", err.Error()))
			if errors.Is(err, model.ErrStoreUnavailable) {
				return expired, err
			}
			continue
		}
		expired++
	}
	if expired > 0 {
		s.logger.Info("expired stale rounds", slog.Int("count", expired))
	}
	return expired, nil
}

// History returns the player's most recent rounds, newest first
func (s *Service) History(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.Round, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	rounds, err := s.storage.ListRecentRounds(ctx, playerID, limit)
	if err != nil {
		return nil, storage.Classify(err)
	}
	return rounds, nil
}

// settle applies the round's points and experience, then records the outcome.
// The round id is the delta key, so a settle racing another settle applies once.
func (s *Service) settle(ctx context.Context, round *model.Round, state model.RoundState, points int64, outcome map[string]any, now time.Time) error {
	res, err := s.engine.Settle(ctx, round.PlayerID, model.Delta{
		Key:         string(round.ID),
		Points:      points,
		Experience:  model.ExperienceFor(round.GameType),
		GamesPlayed: 1,
		Memo:        string(state),
		At:          now,
	})
	if err != nil {
		return err
	}

	if !res.Applied {
		// Someone else settled it first; prefer their stored record
		if prev, err := s.storage.GetRound(ctx, round.ID); err == nil && prev.State.IsTerminal() {
			*round = *prev
			return nil
		}
		// Their record is not saved yet. Only the settlement is known, so this
		// submission's outcome must not be recorded.
		points = res.After.Points - res.Before.Points
		state = settledState(res.Memo, points)
		outcome = nil
	}

	round.State = state
	round.CompletedAt = now
	round.PointsEarned = points
	round.ExpGained = res.After.Experience - res.Before.Experience
	round.NewExperience = res.After.Experience
	round.NewLevel = res.After.Level
	round.LeveledUp = res.After.Level > res.Before.Level
	round.TotalGames = res.After.GamesPlayed
	if outcome != nil {
		if round.Data == nil {
			round.Data = map[string]any{}
		}
		for k, v := range outcome {
			round.Data[k] = v
		}
	}

	if err := s.storage.SaveRound(ctx, round); err != nil {
		s.logger.Error("failed to save settled round",
			slog.String("round_id", string(round.ID)),
			slog.String("player_id", string(round.PlayerID)),
			slog.String("error", err.Error()))
	}

	if res.Applied {
		s.notifier.Publish(model.Event{
			Type:      model.EventRoundCompleted,
			Timestamp: now,
			PlayerID:  round.PlayerID,
			Payload: model.RoundCompletedPayload{
				RoundID:      round.ID,
				GameType:     round.GameType,
				State:        state,
				PointsEarned: points,
				ExpGained:    round.ExpGained,
			},
		})
	}

	s.logger.Info("round settled",
		slog.String("round_id", string(round.ID)),
		slog.String("player_id", string(round.PlayerID)),
		slog.String("state", string(state)),
		slog.Int64("points", points))
	return nil
}

// settledState recovers the state an earlier settlement recorded
func settledState(memo string, points int64) model.RoundState {
	switch state := model.RoundState(memo); state {
	case model.RoundWon, model.RoundLost, model.RoundTimedOut:
		return state
	}
	if points > 0 {
		return model.RoundWon
	}
	return model.RoundLost
}

// View strips server-side secrets before a round leaves the process
func View(round *model.Round) *model.Round {
	if round == nil {
		return nil
	}
	out := *round
	out.Secret = nil
	return &out
}

