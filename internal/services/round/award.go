package round

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/economy"
	"github.com/mcoot/gaminghub/internal/storage"
)

// ExternalAward is a round played and scored outside the hub, reported for experience
type ExternalAward struct {
	PlayerID model.PlayerID
	GameType model.GameType
	// Key makes the report idempotent; empty means the caller gave none
	Key string
	// PointsEarned is kept in history only; balances are never changed by reports
	PointsEarned int64
}

// reportNamespace scopes reported keys to per-player history ids
var reportNamespace = uuid.MustParse("9d3e6a41-7c2b-4f08-b5e1-2a6f4c8d0e97")

// reportedRoundID is the history id of a reported round. Reported keys are
// chosen by clients, so they are scoped to the player before use as ids.
func reportedRoundID(playerID model.PlayerID, key string) model.RoundID {
	return model.RoundID(uuid.NewSHA1(reportNamespace, []byte(string(playerID)+"\x00"+key)).String())
}

// RecordAward awards experience for an externally played round and records it
// in the player's history. Reports without a key cannot be deduplicated.
// A key naming a round played on the hub is refused; that round settles itself.
func (s *Service) RecordAward(ctx context.Context, report ExternalAward) (*economy.AwardResult, error) {
	key := report.Key
	if key == "" {
		key = "award-" + s.random.NewID()
		s.logger.Warn("award reported without idempotency key",
			slog.String("player_id", string(report.PlayerID)),
			slog.String("game_type", string(report.GameType)),
			slog.String("generated_key", key))
	} else {
		_, err := s.storage.GetRound(ctx, model.RoundID(key))
		if err == nil {
			return nil, model.ErrRoundKeyConflict
		}
		if !errors.Is(err, model.ErrRoundNotFound) {
			return nil, storage.Classify(err)
		}
	}

	award, err := s.engine.AwardExperience(ctx, report.PlayerID, report.GameType, "report:"+key)
	if err != nil {
		return nil, err
	}

	roundID := reportedRoundID(report.PlayerID, key)
	if _, err := s.storage.GetRound(ctx, roundID); err == nil {
		return award, nil
	} else if !errors.Is(err, model.ErrRoundNotFound) {
		s.logger.Error("failed to check round history",
			slog.String("round_id", string(roundID)),
			slog.String("error", storage.Classify(err).Error()))
		return award, nil
	}

	now := s.clock.Now()
	state := model.RoundLost
	if report.PointsEarned > 0 {
		state = model.RoundWon
	}
	round := &model.Round{
		ID:            roundID,
		PlayerID:      report.PlayerID,
		GameType:      award.GameType,
		State:         state,
		Data:          map[string]any{"reported": true, "report_key": key},
		StartedAt:     now,
		CompletedAt:   now,
		PointsEarned:  report.PointsEarned,
		ExpGained:     award.ExpGained,
		NewExperience: award.NewExperience,
		NewLevel:      award.NewLevel,
		LeveledUp:     award.LeveledUp,
		TotalGames:    award.TotalGames,
	}
	if err := s.storage.SaveRound(ctx, round); err != nil {
		s.logger.Error("failed to save reported round",
			slog.String("round_id", string(roundID)),
			slog.String("player_id", string(report.PlayerID)),
			slog.String("error", err.Error()))
	}

	if award.Replayed {
		// The first report settled but its history was lost; record it now
		return award, nil
	}
	s.notifier.Publish(model.Event{
		Type:      model.EventRoundCompleted,
		Timestamp: now,
		PlayerID:  report.PlayerID,
		Payload: model.RoundCompletedPayload{
			RoundID:      roundID,
			GameType:     award.GameType,
			State:        state,
			PointsEarned: report.PointsEarned,
			ExpGained:    award.ExpGained,
		},
	})
	return award, nil
}
