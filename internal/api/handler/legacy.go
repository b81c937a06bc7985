package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mcoot/gaminghub/internal/api/apierr"
	"github.com/mcoot/gaminghub/internal/api/middleware"
	"github.com/mcoot/gaminghub/internal/api/request"
	"github.com/mcoot/gaminghub/internal/api/response"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/round"
)

// LegacyHandler serves the award endpoint the minigame pages already call.
// It keeps the original camelCase body and the flat {error} shape.
type LegacyHandler struct {
	rounds   *round.Service
	verifier middleware.TokenVerifier
	logger   *slog.Logger
}

// NewLegacyHandler creates a new legacy handler. When a request carries a
// bearer token, its subject must match userId.
func NewLegacyHandler(rounds *round.Service, verifier middleware.TokenVerifier, logger *slog.Logger) *LegacyHandler {
	return &LegacyHandler{
		rounds:   rounds,
		verifier: verifier,
		logger:   logger,
	}
}

// AwardExperience handles POST /award-experience
func (h *LegacyHandler) AwardExperience(w http.ResponseWriter, r *http.Request) {
	var req request.AwardExperienceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLegacyError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || strings.TrimSpace(req.GameType) == "" {
		writeLegacyError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if header := r.Header.Get("Authorization"); header != "" && h.verifier != nil {
		identity, err := h.verifier.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeLegacyError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if string(identity.PlayerID) != req.UserID {
			writeLegacyError(w, http.StatusForbidden, "Token does not match userId")
			return
		}
	}

	key := req.RoundID
	if key == "" {
		key = r.Header.Get(IdempotencyKeyHeader)
	}

	award, err := h.rounds.RecordAward(r.Context(), round.ExternalAward{
		PlayerID:     model.PlayerID(req.UserID),
		GameType:     model.ParseGameType(req.GameType),
		Key:          key,
		PointsEarned: req.PointsEarned,
	})
	if err != nil {
		status := apierr.Status(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("legacy award failed",
				slog.String("player_id", req.UserID),
				slog.String("error", err.Error()))
			writeLegacyError(w, status, "Failed to update profile")
			return
		}
		writeLegacyError(w, status, apierr.Message(err))
		return
	}

	response.JSON(w, http.StatusOK, response.AwardExperienceResponse{
		Success:       true,
		NewLevel:      award.NewLevel,
		NewExperience: award.NewExperience,
		ExpGained:     award.ExpGained,
		LeveledUp:     award.LeveledUp,
		TotalGames:    award.TotalGames,
	})
}

func writeLegacyError(w http.ResponseWriter, status int, message string) {
	response.JSON(w, status, response.LegacyError{Error: message})
}
