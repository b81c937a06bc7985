package handler

import (
	"net/http"

	"github.com/mcoot/gaminghub/internal/api/response"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/leaderboard"
)

// LeaderboardHandler handles the public leaderboard
type LeaderboardHandler struct {
	leaderboard *leaderboard.Service
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(leaderboard *leaderboard.Service) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// Get handles GET /api/v1/leaderboard?by=points|experience&limit=N
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	by, ok := model.ParseRankBy(r.URL.Query().Get("by"))
	if !ok {
		WriteError(w, NewInvalidRequestError("by must be points or experience"))
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, err)
		return
	}

	entries, err := h.leaderboard.Top(r.Context(), by, limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LeaderboardResponse{By: string(by), Entries: entries})
}
