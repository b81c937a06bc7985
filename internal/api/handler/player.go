package handler

import (
	"net/http"

	"github.com/mcoot/gaminghub/internal/api/middleware"
	"github.com/mcoot/gaminghub/internal/api/response"
	"github.com/mcoot/gaminghub/internal/notify"
	"github.com/mcoot/gaminghub/internal/services/economy"
	"github.com/mcoot/gaminghub/internal/services/round"
)

// PlayerHandler handles the caller's own account endpoints
type PlayerHandler struct {
	engine *economy.Engine
	rounds *round.Service
	hubs   *notify.HubManager
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(engine *economy.Engine, rounds *round.Service, hubs *notify.HubManager) *PlayerHandler {
	return &PlayerHandler{
		engine: engine,
		rounds: rounds,
		hubs:   hubs,
	}
}

// GetMe handles GET /api/v1/accounts/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	acct, err := h.engine.Account(r.Context(), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AccountFromModel(acct))
}

// Rounds handles GET /api/v1/accounts/me/rounds
func (h *PlayerHandler) Rounds(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, err)
		return
	}

	rounds, err := h.rounds.History(r.Context(), playerID, limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoundsFromModel(rounds))
}

// Events handles GET /api/v1/accounts/me/events
func (h *PlayerHandler) Events(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())
	h.hubs.Serve(w, r, playerID)
}
