package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gaminghub/internal/api/middleware"
	"github.com/mcoot/gaminghub/internal/api/request"
	"github.com/mcoot/gaminghub/internal/api/response"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/round"
	"github.com/mcoot/gaminghub/internal/services/spin"
)

// IdempotencyKeyHeader names the header clients use to make a request repeatable
const IdempotencyKeyHeader = "Idempotency-Key"

// GameHandler handles game endpoints
type GameHandler struct {
	spin   *spin.Service
	rounds *round.Service
}

// NewGameHandler creates a new game handler
func NewGameHandler(spin *spin.Service, rounds *round.Service) *GameHandler {
	return &GameHandler{
		spin:   spin,
		rounds: rounds,
	}
}

// Spin handles POST /api/v1/games/spin
func (h *GameHandler) Spin(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	var req request.SpinRequest
	if err := decodeOptional(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = r.Header.Get(IdempotencyKeyHeader)
	}

	res, err := h.spin.Spin(r.Context(), playerID, requestID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Settled(w, res.Replayed, response.SpinFromResult(res))
}

// StartRound handles POST /api/v1/games/{gameType}/rounds
func (h *GameHandler) StartRound(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())
	gameType := model.ParseGameType(mux.Vars(r)["gameType"])

	started, err := h.rounds.Start(r.Context(), playerID, gameType)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.RoundStartedFromModel(started))
}

// CompleteRound handles POST /api/v1/rounds/{id}/complete
func (h *GameHandler) CompleteRound(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())
	roundID := model.RoundID(mux.Vars(r)["id"])

	var req request.CompleteRoundRequest
	if err := decodeOptional(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	done, err := h.rounds.Complete(r.Context(), playerID, roundID, req.Submission())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoundCompletedResponse{
		Round:    response.RoundFromModel(done.Round),
		Replayed: done.Replayed,
	})
}

// decodeOptional decodes a JSON body, treating an empty body as the zero value
func decodeOptional(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return NewInvalidRequestError("invalid request body")
}
