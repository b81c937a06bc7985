package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/gaminghub/internal/api/middleware"
	"github.com/mcoot/gaminghub/internal/api/request"
	"github.com/mcoot/gaminghub/internal/api/response"
	"github.com/mcoot/gaminghub/internal/services/referral"
)

// ReferralHandler handles the caller's referral code and signup bonus
type ReferralHandler struct {
	referrals *referral.Service
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(referrals *referral.Service) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// Code handles GET /api/v1/accounts/me/referral
func (h *ReferralHandler) Code(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())
	response.JSON(w, http.StatusOK, response.ReferralCodeResponse{Code: referral.Code(playerID)})
}

// Apply handles POST /api/v1/accounts/me/referral
func (h *ReferralHandler) Apply(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	var req request.ApplyReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	bonus, err := h.referrals.Apply(r.Context(), playerID, req.Code)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ReferralBonusFromResult(bonus))
}
