package request

import "github.com/mcoot/gaminghub/internal/services/round"

// SpinRequest is the request body for a spin.
// RequestID may also be sent as the Idempotency-Key header.
type SpinRequest struct {
	RequestID string `json:"request_id,omitempty"`
}

// CompleteRoundRequest is the request body for completing a timed round
type CompleteRoundRequest struct {
	Pick    *int               `json:"pick,omitempty"`
	Answers []round.QuizAnswer `json:"answers,omitempty"`
}

// Submission converts the request to a round submission
func (r CompleteRoundRequest) Submission() round.Submission {
	return round.Submission{Pick: r.Pick, Answers: r.Answers}
}

// ChatCheckRequest is the request body for checking a chat message
type ChatCheckRequest struct {
	Message string `json:"message"`
}

// ApplyReferralRequest is the request body for claiming a referral bonus
type ApplyReferralRequest struct {
	Code string `json:"code"`
}

// AwardExperienceRequest is the legacy award body, in the original camelCase
type AwardExperienceRequest struct {
	UserID       string `json:"userId"`
	GameType     string `json:"gameType"`
	PointsEarned int64  `json:"pointsEarned"`
	RoundID      string `json:"roundId,omitempty"`
}
