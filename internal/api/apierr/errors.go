package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	CodeRoundNotFound     = "ROUND_NOT_FOUND"
	CodeRoundNotActive    = "ROUND_NOT_ACTIVE"
	CodeNotRoundOwner     = "NOT_ROUND_OWNER"
	CodeUnsupportedRound  = "UNSUPPORTED_ROUND"
	CodeInvalidSubmission = "INVALID_SUBMISSION"
	CodeRoundKeyConflict  = "ROUND_KEY_CONFLICT"
	CodeLevelTooLow       = "LEVEL_TOO_LOW"
	CodeNoOpenQuestion    = "NO_OPEN_QUESTION"
	CodeQuestionOpen      = "QUESTION_OPEN"
	CodeReferralInvalid   = "REFERRAL_INVALID"
	CodeReferralTooLate   = "REFERRAL_UNAVAILABLE"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeInternalError     = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	if he.status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// Message returns the client-facing message for an error
func Message(err error) string {
	return toHTTPError(err).apiError.Message
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, err.Error()}}
	case errors.Is(err, model.ErrInvalidAmount):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, "Amount must not be negative"}}
	case errors.Is(err, model.ErrInsufficientFunds):
		return &httpError{http.StatusConflict, APIError{CodeInsufficientFunds, "Insufficient points"}}
	case errors.Is(err, model.ErrAccountNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeAccountNotFound, "Account not found"}}
	case errors.Is(err, model.ErrRoundNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeRoundNotFound, "Round not found"}}
	case errors.Is(err, model.ErrRoundNotActive):
		return &httpError{http.StatusConflict, APIError{CodeRoundNotActive, "Round is not in progress"}}
	case errors.Is(err, model.ErrNotRoundOwner):
		return &httpError{http.StatusForbidden, APIError{CodeNotRoundOwner, "Round belongs to another player"}}
	case errors.Is(err, model.ErrUnsupportedRound):
		return &httpError{http.StatusBadRequest, APIError{CodeUnsupportedRound, "Game type does not use timed rounds"}}
	case errors.Is(err, model.ErrInvalidSubmission):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidSubmission, err.Error()}}
	case errors.Is(err, model.ErrRoundKeyConflict):
		return &httpError{http.StatusConflict, APIError{CodeRoundKeyConflict, "roundId belongs to a round played on the hub"}}
	case errors.Is(err, model.ErrLevelTooLow):
		return &httpError{http.StatusForbidden, APIError{CodeLevelTooLow, "Reach level 3 to use the chat"}}
	case errors.Is(err, model.ErrBotSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeNoOpenQuestion, "No chat bot question is open"}}
	case errors.Is(err, model.ErrBotSessionActive):
		return &httpError{http.StatusConflict, APIError{CodeQuestionOpen, "A chat bot question is already open"}}
	case errors.Is(err, model.ErrReferralInvalid):
		return &httpError{http.StatusBadRequest, APIError{CodeReferralInvalid, "Invalid referral code"}}
	case errors.Is(err, model.ErrReferralUnavailable):
		return &httpError{http.StatusConflict, APIError{CodeReferralTooLate, "Referral bonus is only available before your first game"}}
	case errors.Is(err, model.ErrStoreUnavailable):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeStoreUnavailable, "Account store unavailable, try again"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidToken):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired token"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// NewInternalErrorFor creates an internal server error that names the failed request
func NewInternalErrorFor(requestID string) error {
	if requestID == "" {
		return NewInternalError()
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error (request " + requestID + ")"}}
}
