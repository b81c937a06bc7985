package model

import "errors"

// Common errors used across the application
var (
	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidAmount  = errors.New("amount must not be negative")

	// Economy errors
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Account errors
	ErrAccountNotFound = errors.New("account not found")

	// Round errors
	ErrRoundNotFound     = errors.New("round not found")
	ErrRoundNotActive    = errors.New("round is not in progress")
	ErrNotRoundOwner     = errors.New("round belongs to another player")
	ErrUnsupportedRound  = errors.New("game type does not use timed rounds")
	ErrInvalidSubmission = errors.New("invalid round submission")
	ErrRoundKeyConflict  = errors.New("round id belongs to a hub round")

	// Chat and referral errors
	ErrLevelTooLow         = errors.New("level too low")
	ErrBotSessionNotFound  = errors.New("no open chat bot question")
	ErrBotSessionActive    = errors.New("a chat bot question is already open")
	ErrReferralInvalid     = errors.New("invalid referral code")
	ErrReferralUnavailable = errors.New("referral bonus is only available before the first game")

	// Infrastructure errors
	ErrStoreUnavailable = errors.New("account store unavailable")
)
