// Package moderation decides whether a community chat message may be posted.
package moderation

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/mcoot/gaminghub/internal/model"
)

var (
	linkPattern        = regexp.MustCompile(`https?://\S+`)
	statusLinkPattern  = regexp.MustCompile(`(?i)^https?://(www\.)?(twitter\.com|x\.com)/\w+/status/\d+`)
	defaultBadWords    = []string{"idiot", "moron", "scam", "stupid"}
	defaultMinLevel    = 3
	defaultMaxMsgRunes = 500
)

// Reasons a message is refused
const (
	ReasonEmpty          = "empty"
	ReasonTooLong        = "too_long"
	ReasonBadLanguage    = "bad_language"
	ReasonLinkNotAllowed = "link_not_allowed"
)

// Config holds moderation rules
type Config struct {
	MinLevel int
	BadWords []string
	MaxRunes int
}

// DefaultConfig returns the standard chat rules
func DefaultConfig() Config {
	return Config{
		MinLevel: defaultMinLevel,
		BadWords: defaultBadWords,
		MaxRunes: defaultMaxMsgRunes,
	}
}

// AccountSource looks up the sender's account
type AccountSource interface {
	Account(ctx context.Context, playerID model.PlayerID) (*model.Account, error)
}

// Verdict is the outcome of a message check
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	// StatusLink is the first Twitter/X status link in the message
	StatusLink string `json:"status_link,omitempty"`
}

// Service checks chat messages
type Service struct {
	accounts AccountSource
	logger   *slog.Logger
	cfg      Config
	badWords map[string]struct{}
}

// New creates a new moderation Service
func New(accounts AccountSource, logger *slog.Logger, cfg Config) *Service {
	s := &Service{
		accounts: accounts,
		logger:   logger,
		cfg:      cfg,
		badWords: make(map[string]struct{}, len(cfg.BadWords)),
	}
	fold := cases.Fold()
	for _, w := range cfg.BadWords {
		w = strings.TrimSpace(fold.String(w))
		if w != "" {
			s.badWords[w] = struct{}{}
		}
	}
	return s
}

// Check returns whether the player may post the message. A sender below the
// minimum level fails with model.ErrLevelTooLow; content problems are reported
// in the verdict.
func (s *Service) Check(ctx context.Context, playerID model.PlayerID, message string) (*Verdict, error) {
	acct, err := s.accounts.Account(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if acct.Level < s.cfg.MinLevel {
		return nil, model.ErrLevelTooLow
	}

	verdict := s.checkContent(message)
	if !verdict.Allowed {
		s.logger.Info("chat message refused",
			slog.String("player_id", string(playerID)),
			slog.String("reason", verdict.Reason))
	}
	return verdict, nil
}

func (s *Service) checkContent(message string) *Verdict {
	message = strings.TrimSpace(message)
	if message == "" {
		return &Verdict{Reason: ReasonEmpty}
	}
	if s.cfg.MaxRunes > 0 && len([]rune(message)) > s.cfg.MaxRunes {
		return &Verdict{Reason: ReasonTooLong}
	}
	if s.containsBadWord(message) {
		return &Verdict{Reason: ReasonBadLanguage}
	}

	verdict := &Verdict{Allowed: true}
	for _, link := range linkPattern.FindAllString(message, -1) {
		if !statusLinkPattern.MatchString(link) {
			return &Verdict{Reason: ReasonLinkNotAllowed}
		}
		if verdict.StatusLink == "" {
			verdict.StatusLink = link
		}
	}
	return verdict
}

// containsBadWord matches whole words after case folding
func (s *Service) containsBadWord(message string) bool {
	if len(s.badWords) == 0 {
		return false
	}
	// Casers keep state, so each call folds with its own
	words := strings.FieldsFunc(cases.Fold().String(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if _, bad := s.badWords[w]; bad {
			return true
		}
	}
	return false
}
