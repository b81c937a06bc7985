// Package chatbot posts questions to the community chat and pays the first
// player whose message contains the answer.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/mcoot/gaminghub/internal/dependencies/clock"
	"github.com/mcoot/gaminghub/internal/dependencies/random"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/economy"
	"github.com/mcoot/gaminghub/internal/storage"
)

// Reasons Ask did not post a new question
const (
	ReasonQuestionOpen = "question_open"
	ReasonDailyLimit   = "daily_limit"
	ReasonNoQuestions  = "no_questions"
)

// Config holds the bot's pacing rules
type Config struct {
	// DailyLimit caps how many questions are asked within Window
	DailyLimit int
	Window     time.Duration
	// QuestionTTL expires an unanswered question; zero keeps it open until answered
	QuestionTTL time.Duration
	// Questions overrides the embedded question bank (optional)
	Questions []Question
}

// DefaultConfig returns the standard pacing: seven questions a day, each open for two hours
func DefaultConfig() Config {
	return Config{
		DailyLimit:  7,
		Window:      24 * time.Hour,
		QuestionTTL: 2 * time.Hour,
	}
}

// AskResult is the outcome of one Ask
type AskResult struct {
	Session *model.BotSession
	// Posted is false when Reason explains why no question was asked
	Posted bool
	Reason string
}

// Win is a paid correct answer
type Win struct {
	Session *model.BotSession
	Reward  int64
	Balance int64
	// Replayed is true when this player had already claimed the question
	Replayed bool
}

// Service runs the chat bot
type Service struct {
	engine  *economy.Engine
	storage storage.Storage
	random  random.Random
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config
}

// New creates a new chat bot Service
func New(
	engine *economy.Engine,
	storage storage.Storage,
	random random.Random,
	clock clock.Clock,
	logger *slog.Logger,
	cfg Config,
) (*Service, error) {
	defaults := DefaultConfig()
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = defaults.DailyLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.Questions == nil {
		questions, err := DefaultQuestions()
		if err != nil {
			return nil, err
		}
		cfg.Questions = questions
	} else if err := ValidateQuestions(cfg.Questions); err != nil {
		return nil, err
	}

	return &Service{
		engine:  engine,
		storage: storage,
		random:  random,
		clock:   clock,
		logger:  logger,
		cfg:     cfg,
	}, nil
}

// Ask posts a new question unless one is already open, the daily limit is
// reached, or every question was asked within the window.
func (s *Service) Ask(ctx context.Context) (*AskResult, error) {
	now := s.clock.Now()
	open, err := s.current(ctx, now)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return &AskResult{Session: open, Reason: ReasonQuestionOpen}, nil
	}

	recent, err := s.storage.ListBotSessionsSince(ctx, now.Add(-s.cfg.Window))
	if err != nil {
		return nil, storage.Classify(err)
	}
	s.payWinners(ctx, recent)
	if len(recent) >= s.cfg.DailyLimit {
		return &AskResult{Reason: ReasonDailyLimit}, nil
	}

	question, ok := s.pick(recent)
	if !ok {
		return &AskResult{Reason: ReasonNoQuestions}, nil
	}

	session := &model.BotSession{
		ID:         model.BotSessionID(s.random.NewID()),
		QuestionID: question.ID,
		Question:   question.Question,
		Answer:     question.Answer,
		Reward:     question.Reward,
		State:      model.BotSessionOpen,
		CreatedAt:  now,
	}
	if s.cfg.QuestionTTL > 0 {
		session.ExpiresAt = now.Add(s.cfg.QuestionTTL)
	}
	if err := s.storage.CreateBotSession(ctx, session); err != nil {
		if !errors.Is(err, model.ErrBotSessionActive) {
			return nil, storage.Classify(err)
		}
		// Another instance posted first
		open, err := s.storage.GetOpenBotSession(ctx)
		if err != nil {
			return nil, storage.Classify(err)
		}
		return &AskResult{Session: open, Reason: ReasonQuestionOpen}, nil
	}

	s.logger.Info("chat bot question posted",
		slog.String("session_id", string(session.ID)),
		slog.Int("question_id", question.ID),
		slog.Int64("reward", question.Reward))
	return &AskResult{Session: session, Posted: true}, nil
}

// Current returns the open question, or model.ErrBotSessionNotFound
func (s *Service) Current(ctx context.Context) (*model.BotSession, error) {
	open, err := s.current(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, model.ErrBotSessionNotFound
	}
	return open, nil
}

// Answer checks a chat message against the open question. The first player
// to claim it is credited the reward; everyone else gets a nil Win.
func (s *Service) Answer(ctx context.Context, playerID model.PlayerID, message string) (*Win, error) {
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", model.ErrInvalidRequest)
	}

	now := s.clock.Now()
	open, err := s.current(ctx, now)
	if err != nil || open == nil {
		return nil, err
	}
	if !Matches(message, open.Answer) {
		return nil, nil
	}

	closed := open.Closed(playerID, now)
	stored, claimed, err := s.storage.CloseBotSession(ctx, &closed)
	if err != nil {
		return nil, storage.Classify(err)
	}
	if !claimed && stored.WinnerID != playerID {
		return nil, nil
	}

	res, err := s.engine.CreditPoints(ctx, playerID, stored.Reward, creditKey(stored.ID))
	if err != nil {
		return nil, err
	}
	if claimed {
		s.logger.Info("chat bot question answered",
			slog.String("session_id", string(stored.ID)),
			slog.String("player_id", string(playerID)),
			slog.Int64("reward", stored.Reward))
	}
	return &Win{
		Session:  stored,
		Reward:   stored.Reward,
		Balance:  res.After.Points,
		Replayed: !claimed,
	}, nil
}

// Matches reports whether message contains answer, ignoring case
func Matches(message, answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}
	fold := cases.Fold()
	return strings.Contains(fold.String(message), fold.String(answer))
}

// current returns the open question, expiring it first if its time is up
func (s *Service) current(ctx context.Context, now time.Time) (*model.BotSession, error) {
	open, err := s.storage.GetOpenBotSession(ctx)
	if err != nil {
		if errors.Is(err, model.ErrBotSessionNotFound) {
			return nil, nil
		}
		return nil, storage.Classify(err)
	}
	if !open.Expired(now) {
		return open, nil
	}

	closed := open.Closed("", now)
	if _, expired, err := s.storage.CloseBotSession(ctx, &closed); err != nil {
		return nil, storage.Classify(err)
	} else if expired {
		s.logger.Info("chat bot question expired", slog.String("session_id", string(open.ID)))
	}
	return nil, nil
}

// payWinners re-issues the credit for answered questions. The credit is keyed
// by session, so this only pays winners whose credit was lost after the claim.
func (s *Service) payWinners(ctx context.Context, sessions []*model.BotSession) {
	for _, session := range sessions {
		if session.State != model.BotSessionAnswered || session.WinnerID == "" {
			continue
		}
		res, err := s.engine.CreditPoints(ctx, session.WinnerID, session.Reward, creditKey(session.ID))
		if err != nil {
			s.logger.Warn("chat bot reward retry failed",
				slog.String("session_id", string(session.ID)),
				slog.String("player_id", string(session.WinnerID)),
				slog.String("error", err.Error()))
			continue
		}
		if res.Applied {
			s.logger.Warn("chat bot reward recovered",
				slog.String("session_id", string(session.ID)),
				slog.String("player_id", string(session.WinnerID)))
		}
	}
}

// pick chooses a question not asked within the window
func (s *Service) pick(recent []*model.BotSession) (Question, bool) {
	asked := make(map[int]struct{}, len(recent))
	for _, session := range recent {
		asked[session.QuestionID] = struct{}{}
	}
	var candidates []Question
	for _, q := range s.cfg.Questions {
		if _, ok := asked[q.ID]; !ok {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return Question{}, false
	}
	return candidates[s.random.Intn(len(candidates))], true
}

func creditKey(id model.BotSessionID) string {
	return "chatbot:" + string(id)
}
