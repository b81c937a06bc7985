package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	accounts map[model.PlayerID]*model.Account
	applied  map[appliedKey]model.DeltaResult
	rounds   map[model.RoundID]*model.Round

	botSessions map[model.BotSessionID]*model.BotSession
	openBot     model.BotSessionID
}

type appliedKey struct {
	playerID model.PlayerID
	key      string
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts: make(map[model.PlayerID]*model.Account),
		applied:  make(map[appliedKey]model.DeltaResult),
		rounds:   make(map[model.RoundID]*model.Round),

		botSessions: make(map[model.BotSessionID]*model.BotSession),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op for the in-memory store
func (s *Storage) Close() error {
	return nil
}

// Ping always succeeds
func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

// Account operations

func (s *Storage) GetAccount(ctx context.Context, id model.PlayerID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

func (s *Storage) EnsureAccount(ctx context.Context, id model.PlayerID, now time.Time) (*model.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[id]; ok {
		cp := *acct
		return &cp, false, nil
	}
	acct := model.NewAccount(id, now)
	s.accounts[id] = acct
	cp := *acct
	return &cp, true, nil
}

func (s *Storage) ApplyDelta(ctx context.Context, id model.PlayerID, delta model.Delta) (*model.DeltaResult, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ak := appliedKey{playerID: id, key: delta.Key}
	if delta.Key != "" {
		if prev, ok := s.applied[ak]; ok {
			prev.Applied = false
			return &prev, nil
		}
	}

	at := delta.At
	if at.IsZero() {
		at = time.Now()
	}
	current, ok := s.accounts[id]
	if !ok {
		current = model.NewAccount(id, at)
	}

	next, err := current.Apply(delta)
	if err != nil {
		return nil, err
	}

	s.accounts[id] = &next
	result := model.DeltaResult{Before: *current, After: next, Memo: delta.Memo, Applied: true}
	if delta.Key != "" {
		s.applied[ak] = result
	}
	return &result, nil
}

func (s *Storage) TopAccounts(ctx context.Context, by model.RankBy, limit int) ([]*model.Account, error) {
	s.mu.RLock()
	accounts := make([]*model.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		cp := *acct
		accounts = append(accounts, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(accounts, func(i, j int) bool {
		a, b := rankValue(accounts[i], by), rankValue(accounts[j], by)
		if a != b {
			return a > b
		}
		return accounts[i].ID < accounts[j].ID
	})

	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

func rankValue(a *model.Account, by model.RankBy) int64 {
	if by == model.RankByExperience {
		return a.Experience
	}
	return a.Points
}

// Round operations

func (s *Storage) SaveRound(ctx context.Context, round *model.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[round.ID] = cloneRound(round)
	return nil
}

func (s *Storage) GetRound(ctx context.Context, id model.RoundID) (*model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	round, ok := s.rounds[id]
	if !ok {
		return nil, model.ErrRoundNotFound
	}
	return cloneRound(round), nil
}

func (s *Storage) ListRecentRounds(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.Round, error) {
	s.mu.RLock()
	var rounds []*model.Round
	for _, round := range s.rounds {
		if round.PlayerID == playerID {
			rounds = append(rounds, cloneRound(round))
		}
	}
	s.mu.RUnlock()

	sort.Slice(rounds, func(i, j int) bool {
		return rounds[i].StartedAt.After(rounds[j].StartedAt)
	})
	if limit > 0 && len(rounds) > limit {
		rounds = rounds[:limit]
	}
	return rounds, nil
}

func (s *Storage) ListExpiredRounds(ctx context.Context, before time.Time, limit int) ([]*model.Round, error) {
	s.mu.RLock()
	var rounds []*model.Round
	for _, round := range s.rounds {
		if round.State == model.RoundInProgress && !round.Deadline.IsZero() && round.Deadline.Before(before) {
			rounds = append(rounds, cloneRound(round))
		}
	}
	s.mu.RUnlock()

	sort.Slice(rounds, func(i, j int) bool {
		return rounds[i].Deadline.Before(rounds[j].Deadline)
	})
	if limit > 0 && len(rounds) > limit {
		rounds = rounds[:limit]
	}
	return rounds, nil
}

// cloneRound copies the round and its top-level maps so callers cannot
// mutate stored state
func cloneRound(round *model.Round) *model.Round {
	cp := *round
	cp.Data = maps.Clone(round.Data)
	cp.Secret = maps.Clone(round.Secret)
	return &cp
}

// Chat bot operations

func (s *Storage) CreateBotSession(ctx context.Context, session *model.BotSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openBot != "" {
		return model.ErrBotSessionActive
	}
	cp := *session
	s.botSessions[session.ID] = &cp
	s.openBot = session.ID
	return nil
}

func (s *Storage) GetBotSession(ctx context.Context, id model.BotSessionID) (*model.BotSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.botSessions[id]
	if !ok {
		return nil, model.ErrBotSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *Storage) GetOpenBotSession(ctx context.Context) (*model.BotSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.openBot == "" {
		return nil, model.ErrBotSessionNotFound
	}
	cp := *s.botSessions[s.openBot]
	return &cp, nil
}

func (s *Storage) CloseBotSession(ctx context.Context, closed *model.BotSession) (*model.BotSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.botSessions[closed.ID]
	if !ok {
		return nil, false, model.ErrBotSessionNotFound
	}
	if s.openBot != closed.ID {
		cp := *stored
		return &cp, false, nil
	}
	cp := *closed
	s.botSessions[closed.ID] = &cp
	s.openBot = ""
	out := cp
	return &out, true, nil
}

func (s *Storage) ListBotSessionsSince(ctx context.Context, since time.Time) ([]*model.BotSession, error) {
	s.mu.RLock()
	sessions := []*model.BotSession{}
	for _, session := range s.botSessions {
		if !session.CreatedAt.Before(since) {
			cp := *session
			sessions = append(sessions, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}
