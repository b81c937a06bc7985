// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/storage"
)

// Suite runs the storage contract against a backend.
// Backends embed it and set NewStorage in SetupTest.
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
	Now     time.Time
}

// Init prepares the suite with a fresh store
func (s *Suite) Init(store storage.Storage) {
	s.Storage = store
	s.Ctx = context.Background()
	s.Now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	if s.Storage != nil {
		_ = s.Storage.Close()
	}
}

func (s *Suite) TestPing() {
	s.NoError(s.Storage.Ping(s.Ctx))
}

// Account tests

func (s *Suite) TestGetAccountNotFound() {
	_, err := s.Storage.GetAccount(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestEnsureAccountCreatesDefaults() {
	acct, created, err := s.Storage.EnsureAccount(s.Ctx, "p1", s.Now)
	s.Require().NoError(err)
	s.True(created)
	s.Equal(model.PlayerID("p1"), acct.ID)
	s.Equal(int64(0), acct.Points)
	s.Equal(int64(0), acct.Experience)
	s.Equal(1, acct.Level)
	s.Equal(int64(0), acct.GamesPlayed)

	again, created, err := s.Storage.EnsureAccount(s.Ctx, "p1", s.Now.Add(time.Hour))
	s.Require().NoError(err)
	s.False(created)
	s.True(acct.CreatedAt.Equal(again.CreatedAt))
}

func (s *Suite) TestApplyDeltaCreatesMissingAccount() {
	res, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Points: 30, At: s.Now})
	s.Require().NoError(err)
	s.True(res.Applied)
	s.Equal(int64(0), res.Before.Points)
	s.Equal(int64(30), res.After.Points)

	acct, err := s.Storage.GetAccount(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(30), acct.Points)
}

func (s *Suite) TestApplyDeltaRecomputesLevel() {
	_, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Experience: 95, At: s.Now})
	s.Require().NoError(err)

	res, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Experience: 10, GamesPlayed: 1, At: s.Now})
	s.Require().NoError(err)
	s.Equal(1, res.Before.Level)
	s.Equal(2, res.After.Level)
	s.Equal(int64(105), res.After.Experience)
	s.Equal(int64(1), res.After.GamesPlayed)

	acct, err := s.Storage.GetAccount(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(2, acct.Level)
}

func (s *Suite) TestApplyDeltaLevelClampsAtMax() {
	res, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Experience: 999999, At: s.Now})
	s.Require().NoError(err)
	s.Equal(model.MaxLevel, res.After.Level)
}

func (s *Suite) TestApplyDeltaRejectsOverdraft() {
	_, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Points: 40, At: s.Now})
	s.Require().NoError(err)

	_, err = s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Points: -50, At: s.Now})
	s.ErrorIs(err, model.ErrInsufficientFunds)

	acct, err := s.Storage.GetAccount(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(40), acct.Points)
}

func (s *Suite) TestApplyDeltaEnforcesMinBalance() {
	_, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Points: 40, At: s.Now})
	s.Require().NoError(err)

	_, err = s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Key: "spin-1", Points: 100, MinBalance: 50, At: s.Now})
	s.ErrorIs(err, model.ErrInsufficientFunds)

	acct, err := s.Storage.GetAccount(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(40), acct.Points)

	// A rejected key is not burnt
	_, err = s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Points: 10, At: s.Now})
	s.Require().NoError(err)
	res, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Key: "spin-1", Points: 100, MinBalance: 50, At: s.Now})
	s.Require().NoError(err)
	s.True(res.Applied)
	s.Equal(int64(150), res.After.Points)
}

func (s *Suite) TestApplyDeltaIsIdempotentPerKey() {
	first, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Key: "round-1", Experience: 10, GamesPlayed: 1, At: s.Now})
	s.Require().NoError(err)
	s.True(first.Applied)

	// Another award in between must not change the replayed result
	_, err = s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Key: "round-2", Experience: 8, GamesPlayed: 1, At: s.Now})
	s.Require().NoError(err)

	replay, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Key: "round-1", Experience: 10, GamesPlayed: 1, At: s.Now})
	s.Require().NoError(err)
	s.False(replay.Applied)
	s.Equal(first.After.Experience, replay.After.Experience)
	s.Equal(first.After.GamesPlayed, replay.After.GamesPlayed)

	acct, err := s.Storage.GetAccount(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(18), acct.Experience)
	s.Equal(int64(2), acct.GamesPlayed)
}

func (s *Suite) TestApplyDeltaReplaysMemo() {
	first, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Key: "spin-1", Points: 400, Memo: "purple,purple,purple", At: s.Now})
	s.Require().NoError(err)
	s.Equal("purple,purple,purple", first.Memo)

	// The retry carries a different memo; the stored one wins
	replay, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Key: "spin-1", Points: -50, Memo: "blue,green,purple", At: s.Now})
	s.Require().NoError(err)
	s.False(replay.Applied)
	s.Equal("purple,purple,purple", replay.Memo)
	s.Equal(int64(400), replay.After.Points-replay.Before.Points)
}

func (s *Suite) TestApplyDeltaKeysAreScopedPerPlayer() {
	_, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Key: "round-1", Experience: 10, At: s.Now})
	s.Require().NoError(err)

	res, err := s.Storage.ApplyDelta(s.Ctx, "p2", model.Delta{Key: "round-1", Experience: 10, At: s.Now})
	s.Require().NoError(err)
	s.True(res.Applied)
}

func (s *Suite) TestApplyDeltaRejectsNegativeExperience() {
	_, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{Experience: -1, At: s.Now})
	s.ErrorIs(err, model.ErrInvalidRequest)
}

func (s *Suite) TestConcurrentDeltasAreNotLost() {
	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Storage.ApplyDelta(s.Ctx, "p1", model.Delta{
				Key:         fmt.Sprintf("round-%d", i),
				Points:      5,
				Experience:  10,
				GamesPlayed: 1,
				At:          s.Now,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	acct, err := s.Storage.GetAccount(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(workers*5), acct.Points)
	s.Equal(int64(workers*10), acct.Experience)
	s.Equal(int64(workers), acct.GamesPlayed)
	s.Equal(model.LevelOf(workers*10), acct.Level)
}

func (s *Suite) TestTopAccounts() {
	_, _ = s.Storage.ApplyDelta(s.Ctx, "alice", model.Delta{Points: 300, Experience: 50, At: s.Now})
	_, _ = s.Storage.ApplyDelta(s.Ctx, "bob", model.Delta{Points: 500, Experience: 20, At: s.Now})
	_, _ = s.Storage.ApplyDelta(s.Ctx, "carol", model.Delta{Points: 100, Experience: 400, At: s.Now})

	byPoints, err := s.Storage.TopAccounts(s.Ctx, model.RankByPoints, 2)
	s.Require().NoError(err)
	s.Require().Len(byPoints, 2)
	s.Equal(model.PlayerID("bob"), byPoints[0].ID)
	s.Equal(model.PlayerID("alice"), byPoints[1].ID)

	byExp, err := s.Storage.TopAccounts(s.Ctx, model.RankByExperience, 10)
	s.Require().NoError(err)
	s.Require().Len(byExp, 3)
	s.Equal(model.PlayerID("carol"), byExp[0].ID)
	s.Equal(3, byExp[0].Level)
}

func (s *Suite) TestTopAccountsBreaksTiesByID() {
	_, _ = s.Storage.ApplyDelta(s.Ctx, "zed", model.Delta{Points: 100, At: s.Now})
	_, _ = s.Storage.ApplyDelta(s.Ctx, "amy", model.Delta{Points: 100, At: s.Now})

	top, err := s.Storage.TopAccounts(s.Ctx, model.RankByPoints, 10)
	s.Require().NoError(err)
	s.Require().Len(top, 2)
	s.Equal(model.PlayerID("amy"), top[0].ID)
	s.Equal(model.PlayerID("zed"), top[1].ID)
}

// Round tests

func (s *Suite) newRound(id model.RoundID, player model.PlayerID, startedAt time.Time) *model.Round {
	return &model.Round{
		ID:        id,
		PlayerID:  player,
		GameType:  model.GameImpostor,
		State:     model.RoundInProgress,
		StartedAt: startedAt,
		Deadline:  startedAt.Add(30 * time.Second),
	}
}

func (s *Suite) TestSaveAndGetRound() {
	round := s.newRound("r1", "p1", s.Now)
	round.Data = map[string]any{"questions": float64(20)}
	s.Require().NoError(s.Storage.SaveRound(s.Ctx, round))

	got, err := s.Storage.GetRound(s.Ctx, "r1")
	s.Require().NoError(err)
	s.Equal(round.ID, got.ID)
	s.Equal(round.PlayerID, got.PlayerID)
	s.Equal(model.RoundInProgress, got.State)
	s.True(round.Deadline.Equal(got.Deadline))
	s.Equal(float64(20), got.Data["questions"])
}

func (s *Suite) TestGetRoundNotFound() {
	_, err := s.Storage.GetRound(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrRoundNotFound)
}

func (s *Suite) TestSaveRoundOverwritesState() {
	round := s.newRound("r1", "p1", s.Now)
	s.Require().NoError(s.Storage.SaveRound(s.Ctx, round))

	round.State = model.RoundWon
	round.PointsEarned = 90
	round.CompletedAt = s.Now.Add(10 * time.Second)
	s.Require().NoError(s.Storage.SaveRound(s.Ctx, round))

	got, err := s.Storage.GetRound(s.Ctx, "r1")
	s.Require().NoError(err)
	s.Equal(model.RoundWon, got.State)
	s.Equal(int64(90), got.PointsEarned)
}

func (s *Suite) TestListRecentRounds() {
	for i := 0; i < 5; i++ {
		round := s.newRound(model.RoundID(fmt.Sprintf("r%d", i)), "p1", s.Now.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(s.Storage.SaveRound(s.Ctx, round))
	}
	s.Require().NoError(s.Storage.SaveRound(s.Ctx, s.newRound("other", "p2", s.Now)))

	rounds, err := s.Storage.ListRecentRounds(s.Ctx, "p1", 3)
	s.Require().NoError(err)
	s.Require().Len(rounds, 3)
	s.Equal(model.RoundID("r4"), rounds[0].ID)
	s.Equal(model.RoundID("r3"), rounds[1].ID)
	s.Equal(model.RoundID("r2"), rounds[2].ID)
}

func (s *Suite) TestListRecentRoundsEmpty() {
	rounds, err := s.Storage.ListRecentRounds(s.Ctx, "nobody", 10)
	s.Require().NoError(err)
	s.Empty(rounds)
}

func (s *Suite) TestListExpiredRounds() {
	expired := s.newRound("old", "p1", s.Now.Add(-time.Hour))
	active := s.newRound("fresh", "p1", s.Now)
	finished := s.newRound("done", "p1", s.Now.Add(-time.Hour))
	finished.State = model.RoundLost
	s.Require().NoError(s.Storage.SaveRound(s.Ctx, expired))
	s.Require().NoError(s.Storage.SaveRound(s.Ctx, active))
	s.Require().NoError(s.Storage.SaveRound(s.Ctx, finished))

	rounds, err := s.Storage.ListExpiredRounds(s.Ctx, s.Now, 10)
	s.Require().NoError(err)
	s.Require().Len(rounds, 1)
	s.Equal(model.RoundID("old"), rounds[0].ID)

	// Completing the round removes it from the expiry set
	expired.State = model.RoundTimedOut
	s.Require().NoError(s.Storage.SaveRound(s.Ctx, expired))
	rounds, err = s.Storage.ListExpiredRounds(s.Ctx, s.Now, 10)
	s.Require().NoError(err)
	s.Empty(rounds)
}

// Chat bot session tests

func (s *Suite) newBotSession(id model.BotSessionID, createdAt time.Time) *model.BotSession {
	return &model.BotSession{
		ID:         id,
		QuestionID: 3,
		Question:   "What colour pays the most?",
		Answer:     "purple",
		Reward:     50,
		State:      model.BotSessionOpen,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(2 * time.Hour),
	}
}

func (s *Suite) TestGetOpenBotSessionNotFound() {
	_, err := s.Storage.GetOpenBotSession(s.Ctx)
	s.ErrorIs(err, model.ErrBotSessionNotFound)

	_, err = s.Storage.GetBotSession(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrBotSessionNotFound)
}

func (s *Suite) TestCreateBotSessionAllowsOneOpen() {
	s.Require().NoError(s.Storage.CreateBotSession(s.Ctx, s.newBotSession("q1", s.Now)))
	err := s.Storage.CreateBotSession(s.Ctx, s.newBotSession("q2", s.Now))
	s.ErrorIs(err, model.ErrBotSessionActive)

	open, err := s.Storage.GetOpenBotSession(s.Ctx)
	s.Require().NoError(err)
	s.Equal(model.BotSessionID("q1"), open.ID)
	s.Equal("purple", open.Answer)
	s.Equal(int64(50), open.Reward)
}

func (s *Suite) TestCloseBotSessionClaimsOnce() {
	session := s.newBotSession("q1", s.Now)
	s.Require().NoError(s.Storage.CreateBotSession(s.Ctx, session))

	first := session.Closed("alice", s.Now.Add(time.Minute))
	stored, ok, err := s.Storage.CloseBotSession(s.Ctx, &first)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(model.PlayerID("alice"), stored.WinnerID)
	s.Equal(model.BotSessionAnswered, stored.State)

	second := session.Closed("bob", s.Now.Add(2*time.Minute))
	stored, ok, err = s.Storage.CloseBotSession(s.Ctx, &second)
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(model.PlayerID("alice"), stored.WinnerID)

	_, err = s.Storage.GetOpenBotSession(s.Ctx)
	s.ErrorIs(err, model.ErrBotSessionNotFound)

	// The slot is free again once the question closes
	s.NoError(s.Storage.CreateBotSession(s.Ctx, s.newBotSession("q2", s.Now.Add(time.Hour))))
}

func (s *Suite) TestCloseUnknownBotSession() {
	closed := s.newBotSession("ghost", s.Now).Closed("", s.Now)
	_, _, err := s.Storage.CloseBotSession(s.Ctx, &closed)
	s.ErrorIs(err, model.ErrBotSessionNotFound)
}

func (s *Suite) TestListBotSessionsSince() {
	for i := 0; i < 3; i++ {
		session := s.newBotSession(model.BotSessionID(fmt.Sprintf("q%d", i)), s.Now.Add(time.Duration(i)*time.Hour))
		s.Require().NoError(s.Storage.CreateBotSession(s.Ctx, session))
		closed := session.Closed("", session.CreatedAt.Add(time.Minute))
		_, ok, err := s.Storage.CloseBotSession(s.Ctx, &closed)
		s.Require().NoError(err)
		s.Require().True(ok)
	}

	sessions, err := s.Storage.ListBotSessionsSince(s.Ctx, s.Now.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal(model.BotSessionID("q1"), sessions[0].ID)
	s.Equal(model.BotSessionID("q2"), sessions[1].ID)
	s.Equal(model.BotSessionExpired, sessions[1].State)
}
