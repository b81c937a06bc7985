package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	mini  *miniredis.Miniredis
	redis *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.RoundTTL = time.Hour
	cfg.AppliedTTL = time.Hour

	s.redis = NewWithClient(client, cfg)
	s.Init(s.redis)
}

func (s *StorageSuite) TearDownTest() {
	s.Suite.TearDownTest()
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) TestAccountHashLayout() {
	_, err := s.redis.ApplyDelta(s.Ctx, "p1", model.Delta{Points: 25, Experience: 120, GamesPlayed: 1, At: s.Now})
	s.Require().NoError(err)

	s.Equal("25", s.mini.HGet(accountKey("p1"), "points"))
	s.Equal("120", s.mini.HGet(accountKey("p1"), "experience"))
	s.Equal("2", s.mini.HGet(accountKey("p1"), "level"))
	s.Equal("1", s.mini.HGet(accountKey("p1"), "games_played"))
}

func (s *StorageSuite) TestAppliedRecordHasTTL() {
	_, err := s.redis.ApplyDelta(s.Ctx, "p1", model.Delta{Key: "round-1", Experience: 10, At: s.Now})
	s.Require().NoError(err)

	s.True(s.mini.Exists(appliedKey("p1", "round-1")))
	s.Equal(time.Hour, s.mini.TTL(appliedKey("p1", "round-1")))
}

func (s *StorageSuite) TestUnkeyedDeltaLeavesNoRecord() {
	_, err := s.redis.ApplyDelta(s.Ctx, "p1", model.Delta{Experience: 10, At: s.Now})
	s.Require().NoError(err)

	s.False(s.mini.Exists(appliedKey("p1", "")))
}

func (s *StorageSuite) TestRejectedDeltaDoesNotCreateAccount() {
	_, err := s.redis.ApplyDelta(s.Ctx, "p1", model.Delta{Points: 100, MinBalance: 50, At: s.Now})
	s.ErrorIs(err, model.ErrInsufficientFunds)

	s.False(s.mini.Exists(accountKey("p1")))
}

func (s *StorageSuite) TestRoundHasTTL() {
	round := &model.Round{
		ID:        "r1",
		PlayerID:  "p1",
		GameType:  model.GameSpin,
		State:     model.RoundWon,
		StartedAt: s.Now,
	}
	s.Require().NoError(s.redis.SaveRound(s.Ctx, round))

	s.Equal(time.Hour, s.mini.TTL(roundKey("r1")))
	s.Equal(time.Hour, s.mini.TTL(playerRoundsIndexKey("p1")))
}

func (s *StorageSuite) TestExpiredRoundIsSkipped() {
	round := &model.Round{ID: "r1", PlayerID: "p1", State: model.RoundLost, StartedAt: s.Now}
	s.Require().NoError(s.redis.SaveRound(s.Ctx, round))

	s.mini.FastForward(2 * time.Hour)

	_, err := s.redis.GetRound(s.Ctx, "r1")
	s.ErrorIs(err, model.ErrRoundNotFound)

	rounds, err := s.redis.ListRecentRounds(s.Ctx, "p1", 10)
	s.Require().NoError(err)
	s.Empty(rounds)
}

func (s *StorageSuite) TestRoundHistoryIsCapped() {
	s.redis.cfg.RoundHistoryLimit = 3
	for i := 0; i < 5; i++ {
		round := &model.Round{
			ID:        model.RoundID(string(rune('a' + i))),
			PlayerID:  "p1",
			State:     model.RoundLost,
			StartedAt: s.Now.Add(time.Duration(i) * time.Minute),
		}
		s.Require().NoError(s.redis.SaveRound(s.Ctx, round))
	}

	members, err := s.mini.ZMembers(playerRoundsIndexKey("p1"))
	s.Require().NoError(err)
	s.Equal([]string{"c", "d", "e"}, members)
}

func (s *StorageSuite) TestTopAccountsIncludesTiesAtCutoff() {
	for _, id := range []model.PlayerID{"d", "c", "b", "a"} {
		_, err := s.redis.ApplyDelta(s.Ctx, id, model.Delta{Points: 10, At: s.Now})
		s.Require().NoError(err)
	}

	top, err := s.redis.TopAccounts(s.Ctx, model.RankByPoints, 2)
	s.Require().NoError(err)
	s.Require().Len(top, 2)
	s.Equal(model.PlayerID("a"), top[0].ID)
	s.Equal(model.PlayerID("b"), top[1].ID)
}
