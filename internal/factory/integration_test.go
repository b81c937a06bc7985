package factory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/auth"
	"github.com/mcoot/gaminghub/internal/services/round"
	"github.com/mcoot/gaminghub/internal/storage/sqlstore"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.app.Close())
}

// Test: A new player spins, plays an impostor round and climbs the leaderboard
func (s *IntegrationSuite) TestPlayerSession() {
	s.app.Fund("alice", 100)
	s.app.Fund("bob", 120)

	// Spin: purple triple pays 450
	s.app.MockRandom.QueueIntn(2, 2, 2)
	spun, err := s.app.SpinService.Spin(s.ctx, "alice", "req-1")
	s.Require().NoError(err)
	s.Equal(int64(500), spun.Balance)

	// Impostor round, answered after 5 seconds
	s.app.MockRandom.QueueID("round-1")
	s.app.MockRandom.QueueIntn(4)
	started, err := s.app.RoundService.Start(s.ctx, "alice", model.GameImpostor)
	s.Require().NoError(err)

	s.app.MockClock.Advance(5 * time.Second)
	pick := 4
	done, err := s.app.RoundService.Complete(s.ctx, "alice", started.Round.ID, round.Submission{Pick: &pick})
	s.Require().NoError(err)
	s.Equal(int64(50+2*25), done.Round.PointsEarned)

	acct, err := s.app.Engine.Account(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(600), acct.Points)
	s.Equal(int64(15), acct.Experience)
	s.Equal(int64(2), acct.GamesPlayed)

	board, err := s.app.LeaderboardService.Top(s.ctx, model.RankByPoints, 10)
	s.Require().NoError(err)
	s.Require().Len(board, 2)
	s.Equal(model.PlayerID("alice"), board[0].PlayerID)
	s.Equal(model.PlayerID("bob"), board[1].PlayerID)

	history, err := s.app.RoundService.History(s.ctx, "alice", 0)
	s.Require().NoError(err)
	s.Len(history, 2)
}

// Test: Chat unlocks at level 3
func (s *IntegrationSuite) TestChatUnlocksWithLevel() {
	_, err := s.app.ModerationService.Check(s.ctx, "carol", "hello")
	s.ErrorIs(err, model.ErrLevelTooLow)

	for i := 0; i < 25; i++ {
		_, err := s.app.Engine.AwardExperience(s.ctx, "carol", model.GameImpostor, fmt.Sprintf("r-%d", i))
		s.Require().NoError(err)
	}

	verdict, err := s.app.ModerationService.Check(s.ctx, "carol", "hello")
	s.Require().NoError(err)
	s.True(verdict.Allowed)
}

// Test: Concurrent spins settle exactly once each and never overdraw
func (s *IntegrationSuite) TestConcurrentSpinsAreNotLost() {
	s.app.Fund("dave", 100)
	// Alternating blue and green draws make every spin a mix of wins and losses
	for i := 0; i < 30; i++ {
		s.app.MockRandom.QueueIntn(i % 2)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		net     int64
		settled int64
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.app.SpinService.Spin(s.ctx, "dave", fmt.Sprintf("req-%d", i))
			if err != nil {
				s.ErrorIs(err, model.ErrInsufficientFunds)
				return
			}
			mu.Lock()
			net += res.Net
			settled++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	acct, err := s.app.Engine.Account(s.ctx, "dave")
	s.Require().NoError(err)
	s.Equal(100+net, acct.Points)
	s.GreaterOrEqual(acct.Points, int64(0))
	s.Equal(settled, acct.GamesPlayed)
}

// Test: The sweeper settles abandoned rounds
func (s *IntegrationSuite) TestSweeperSettlesAbandonedRounds() {
	s.app.MockRandom.QueueID("quiz-1")
	_, err := s.app.RoundService.Start(s.ctx, "erin", model.GameQuiz)
	s.Require().NoError(err)

	s.app.MockClock.Advance(time.Hour)
	n, err := s.app.RoundService.ExpireStale(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	acct, err := s.app.Engine.Account(s.ctx, "erin")
	s.Require().NoError(err)
	s.Equal(int64(8), acct.Experience)
	s.Equal(int64(0), acct.Points)
}

// Test: New wires the SQLite backend end to end
func TestNewWithSQLite(t *testing.T) {
	ctx := context.Background()
	authCfg := auth.DefaultConfig()
	authCfg.Secret = TestSecret

	app, err := New(ctx, Config{
		AuthConfig:  authCfg,
		StorageType: StorageTypeSQLite,
		SQLConfig:   &sqlstore.Config{DSN: filepath.Join(t.TempDir(), "hub.db")},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Close()

	res, err := app.Engine.AwardExperience(ctx, "p1", model.GameQuiz, "r1")
	if err != nil {
		t.Fatalf("AwardExperience: %v", err)
	}
	if res.NewExperience != 8 {
		t.Fatalf("NewExperience = %d, want 8", res.NewExperience)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	ctx := context.Background()
	authCfg := auth.DefaultConfig()
	authCfg.Secret = TestSecret

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing secret", Config{}},
		{"unknown storage", Config{AuthConfig: authCfg, StorageType: "cassandra"}},
		{"redis without config", Config{AuthConfig: authCfg, StorageType: StorageTypeRedis}},
		{"sqlite without config", Config{AuthConfig: authCfg, StorageType: StorageTypeSQLite}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(ctx, tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
