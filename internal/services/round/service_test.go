package round

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gaminghub/internal/dependencies/mocks"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/economy"
	"github.com/mcoot/gaminghub/internal/storage/memory"
	"github.com/mcoot/gaminghub/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	notifier *mocks.MockNotifier
	logs     *testutil.LogRecorder
	bank     *QuizBank
	service  *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.notifier = mocks.NewMockNotifier()
	s.logs = testutil.NewLogRecorder()
	logger := s.logs.Logger()

	bank, err := DefaultQuizBank()
	s.Require().NoError(err)
	s.bank = bank

	engine := economy.New(s.storage, s.clock, s.notifier, logger, economy.DefaultConfig())
	s.service = New(engine, s.storage, s.random, s.clock, s.notifier, logger, bank, DefaultConfig())
	s.ctx = context.Background()
}

func pick(n int) *int {
	return &n
}

func (s *ServiceSuite) startImpostor(id string, impostor int) *model.Round {
	s.random.QueueID(id)
	s.random.QueueIntn(impostor)
	started, err := s.service.Start(s.ctx, "p1", model.GameImpostor)
	s.Require().NoError(err)
	return started.Round
}

// Start tests

func (s *ServiceSuite) TestStartImpostor() {
	round := s.startImpostor("r1", 3)

	s.Equal(model.RoundID("r1"), round.ID)
	s.Equal(model.RoundInProgress, round.State)
	s.Equal(s.clock.Now().Add(ImpostorTimeLimit), round.Deadline)
	s.Equal(3, round.Secret["impostor"])

	stored, err := s.storage.GetRound(s.ctx, "r1")
	s.Require().NoError(err)
	s.Equal(model.RoundInProgress, stored.State)

	// Starting creates the account
	_, err = s.storage.GetAccount(s.ctx, "p1")
	s.NoError(err)
}

func (s *ServiceSuite) TestStartQuizHidesAnswers() {
	started, err := s.service.Start(s.ctx, "p1", model.GameQuiz)
	s.Require().NoError(err)
	s.Len(started.Questions, s.bank.Len())
	s.Equal(s.clock.Now().Add(time.Duration(s.bank.Len())*QuizQuestionTime), started.Round.Deadline)

	body, err := json.Marshal(started.Questions)
	s.Require().NoError(err)
	s.NotContains(string(body), "correct")
}

func (s *ServiceSuite) TestStartRejectsSpin() {
	_, err := s.service.Start(s.ctx, "p1", model.GameSpin)
	s.ErrorIs(err, model.ErrUnsupportedRound)
}

func (s *ServiceSuite) TestStartRequiresPlayer() {
	_, err := s.service.Start(s.ctx, "", model.GameQuiz)
	s.ErrorIs(err, model.ErrInvalidRequest)
}

// Complete tests

func (s *ServiceSuite) TestImpostorCorrectPickPaysForSpeed() {
	s.startImpostor("r1", 2)
	s.clock.Advance(10 * time.Second)

	done, err := s.service.Complete(s.ctx, "p1", "r1", Submission{Pick: pick(2)})
	s.Require().NoError(err)
	s.False(done.Replayed)
	s.Equal(model.RoundWon, done.Round.State)
	s.Equal(int64(50+2*20), done.Round.PointsEarned)
	s.Equal(int64(10), done.Round.ExpGained)
	s.Equal(int64(1), done.Round.TotalGames)

	acct, err := s.storage.GetAccount(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(90), acct.Points)
	s.Equal(int64(10), acct.Experience)
}

func (s *ServiceSuite) TestImpostorWrongPickEarnsExperienceOnly() {
	s.startImpostor("r1", 2)

	done, err := s.service.Complete(s.ctx, "p1", "r1", Submission{Pick: pick(4)})
	s.Require().NoError(err)
	s.Equal(model.RoundLost, done.Round.State)
	s.Equal(int64(0), done.Round.PointsEarned)
	s.Equal(false, done.Round.Data["correct"])

	acct, err := s.storage.GetAccount(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(0), acct.Points)
	s.Equal(int64(10), acct.Experience)
}

func (s *ServiceSuite) TestImpostorPickOutOfRange() {
	s.startImpostor("r1", 2)

	_, err := s.service.Complete(s.ctx, "p1", "r1", Submission{Pick: pick(ImpostorCharacters)})
	s.ErrorIs(err, model.ErrInvalidSubmission)

	_, err = s.service.Complete(s.ctx, "p1", "r1", Submission{})
	s.ErrorIs(err, model.ErrInvalidSubmission)

	// A rejected submission leaves the round playable
	stored, err := s.storage.GetRound(s.ctx, "r1")
	s.Require().NoError(err)
	s.Equal(model.RoundInProgress, stored.State)
}

func (s *ServiceSuite) TestCompleteAfterDeadlineTimesOut() {
	s.startImpostor("r1", 2)
	s.clock.Advance(ImpostorTimeLimit + time.Second)

	done, err := s.service.Complete(s.ctx, "p1", "r1", Submission{Pick: pick(2)})
	s.Require().NoError(err)
	s.Equal(model.RoundTimedOut, done.Round.State)
	s.Equal(int64(0), done.Round.PointsEarned)
	s.Equal(int64(10), done.Round.ExpGained)
}

func (s *ServiceSuite) TestCompleteTwiceReplays() {
	s.startImpostor("r1", 2)

	first, err := s.service.Complete(s.ctx, "p1", "r1", Submission{Pick: pick(2)})
	s.Require().NoError(err)

	again, err := s.service.Complete(s.ctx, "p1", "r1", Submission{Pick: pick(0)})
	s.Require().NoError(err)
	s.True(again.Replayed)
	s.Equal(first.Round.State, again.Round.State)
	s.Equal(first.Round.PointsEarned, again.Round.PointsEarned)

	acct, err := s.storage.GetAccount(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(1), acct.GamesPlayed)
	s.Len(s.notifier.EventsOfType(model.EventRoundCompleted), 1)
}

func (s *ServiceSuite) TestCompleteRacingSettlementKeepsItsOutcome() {
	s.startImpostor("r1", 2)

	// Another completion settled a win but has not recorded the round yet
	_, err := s.storage.ApplyDelta(s.ctx, "p1", model.Delta{
		Key:         "r1",
		Points:      90,
		Experience:  10,
		GamesPlayed: 1,
		Memo:        string(model.RoundWon),
		At:          s.clock.Now(),
	})
	s.Require().NoError(err)

	done, err := s.service.Complete(s.ctx, "p1", "r1", Submission{Pick: pick(4)})
	s.Require().NoError(err)
	s.Equal(model.RoundWon, done.Round.State)
	s.Equal(int64(90), done.Round.PointsEarned)
	s.NotContains(done.Round.Data, "correct")
	s.NotContains(done.Round.Data, "pick")

	stored, err := s.storage.GetRound(s.ctx, "r1")
	s.Require().NoError(err)
	s.Equal(model.RoundWon, stored.State)
	s.Equal(int64(90), stored.PointsEarned)
	s.Empty(s.notifier.EventsOfType(model.EventRoundCompleted))
}

func (s *ServiceSuite) TestSettledState() {
	s.Equal(model.RoundTimedOut, settledState(string(model.RoundTimedOut), 0))
	s.Equal(model.RoundLost, settledState(string(model.RoundLost), 0))
	s.Equal(model.RoundWon, settledState("", 90))
	s.Equal(model.RoundLost, settledState("", 0))
}

func (s *ServiceSuite) TestCompleteOtherPlayersRound() {
	s.startImpostor("r1", 2)

	_, err := s.service.Complete(s.ctx, "p2", "r1", Submission{Pick: pick(2)})
	s.ErrorIs(err, model.ErrNotRoundOwner)
}

func (s *ServiceSuite) TestCompleteUnknownRound() {
	_, err := s.service.Complete(s.ctx, "p1", "missing", Submission{Pick: pick(0)})
	s.ErrorIs(err, model.ErrRoundNotFound)
}

func (s *ServiceSuite) TestQuizScoresCorrectAnswers() {
	s.random.QueueID("q1")
	started, err := s.service.Start(s.ctx, "p1", model.GameQuiz)
	s.Require().NoError(err)

	first, _ := s.bank.Question(started.Questions[0].ID)
	second, _ := s.bank.Question(started.Questions[1].ID)
	third, _ := s.bank.Question(started.Questions[2].ID)

	done, err := s.service.Complete(s.ctx, "p1", "q1", Submission{Answers: []QuizAnswer{
		{QuestionID: first.ID, Answer: first.Correct, SecondsLeft: 10},
		// Reported time beyond the window is clamped
		{QuestionID: second.ID, Answer: second.Correct, SecondsLeft: 99},
		{QuestionID: third.ID, Answer: (third.Correct + 1) % len(third.Options), SecondsLeft: 15},
	}})
	s.Require().NoError(err)
	s.Equal(model.RoundWon, done.Round.State)
	s.Equal(first.Points+20+second.Points+30, done.Round.PointsEarned)
	s.Equal(int64(8), done.Round.ExpGained)
	s.Equal(2, done.Round.Data["correct_answers"])
}

func (s *ServiceSuite) TestQuizRejectsDuplicateAndUnknownQuestions() {
	s.random.QueueID("q1")
	started, err := s.service.Start(s.ctx, "p1", model.GameQuiz)
	s.Require().NoError(err)
	id := started.Questions[0].ID

	_, err = s.service.Complete(s.ctx, "p1", "q1", Submission{Answers: []QuizAnswer{
		{QuestionID: id}, {QuestionID: id},
	}})
	s.ErrorIs(err, model.ErrInvalidSubmission)

	_, err = s.service.Complete(s.ctx, "p1", "q1", Submission{Answers: []QuizAnswer{{QuestionID: -1}}})
	s.ErrorIs(err, model.ErrInvalidSubmission)
}

func (s *ServiceSuite) TestQuizWithNoCorrectAnswersIsLost() {
	s.random.QueueID("q1")
	_, err := s.service.Start(s.ctx, "p1", model.GameQuiz)
	s.Require().NoError(err)

	done, err := s.service.Complete(s.ctx, "p1", "q1", Submission{})
	s.Require().NoError(err)
	s.Equal(model.RoundLost, done.Round.State)
	s.Equal(int64(8), done.Round.ExpGained)
}

// ExpireStale tests

func (s *ServiceSuite) TestExpireStaleSettlesAbandonedRounds() {
	s.startImpostor("r1", 2)
	s.random.QueueID("q1")
	_, err := s.service.Start(s.ctx, "p1", model.GameQuiz)
	s.Require().NoError(err)

	// Inside the grace period nothing expires
	s.clock.Advance(ImpostorTimeLimit + time.Second)
	n, err := s.service.ExpireStale(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, n)

	s.clock.Advance(DefaultConfig().Grace)
	n, err = s.service.ExpireStale(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	stored, err := s.storage.GetRound(s.ctx, "r1")
	s.Require().NoError(err)
	s.Equal(model.RoundTimedOut, stored.State)

	quiz, err := s.storage.GetRound(s.ctx, "q1")
	s.Require().NoError(err)
	s.Equal(model.RoundInProgress, quiz.State)

	// A second sweep has nothing left to do
	n, err = s.service.ExpireStale(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, n)
}

// History tests

func (s *ServiceSuite) TestHistoryNewestFirst() {
	for _, id := range []string{"a", "b", "c"} {
		s.startImpostor(id, 0)
		s.clock.Advance(time.Second)
	}

	rounds, err := s.service.History(s.ctx, "p1", 2)
	s.Require().NoError(err)
	s.Require().Len(rounds, 2)
	s.Equal(model.RoundID("c"), rounds[0].ID)
	s.Equal(model.RoundID("b"), rounds[1].ID)
}

func (s *ServiceSuite) TestViewStripsSecret() {
	round := s.startImpostor("r1", 4)

	view := View(round)
	s.Nil(view.Secret)
	s.NotNil(round.Secret)
}

// RecordAward tests

func (s *ServiceSuite) TestRecordAwardKeepsPointsInHistoryOnly() {
	award, err := s.service.RecordAward(s.ctx, ExternalAward{
		PlayerID:     "p1",
		GameType:     model.GameImpostor,
		Key:          "ext-1",
		PointsEarned: 70,
	})
	s.Require().NoError(err)
	s.Equal(int64(10), award.ExpGained)

	acct, err := s.storage.GetAccount(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(0), acct.Points)
	s.Equal(int64(10), acct.Experience)

	stored, err := s.storage.GetRound(s.ctx, reportedRoundID("p1", "ext-1"))
	s.Require().NoError(err)
	s.Equal(int64(70), stored.PointsEarned)
	s.Equal(model.RoundWon, stored.State)
}

func (s *ServiceSuite) TestRecordAwardReplayDoesNotDoubleAward() {
	report := ExternalAward{PlayerID: "p1", GameType: model.GameQuiz, Key: "ext-1"}

	_, err := s.service.RecordAward(s.ctx, report)
	s.Require().NoError(err)
	again, err := s.service.RecordAward(s.ctx, report)
	s.Require().NoError(err)
	s.True(again.Replayed)
	s.Equal(int64(8), again.NewExperience)

	rounds, err := s.storage.ListRecentRounds(s.ctx, "p1", 10)
	s.Require().NoError(err)
	s.Len(rounds, 1)
}

func (s *ServiceSuite) TestRecordAwardWithoutKeyIsNotDeduplicated() {
	report := ExternalAward{PlayerID: "p1", GameType: model.GameSpin}

	_, err := s.service.RecordAward(s.ctx, report)
	s.Require().NoError(err)
	second, err := s.service.RecordAward(s.ctx, report)
	s.Require().NoError(err)
	s.False(second.Replayed)
	s.Equal(int64(10), second.NewExperience)
	s.Equal(int64(2), second.TotalGames)

	warning := s.logs.Find("award reported without idempotency key")
	s.Require().NotNil(warning)
	s.Equal("WARN", warning["level"])
	s.Equal("p1", warning["player_id"])
}

func (s *ServiceSuite) TestRecordAwardRefusesHubRoundID() {
	s.startImpostor("r1", 2)

	_, err := s.service.RecordAward(s.ctx, ExternalAward{PlayerID: "p1", GameType: model.GameImpostor, Key: "r1"})
	s.ErrorIs(err, model.ErrRoundKeyConflict)

	// The round still settles for its full score
	s.clock.Advance(10 * time.Second)
	done, err := s.service.Complete(s.ctx, "p1", "r1", Submission{Pick: pick(2)})
	s.Require().NoError(err)
	s.False(done.Replayed)
	s.Equal(int64(90), done.Round.PointsEarned)

	_, err = s.service.RecordAward(s.ctx, ExternalAward{PlayerID: "p1", GameType: model.GameImpostor, Key: "r1"})
	s.ErrorIs(err, model.ErrRoundKeyConflict)

	acct, err := s.storage.GetAccount(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(10), acct.Experience)
	s.Equal(int64(1), acct.GamesPlayed)
}

func (s *ServiceSuite) TestRecordAwardKeysAreScopedPerPlayer() {
	for _, player := range []model.PlayerID{"alice", "bob"} {
		award, err := s.service.RecordAward(s.ctx, ExternalAward{PlayerID: player, GameType: model.GameImpostor, Key: "round-1"})
		s.Require().NoError(err)
		s.False(award.Replayed)
		s.Equal(int64(10), award.NewExperience)
	}

	for _, player := range []model.PlayerID{"alice", "bob"} {
		history, err := s.service.History(s.ctx, player, 10)
		s.Require().NoError(err)
		s.Require().Len(history, 1, "player %s", player)
		s.Equal(player, history[0].PlayerID)
	}
}

func (s *ServiceSuite) TestRecordAwardReplayRestoresLostHistory() {
	// An earlier report settled but never recorded its round
	_, err := s.service.engine.AwardExperience(s.ctx, "p1", model.GameQuiz, "report:ext-1")
	s.Require().NoError(err)
	s.notifier.Reset()

	report := ExternalAward{PlayerID: "p1", GameType: model.GameQuiz, Key: "ext-1", PointsEarned: 40}
	again, err := s.service.RecordAward(s.ctx, report)
	s.Require().NoError(err)
	s.True(again.Replayed)

	stored, err := s.storage.GetRound(s.ctx, reportedRoundID("p1", "ext-1"))
	s.Require().NoError(err)
	s.Equal(int64(8), stored.NewExperience)
	s.Equal(int64(40), stored.PointsEarned)
	s.Empty(s.notifier.EventsOfType(model.EventRoundCompleted))
}
