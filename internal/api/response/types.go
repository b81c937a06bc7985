package response

import (
	"time"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/chatbot"
	"github.com/mcoot/gaminghub/internal/services/leaderboard"
	"github.com/mcoot/gaminghub/internal/services/moderation"
	"github.com/mcoot/gaminghub/internal/services/referral"
	"github.com/mcoot/gaminghub/internal/services/round"
	"github.com/mcoot/gaminghub/internal/services/spin"
)

// Account represents a player's economy record in API responses
type Account struct {
	ID          string        `json:"id"`
	Points      int64         `json:"points"`
	Experience  int64         `json:"experience"`
	Level       int           `json:"level"`
	Progress    LevelProgress `json:"progress"`
	GamesPlayed int64         `json:"games_played"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// LevelProgress shows how far into the current level the player is
type LevelProgress struct {
	Current int64 `json:"current"`
	// Needed is zero at the maximum level
	Needed int64 `json:"needed"`
}

// AccountFromModel converts a model.Account to a response Account
func AccountFromModel(a *model.Account) Account {
	p := model.ProgressOf(a.Experience)
	return Account{
		ID:          string(a.ID),
		Points:      a.Points,
		Experience:  a.Experience,
		Level:       a.Level,
		Progress:    LevelProgress{Current: p.Current, Needed: p.Needed},
		GamesPlayed: a.GamesPlayed,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// Round represents a round in API responses. Server-side secrets are never included.
type Round struct {
	ID           string         `json:"id"`
	GameType     string         `json:"game_type"`
	State        string         `json:"state"`
	Data         map[string]any `json:"data,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	Deadline     *time.Time     `json:"deadline,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	PointsEarned int64          `json:"points_earned"`
	ExpGained    int64          `json:"exp_gained"`
	NewLevel     int            `json:"new_level,omitempty"`
	LeveledUp    bool           `json:"leveled_up"`
}

// RoundFromModel converts a model.Round
func RoundFromModel(r *model.Round) Round {
	out := Round{
		ID:           string(r.ID),
		GameType:     string(r.GameType),
		State:        string(r.State),
		Data:         r.Data,
		StartedAt:    r.StartedAt,
		PointsEarned: r.PointsEarned,
		ExpGained:    r.ExpGained,
		NewLevel:     r.NewLevel,
		LeveledUp:    r.LeveledUp,
	}
	if !r.Deadline.IsZero() {
		deadline := r.Deadline
		out.Deadline = &deadline
	}
	if !r.CompletedAt.IsZero() {
		completed := r.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

// RoundsResponse is the response for round history
type RoundsResponse struct {
	Rounds []Round `json:"rounds"`
}

// RoundsFromModel converts a slice of rounds
func RoundsFromModel(rounds []*model.Round) RoundsResponse {
	out := RoundsResponse{Rounds: make([]Round, 0, len(rounds))}
	for _, r := range rounds {
		out.Rounds = append(out.Rounds, RoundFromModel(r))
	}
	return out
}

// SpinResponse is the response for a spin
type SpinResponse struct {
	Round     Round    `json:"round"`
	Reels     []string `json:"reels"`
	Payout    int64    `json:"payout"`
	Net       int64    `json:"net"`
	Balance   int64    `json:"balance"`
	LeveledUp bool     `json:"leveled_up"`
	Replayed  bool     `json:"replayed"`
}

// SpinFromResult converts a spin.Result
func SpinFromResult(res *spin.Result) SpinResponse {
	reels := make([]string, len(res.Reels))
	for i, sym := range res.Reels {
		reels[i] = string(sym)
	}
	return SpinResponse{
		Round:     RoundFromModel(res.Round),
		Reels:     reels,
		Payout:    res.Payout,
		Net:       res.Net,
		Balance:   res.Balance,
		LeveledUp: res.LeveledUp,
		Replayed:  res.Replayed,
	}
}

// RoundStartedResponse is the response for starting a timed round
type RoundStartedResponse struct {
	Round     Round                  `json:"round"`
	Questions []round.PublicQuestion `json:"questions,omitempty"`
}

// RoundStartedFromModel converts a round.Started
func RoundStartedFromModel(s *round.Started) RoundStartedResponse {
	return RoundStartedResponse{
		Round:     RoundFromModel(s.Round),
		Questions: s.Questions,
	}
}

// RoundCompletedResponse is the response for completing a round
type RoundCompletedResponse struct {
	Round    Round `json:"round"`
	Replayed bool  `json:"replayed"`
}

// LeaderboardResponse is the response for the leaderboard
type LeaderboardResponse struct {
	By      string              `json:"by"`
	Entries []leaderboard.Entry `json:"entries"`
}

// BotQuestion is the open chat bot question. The answer is never included.
type BotQuestion struct {
	ID        string     `json:"id"`
	Question  string     `json:"question"`
	Reward    int64      `json:"reward"`
	PostedAt  time.Time  `json:"posted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// BotQuestionFromModel converts a model.BotSession
func BotQuestionFromModel(s *model.BotSession) BotQuestion {
	out := BotQuestion{
		ID:       string(s.ID),
		Question: s.Question,
		Reward:   s.Reward,
		PostedAt: s.CreatedAt,
	}
	if !s.ExpiresAt.IsZero() {
		expires := s.ExpiresAt
		out.ExpiresAt = &expires
	}
	return out
}

// BotWin reports a chat message that answered the bot's question
type BotWin struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
	Reward     int64  `json:"reward"`
	Balance    int64  `json:"balance"`
	Replayed   bool   `json:"replayed"`
}

// ChatCheckResponse is the moderation verdict, plus the bot reward when the
// message answered the open question
type ChatCheckResponse struct {
	moderation.Verdict
	BotWin *BotWin `json:"bot_win,omitempty"`
}

// ChatCheckFromResult converts a verdict and an optional win
func ChatCheckFromResult(verdict *moderation.Verdict, win *chatbot.Win) ChatCheckResponse {
	out := ChatCheckResponse{Verdict: *verdict}
	if win != nil {
		out.BotWin = &BotWin{
			QuestionID: string(win.Session.ID),
			Answer:     win.Session.Answer,
			Reward:     win.Reward,
			Balance:    win.Balance,
			Replayed:   win.Replayed,
		}
	}
	return out
}

// ReferralCodeResponse is the caller's own referral code
type ReferralCodeResponse struct {
	Code string `json:"code"`
}

// ReferralBonusResponse is the response for applying a referral code
type ReferralBonusResponse struct {
	Code     string `json:"code"`
	Amount   int64  `json:"amount"`
	Balance  int64  `json:"balance"`
	Replayed bool   `json:"replayed"`
}

// ReferralBonusFromResult converts a referral.Bonus
func ReferralBonusFromResult(b *referral.Bonus) ReferralBonusResponse {
	return ReferralBonusResponse{
		Code:     b.Code,
		Amount:   b.Amount,
		Balance:  b.Balance,
		Replayed: b.Replayed,
	}
}

// AwardExperienceResponse is the legacy award response, in the original camelCase
type AwardExperienceResponse struct {
	Success       bool  `json:"success"`
	NewLevel      int   `json:"newLevel"`
	NewExperience int64 `json:"newExperience"`
	ExpGained     int64 `json:"expGained"`
	LeveledUp     bool  `json:"leveledUp"`
	TotalGames    int64 `json:"totalGames"`
}

// LegacyError is the legacy error body
type LegacyError struct {
	Error string `json:"error"`
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status string `json:"status"`
}
