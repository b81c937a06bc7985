package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Output handles formatting output based on the configured format
type Output struct {
	format  string
	w       io.Writer
	printer *message.Printer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{
		format:  format,
		w:       w,
		printer: message.NewPrinter(language.English),
	}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

// printf writes with locale-aware number grouping
func (o *Output) printf(format string, args ...any) {
	_, _ = o.printer.Fprintf(o.w, format, args...)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Account:
		o.printAccount(v)
	case RoundList:
		o.printRounds(v)
	case SpinResult:
		o.printSpin(v)
	case RoundStarted:
		o.printRoundStarted(v)
	case RoundCompleted:
		o.printRoundCompleted(v)
	case Leaderboard:
		o.printLeaderboard(v)
	case ChatVerdict:
		o.printVerdict(v)
	case BotQuestion:
		o.printBotQuestion(v)
	case ReferralCode:
		o.printf("Referral code: %s\n", v.Code)
	case ReferralBonus:
		o.printReferralBonus(v)
	case AwardResult:
		o.printAward(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Account response type (matches API)
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

// LevelProgress response type
type LevelProgress struct {
	Current int64 `json:"current"`
	Needed  int64 `json:"needed"`
}

// Round response type
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

// RoundList response type
type RoundList struct {
	Rounds []Round `json:"rounds"`
}

// SpinResult response type
type SpinResult struct {
	Round     Round    `json:"round"`
	Reels     []string `json:"reels"`
	Payout    int64    `json:"payout"`
	Net       int64    `json:"net"`
	Balance   int64    `json:"balance"`
	LeveledUp bool     `json:"leveled_up"`
	Replayed  bool     `json:"replayed"`
}

// Question response type
type Question struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// RoundStarted response type
type RoundStarted struct {
	Round     Round      `json:"round"`
	Questions []Question `json:"questions,omitempty"`
}

// RoundCompleted response type
type RoundCompleted struct {
	Round    Round `json:"round"`
	Replayed bool  `json:"replayed"`
}

// LeaderboardEntry response type
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"player_id"`
	Points     int64  `json:"points"`
	Experience int64  `json:"experience"`
	Level      int    `json:"level"`
}

// Leaderboard response type
type Leaderboard struct {
	By      string             `json:"by"`
	Entries []LeaderboardEntry `json:"entries"`
}

// ChatVerdict response type
type ChatVerdict struct {
	Allowed    bool    `json:"allowed"`
	Reason     string  `json:"reason,omitempty"`
	StatusLink string  `json:"status_link,omitempty"`
	BotWin     *BotWin `json:"bot_win,omitempty"`
}

// BotWin response type
type BotWin struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
	Reward     int64  `json:"reward"`
	Balance    int64  `json:"balance"`
	Replayed   bool   `json:"replayed"`
}

// BotQuestion response type
type BotQuestion struct {
	ID        string     `json:"id"`
	Question  string     `json:"question"`
	Reward    int64      `json:"reward"`
	PostedAt  time.Time  `json:"posted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ReferralCode response type
type ReferralCode struct {
	Code string `json:"code"`
}

// ReferralBonus response type
type ReferralBonus struct {
	Code     string `json:"code"`
	Amount   int64  `json:"amount"`
	Balance  int64  `json:"balance"`
	Replayed bool   `json:"replayed"`
}

// AwardResult is the legacy award response
type AwardResult struct {
	Success       bool  `json:"success"`
	NewLevel      int   `json:"newLevel"`
	NewExperience int64 `json:"newExperience"`
	ExpGained     int64 `json:"expGained"`
	LeveledUp     bool  `json:"leveledUp"`
	TotalGames    int64 `json:"totalGames"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printAccount(a Account) {
	o.printf("Player: %s\n", a.ID)
	o.printf("Points: %d\n", a.Points)
	if a.Progress.Needed > 0 {
		o.printf("Level: %d (%d/%d XP to next)\n", a.Level, a.Progress.Current, a.Progress.Needed)
	} else {
		o.printf("Level: %d (max)\n", a.Level)
	}
	o.printf("Experience: %d\n", a.Experience)
	o.printf("Games Played: %d\n", a.GamesPlayed)
}

func (o *Output) printRounds(l RoundList) {
	if len(l.Rounds) == 0 {
		o.printf("No rounds played yet\n")
		return
	}
	for _, r := range l.Rounds {
		when := r.StartedAt
		if r.CompletedAt != nil {
			when = *r.CompletedAt
		}
		o.printf("%s  %-8s %-11s %+d pts  +%d XP  %s\n",
			when.Format("2006-01-02 15:04"), r.GameType, r.State, r.PointsEarned, r.ExpGained, r.ID)
	}
}

func (o *Output) printSpin(s SpinResult) {
	o.printf("Reels: %s\n", strings.Join(s.Reels, " | "))
	if s.Payout > 0 {
		o.printf("Payout: %d (net %+d)\n", s.Payout, s.Net)
	} else {
		o.printf("No match (net %+d)\n", s.Net)
	}
	o.printf("Balance: %d\n", s.Balance)
	if s.LeveledUp {
		o.printf("Level up! Now level %d\n", s.Round.NewLevel)
	}
	if s.Replayed {
		o.printf("(replayed earlier spin %s)\n", s.Round.ID)
	}
}

func (o *Output) printRoundStarted(s RoundStarted) {
	o.printf("Round: %s (%s)\n", s.Round.ID, s.Round.GameType)
	if s.Round.Deadline != nil {
		o.printf("Deadline: %s\n", s.Round.Deadline.Format(time.RFC3339))
	}
	if n, ok := s.Round.Data["characters"]; ok {
		o.printf("Characters: %v\n", n)
	}
	for _, q := range s.Questions {
		o.printf("\n%d. %s\n", q.ID, q.Question)
		for i, opt := range q.Options {
			o.printf("   [%d] %s\n", i, opt)
		}
	}
}

func (o *Output) printRoundCompleted(c RoundCompleted) {
	r := c.Round
	o.printf("Round %s: %s\n", r.ID, r.State)
	o.printf("Points: %+d\n", r.PointsEarned)
	o.printf("Experience: +%d\n", r.ExpGained)
	if r.LeveledUp {
		o.printf("Level up! Now level %d\n", r.NewLevel)
	}
	if c.Replayed {
		o.printf("(already completed)\n")
	}
}

func (o *Output) printLeaderboard(l Leaderboard) {
	o.printf("Top players by %s:\n", l.By)
	for _, e := range l.Entries {
		o.printf("%3d. %-24s %12d pts  %10d XP  L%d\n", e.Rank, e.PlayerID, e.Points, e.Experience, e.Level)
	}
}

func (o *Output) printVerdict(v ChatVerdict) {
	if v.Allowed {
		o.printf("Allowed\n")
	} else {
		o.printf("Blocked: %s\n", v.Reason)
	}
	if v.StatusLink != "" {
		o.printf("Status link: %s\n", v.StatusLink)
	}
	if w := v.BotWin; w != nil {
		o.printf("Correct! %q won %d points (balance %d)\n", w.Answer, w.Reward, w.Balance)
	}
}

func (o *Output) printBotQuestion(q BotQuestion) {
	o.printf("Question: %s\n", q.Question)
	o.printf("First correct answer wins %d points\n", q.Reward)
	if q.ExpiresAt != nil {
		o.printf("Open until: %s\n", q.ExpiresAt.Format(time.RFC3339))
	}
}

func (o *Output) printReferralBonus(b ReferralBonus) {
	if b.Replayed {
		o.printf("Referral bonus already claimed with %s\n", b.Code)
	} else {
		o.printf("Referral bonus: +%d with %s\n", b.Amount, b.Code)
	}
	o.printf("Balance: %d\n", b.Balance)
}

func (o *Output) printAward(a AwardResult) {
	o.printf("Experience: %d (+%d)\n", a.NewExperience, a.ExpGained)
	o.printf("Level: %d\n", a.NewLevel)
	if a.LeveledUp {
		o.printf("Level up!\n")
	}
	o.printf("Games Played: %d\n", a.TotalGames)
}

func (o *Output) printHealthResult(h HealthResult) {
	o.printf("Status: %s\n", h.Status)
}
