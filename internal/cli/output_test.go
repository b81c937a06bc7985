package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputGroupsThousands(t *testing.T) {
	var buf bytes.Buffer
	NewOutput("text", &buf).Print(Account{
		ID:          "alice",
		Points:      1234567,
		Experience:  10450,
		Level:       20,
		GamesPlayed: 1001,
	})

	out := buf.String()
	assert.Contains(t, out, "Points: 1,234,567")
	assert.Contains(t, out, "Level: 20 (max)")
	assert.Contains(t, out, "Experience: 10,450")
	assert.Contains(t, out, "Games Played: 1,001")
}

func TestOutputSpin(t *testing.T) {
	var buf bytes.Buffer
	NewOutput("text", &buf).Print(SpinResult{
		Reels:   []string{"blue", "green", "purple"},
		Net:     -50,
		Balance: 2950,
	})

	out := buf.String()
	assert.Contains(t, out, "Reels: blue | green | purple")
	assert.Contains(t, out, "No match (net -50)")
	assert.Contains(t, out, "Balance: 2,950")
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	NewOutput("json", &buf).Print(HealthResult{Status: "ok"})

	var decoded HealthResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ok", decoded.Status)
}

func TestOutputChatBotWin(t *testing.T) {
	var buf bytes.Buffer
	NewOutput("text", &buf).Print(ChatVerdict{
		Allowed: true,
		BotWin:  &BotWin{QuestionID: "q-1", Answer: "purple", Reward: 50, Balance: 1050},
	})

	out := buf.String()
	assert.Contains(t, out, "Allowed")
	assert.Contains(t, out, `Correct! "purple" won 50 points (balance 1,050)`)
}

func TestOutputReferralBonus(t *testing.T) {
	var buf bytes.Buffer
	NewOutput("text", &buf).Print(ReferralBonus{Code: "BILLIONS-FRIEND01", Amount: 100, Balance: 100})
	assert.Contains(t, buf.String(), "Referral bonus: +100 with BILLIONS-FRIEND01")

	buf.Reset()
	NewOutput("text", &buf).Print(ReferralBonus{Code: "BILLIONS-FRIEND01", Balance: 100, Replayed: true})
	assert.Contains(t, buf.String(), "already claimed with BILLIONS-FRIEND01")
}
