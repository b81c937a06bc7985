package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelOfBoundaries(t *testing.T) {
	tests := []struct {
		exp  int64
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{1000, 6},
		{10449, 19},
		{10450, 20},
		{999999, 20},
		{-5, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelOf(tt.exp), "LevelOf(%d)", tt.exp)
	}
}

func TestLevelOfIsMonotonicAndBounded(t *testing.T) {
	prev := LevelOf(0)
	for exp := int64(0); exp <= 12000; exp++ {
		lvl := LevelOf(exp)
		require.GreaterOrEqual(t, lvl, prev, "level decreased at exp %d", exp)
		require.GreaterOrEqual(t, lvl, MinLevel)
		require.LessOrEqual(t, lvl, MaxLevel)
		prev = lvl
	}
}

func TestEveryThresholdStartsItsLevel(t *testing.T) {
	for lvl := MinLevel; lvl <= MaxLevel; lvl++ {
		assert.Equal(t, lvl, LevelOf(ThresholdFor(lvl)))
		if lvl > MinLevel {
			assert.Equal(t, lvl-1, LevelOf(ThresholdFor(lvl)-1))
		}
	}
}

func TestLevelThresholdsReturnsCopy(t *testing.T) {
	table := LevelThresholds()
	table[1] = 0
	assert.Equal(t, int64(100), ThresholdFor(2))
}

func TestProgressOf(t *testing.T) {
	p := ProgressOf(300)
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, int64(50), p.Current)
	assert.Equal(t, int64(200), p.Needed)

	top := ProgressOf(20000)
	assert.Equal(t, MaxLevel, top.Level)
	assert.Equal(t, int64(0), top.Needed)
}

func TestParseGameType(t *testing.T) {
	assert.Equal(t, GameImpostor, ParseGameType("impostor"))
	assert.Equal(t, GameQuiz, ParseGameType(" QUIZ "))
	assert.Equal(t, GameSpin, ParseGameType("spin"))
	assert.Equal(t, GameOther, ParseGameType("chess"))
	assert.Equal(t, GameOther, ParseGameType(""))
}

func TestExperienceFor(t *testing.T) {
	assert.Equal(t, int64(10), ExperienceFor(GameImpostor))
	assert.Equal(t, int64(5), ExperienceFor(GameSpin))
	assert.Equal(t, int64(8), ExperienceFor(GameQuiz))
	assert.Equal(t, int64(5), ExperienceFor(GameOther))
	assert.Equal(t, int64(5), ExperienceFor(GameType("unknown")))
}

func TestAccountApply(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	acct := *NewAccount("p1", now)
	acct.Points = 40
	acct.Experience = 95

	next, err := acct.Apply(Delta{Points: 10, Experience: 10, GamesPlayed: 1, At: now.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, int64(50), next.Points)
	assert.Equal(t, int64(105), next.Experience)
	assert.Equal(t, 2, next.Level)
	assert.Equal(t, int64(1), next.GamesPlayed)
	assert.Equal(t, now.Add(time.Minute), next.UpdatedAt)

	_, err = acct.Apply(Delta{Points: -50})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Paid action with a winning payout still needs the stake up front
	_, err = acct.Apply(Delta{Points: 100, MinBalance: 50})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestEventsForDelta(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	before := Account{ID: "p1", Points: 100, Experience: 95, Level: 1}
	after := Account{ID: "p1", Points: 150, Experience: 105, Level: 2}

	events := EventsForDelta(DeltaResult{Before: before, After: after, Applied: true}, now)
	require.Len(t, events, 2)
	assert.Equal(t, EventBalanceChanged, events[0].Type)
	assert.Equal(t, EventLevelUp, events[1].Type)

	assert.Empty(t, EventsForDelta(DeltaResult{Before: before, After: after}, now))
}
