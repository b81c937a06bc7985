package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/storage"
	"github.com/mcoot/gaminghub/internal/storage/memory"
	"github.com/mcoot/gaminghub/internal/testutil"
)

func seed(t *testing.T, store storage.Storage, id model.PlayerID, points, exp int64) {
	t.Helper()
	_, err := store.ApplyDelta(context.Background(), id, model.Delta{
		Points:     points,
		Experience: exp,
		At:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func TestTopByPoints(t *testing.T) {
	store := memory.New()
	seed(t, store, "alice", 300, 10)
	seed(t, store, "bob", 500, 0)
	seed(t, store, "carol", 300, 400)

	svc := New(store, testutil.NopLogger())
	entries, err := svc.Top(context.Background(), model.RankByPoints, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, Entry{Rank: 1, PlayerID: "bob", Points: 500, Level: 1}, entries[0])
	assert.Equal(t, model.PlayerID("alice"), entries[1].PlayerID)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, model.PlayerID("carol"), entries[2].PlayerID)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestTopByExperience(t *testing.T) {
	store := memory.New()
	seed(t, store, "alice", 300, 10)
	seed(t, store, "carol", 0, 400)

	svc := New(store, testutil.NopLogger())
	entries, err := svc.Top(context.Background(), model.RankByExperience, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.PlayerID("carol"), entries[0].PlayerID)
	assert.Equal(t, 3, entries[0].Level)
}

func TestTopCapsLimit(t *testing.T) {
	store := memory.New()
	for i := 0; i < MaxLimit+5; i++ {
		seed(t, store, model.PlayerID(fmt.Sprintf("p%03d", i)), int64(i), 0)
	}

	svc := New(store, testutil.NopLogger())
	entries, err := svc.Top(context.Background(), model.RankByPoints, 1000)
	require.NoError(t, err)
	assert.Len(t, entries, MaxLimit)
	assert.Equal(t, model.PlayerID("p104"), entries[0].PlayerID)
}

type brokenStore struct {
	storage.Storage
}

func (brokenStore) TopAccounts(context.Context, model.RankBy, int) ([]*model.Account, error) {
	return nil, errors.New("connection reset by peer")
}

func TestTopStoreFailure(t *testing.T) {
	svc := New(brokenStore{}, testutil.NopLogger())
	_, err := svc.Top(context.Background(), model.RankByPoints, 10)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}
