package factory

import (
	"context"
	"time"

	"github.com/mcoot/gaminghub/internal/dependencies/mocks"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/auth"
	"github.com/mcoot/gaminghub/internal/storage/memory"
	"github.com/mcoot/gaminghub/internal/testutil"
)

// TestSecret signs tokens in tests
const TestSecret = "gaminghub-test-secret"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	authCfg := auth.DefaultConfig()
	authCfg.Secret = TestSecret

	app, err := newWithDependencies(store, mockClock, mockRandom, Config{AuthConfig: authCfg}, testutil.NopLogger())
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
	}
}

// Token issues a bearer token for the player
func (t *TestApp) Token(playerID model.PlayerID) string {
	token, err := t.AuthService.Issue(playerID, time.Hour)
	if err != nil {
		panic(err)
	}
	return token
}

// Fund credits points to a player without going through a game
func (t *TestApp) Fund(playerID model.PlayerID, points int64) {
	if _, err := t.Memory.ApplyDelta(context.Background(), playerID, model.Delta{Points: points, At: t.MockClock.Now()}); err != nil {
		panic(err)
	}
}
