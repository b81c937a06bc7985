package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gaminghub/internal/api"
	"github.com/mcoot/gaminghub/internal/api/apierr"
	"github.com/mcoot/gaminghub/internal/api/response"
	"github.com/mcoot/gaminghub/internal/factory"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/testutil"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:             testutil.NopLogger(),
		AuthService:        app.AuthService,
		Engine:             app.Engine,
		SpinService:        app.SpinService,
		RoundService:       app.RoundService,
		LeaderboardService: app.LeaderboardService,
		ModerationService:  app.ModerationService,
		ChatBotService:     app.ChatBotService,
		ReferralService:    app.ReferralService,
		HubManager:         app.HubManager,
		Storage:            app.Storage,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	return ts.requestWithHeaders(method, path, body, token, nil)
}

func (ts *testServer) requestWithHeaders(method, path string, body any, token string, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[apierr.ErrorResponse](t, rr).Error.Code
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

// Account endpoints

func TestGetMeCreatesAccount(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/accounts/me", nil, ts.app.Token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)

	acct := decode[response.Account](t, rr)
	assert.Equal(t, "alice", acct.ID)
	assert.Equal(t, int64(0), acct.Points)
	assert.Equal(t, 1, acct.Level)
	assert.Equal(t, int64(100), acct.Progress.Needed)
}

func TestGetMeRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/accounts/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeUnauthorized, errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/accounts/me", nil, "forged.token.value")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// Spin endpoints

func TestSpin(t *testing.T) {
	ts := newTestServer(t)
	ts.app.Fund("alice", 100)
	ts.app.MockRandom.QueueIntn(1, 1, 0)

	rr := ts.request(http.MethodPost, "/api/v1/games/spin", nil, ts.app.Token("alice"))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	res := decode[response.SpinResponse](t, rr)
	assert.Equal(t, []string{"green", "green", "blue"}, res.Reels)
	assert.Equal(t, int64(100), res.Payout)
	assert.Equal(t, int64(150), res.Balance)
	assert.False(t, res.Replayed)
}

func TestSpinReplaysIdempotencyKey(t *testing.T) {
	ts := newTestServer(t)
	ts.app.Fund("alice", 100)
	token := ts.app.Token("alice")
	headers := map[string]string{"Idempotency-Key": "spin-1"}

	first := ts.requestWithHeaders(http.MethodPost, "/api/v1/games/spin", nil, token, headers)
	require.Equal(t, http.StatusCreated, first.Code)

	again := ts.requestWithHeaders(http.MethodPost, "/api/v1/games/spin", nil, token, headers)
	require.Equal(t, http.StatusOK, again.Code)
	assert.True(t, decode[response.SpinResponse](t, again).Replayed)

	acct, err := ts.app.Storage.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), acct.GamesPlayed)
}

func TestSpinInsufficientFunds(t *testing.T) {
	ts := newTestServer(t)
	ts.app.Fund("alice", 40)

	rr := ts.request(http.MethodPost, "/api/v1/games/spin", nil, ts.app.Token("alice"))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeInsufficientFunds, errorCode(t, rr))
}

// Round endpoints

func TestImpostorRoundFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.app.Token("alice")
	ts.app.MockRandom.QueueID("round-1")
	ts.app.MockRandom.QueueIntn(3)

	rr := ts.request(http.MethodPost, "/api/v1/games/impostor/rounds", nil, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret")
	started := decode[response.RoundStartedResponse](t, rr)
	assert.Equal(t, "in_progress", started.Round.State)
	require.NotNil(t, started.Round.Deadline)

	ts.app.MockClock.Advance(10 * time.Second)
	rr = ts.request(http.MethodPost, "/api/v1/rounds/round-1/complete", map[string]any{"pick": 3}, token)
	require.Equal(t, http.StatusOK, rr.Code)
	done := decode[response.RoundCompletedResponse](t, rr)
	assert.Equal(t, "won", done.Round.State)
	assert.Equal(t, int64(90), done.Round.PointsEarned)
	assert.Equal(t, int64(10), done.Round.ExpGained)

	rr = ts.request(http.MethodGet, "/api/v1/accounts/me/rounds", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[response.RoundsResponse](t, rr)
	require.Len(t, history.Rounds, 1)
	assert.Equal(t, "round-1", history.Rounds[0].ID)
}

func TestQuizRoundHidesAnswers(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/games/quiz/rounds", nil, ts.app.Token("alice"))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), "correct")

	started := decode[response.RoundStartedResponse](t, rr)
	assert.Len(t, started.Questions, 20)
}

func TestStartSpinRoundUnsupported(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/games/spin/rounds", nil, ts.app.Token("alice"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeUnsupportedRound, errorCode(t, rr))
}

func TestCompleteOtherPlayersRound(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockRandom.QueueID("round-1")

	rr := ts.request(http.MethodPost, "/api/v1/games/impostor/rounds", nil, ts.app.Token("alice"))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/rounds/round-1/complete", map[string]any{"pick": 0}, ts.app.Token("mallory"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeNotRoundOwner, errorCode(t, rr))
}

func TestCompleteUnknownRound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/rounds/nope/complete", map[string]any{"pick": 0}, ts.app.Token("alice"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeRoundNotFound, errorCode(t, rr))
}

// Leaderboard

func TestLeaderboard(t *testing.T) {
	ts := newTestServer(t)
	ts.app.Fund("alice", 300)
	ts.app.Fund("bob", 500)

	rr := ts.request(http.MethodGet, "/api/v1/leaderboard?by=points&limit=1", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	board := decode[response.LeaderboardResponse](t, rr)
	assert.Equal(t, "points", board.By)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, model.PlayerID("bob"), board.Entries[0].PlayerID)
	assert.Equal(t, 1, board.Entries[0].Rank)
}

func TestLeaderboardRejectsBadParams(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/leaderboard?by=wealth", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/leaderboard?limit=-3", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// Chat

func TestChatCheckRequiresLevel(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/chat/check", map[string]string{"message": "hi"}, ts.app.Token("alice"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeLevelTooLow, errorCode(t, rr))
}

func TestChatCheck(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.app.Memory.ApplyDelta(context.Background(), "alice", model.Delta{Experience: 500})
	require.NoError(t, err)

	rr := ts.request(http.MethodPost, "/api/v1/chat/check",
		map[string]string{"message": "see https://example.com"}, ts.app.Token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"allowed":false,"reason":"link_not_allowed"}`, rr.Body.String())
}

func TestChatBotQuestionPaysFirstAnswer(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	for _, id := range []model.PlayerID{"alice", "bob"} {
		_, err := ts.app.Memory.ApplyDelta(ctx, id, model.Delta{Experience: 500})
		require.NoError(t, err)
	}

	rr := ts.request(http.MethodGet, "/api/v1/chat/question", nil, ts.app.Token("alice"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeNoOpenQuestion, errorCode(t, rr))

	// Second question in the bank: "Which reel colour pays the most on a triple spin?"
	ts.app.MockRandom.QueueIntn(1)
	asked, err := ts.app.ChatBotService.Ask(ctx)
	require.NoError(t, err)
	require.True(t, asked.Posted)

	rr = ts.request(http.MethodGet, "/api/v1/chat/question", nil, ts.app.Token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "purple")
	question := decode[response.BotQuestion](t, rr)
	assert.Equal(t, string(asked.Session.ID), question.ID)
	assert.Equal(t, int64(50), question.Reward)

	rr = ts.request(http.MethodPost, "/api/v1/chat/check", map[string]string{"message": "Purple!"}, ts.app.Token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	won := decode[response.ChatCheckResponse](t, rr)
	assert.True(t, won.Allowed)
	require.NotNil(t, won.BotWin)
	assert.Equal(t, int64(50), won.BotWin.Reward)
	assert.Equal(t, int64(50), won.BotWin.Balance)

	rr = ts.request(http.MethodPost, "/api/v1/chat/check", map[string]string{"message": "purple"}, ts.app.Token("bob"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"allowed":true}`, rr.Body.String())
}

// Referral

func TestReferralBonus(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/accounts/me/referral", nil, ts.app.Token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"code":"BILLIONS-ALICE"}`, rr.Body.String())

	rr = ts.request(http.MethodPost, "/api/v1/accounts/me/referral", map[string]string{"code": "billions-alice"}, ts.app.Token("bob"))
	require.Equal(t, http.StatusOK, rr.Code)
	bonus := decode[response.ReferralBonusResponse](t, rr)
	assert.Equal(t, "BILLIONS-ALICE", bonus.Code)
	assert.Equal(t, int64(100), bonus.Amount)
	assert.Equal(t, int64(100), bonus.Balance)
	assert.False(t, bonus.Replayed)

	rr = ts.request(http.MethodPost, "/api/v1/accounts/me/referral", map[string]string{"code": "BILLIONS-ALICE"}, ts.app.Token("bob"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[response.ReferralBonusResponse](t, rr).Replayed)

	rr = ts.request(http.MethodPost, "/api/v1/accounts/me/referral", map[string]string{"code": "BILLIONS-ALICE"}, ts.app.Token("alice"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeReferralInvalid, errorCode(t, rr))
}

// Legacy award endpoint

func TestLegacyAwardExperience(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.app.Memory.ApplyDelta(context.Background(), "alice", model.Delta{Experience: 95})
	require.NoError(t, err)

	body := map[string]any{"userId": "alice", "gameType": "impostor", "pointsEarned": 80, "roundId": "legacy-1"}
	rr := ts.request(http.MethodPost, "/award-experience", body, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"newLevel":2,"newExperience":105,"expGained":10,"leveledUp":true,"totalGames":1}`, rr.Body.String())

	// Same round reported again is not double-awarded
	rr = ts.request(http.MethodPost, "/award-experience", body, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"newLevel":2,"newExperience":105,"expGained":10,"leveledUp":true,"totalGames":1}`, rr.Body.String())
}

func TestLegacyAwardUsesIdempotencyHeader(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]any{"userId": "alice", "gameType": "quiz"}
	headers := map[string]string{"Idempotency-Key": "quiz-session-9"}

	for i := 0; i < 2; i++ {
		rr := ts.requestWithHeaders(http.MethodPost, "/api/add-experience", body, "", headers)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	acct, err := ts.app.Storage.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(8), acct.Experience)
}

func TestLegacyAwardMissingFields(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/award-experience", map[string]any{"gameType": "spin"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Missing required fields"}`, rr.Body.String())
}

func TestLegacyAwardTokenMustMatchUser(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]any{"userId": "alice", "gameType": "spin"}
	rr := ts.request(http.MethodPost, "/award-experience", body, ts.app.Token("mallory"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLegacyAwardRefusesHubRoundID(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockRandom.QueueID("round-1")

	rr := ts.request(http.MethodPost, "/api/v1/games/impostor/rounds", nil, ts.app.Token("alice"))
	require.Equal(t, http.StatusCreated, rr.Code)

	body := map[string]any{"userId": "alice", "gameType": "impostor", "pointsEarned": 100, "roundId": "round-1"}
	rr = ts.request(http.MethodPost, "/award-experience", body, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"error":"roundId belongs to a round played on the hub"}`, rr.Body.String())
}

func TestRouterWithoutAuthService(t *testing.T) {
	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })
	router := api.NewRouter(api.RouterConfig{
		Logger:       testutil.NopLogger(),
		Engine:       app.Engine,
		SpinService:  app.SpinService,
		RoundService: app.RoundService,
		HubManager:   app.HubManager,
		Storage:      app.Storage,
	})
	ts := &testServer{handler: router, app: app}
	token := app.Token("alice")

	// Tokens cannot be checked, so the legacy endpoint trusts userId
	body := map[string]any{"userId": "alice", "gameType": "spin", "roundId": "legacy-1"}
	rr := ts.request(http.MethodPost, "/award-experience", body, token)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/accounts/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// Events

func TestEventsStream(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		server.URL+"/api/v1/accounts/me/events?access_token="+ts.app.Token("alice"), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		var name string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if strings.HasPrefix(line, "event: ") {
				name = strings.TrimPrefix(line, "event: ")
			}
			if line == "" && name != "" {
				return name
			}
		}
	}
	require.Equal(t, "connected", readEvent())

	_, err = ts.app.Engine.CreditPoints(context.Background(), "alice", 25, "")
	require.NoError(t, err)
	assert.Equal(t, string(model.EventBalanceChanged), readEvent())
}
