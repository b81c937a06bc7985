package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gaminghub/internal/api/handler"
	"github.com/mcoot/gaminghub/internal/api/middleware"
	"github.com/mcoot/gaminghub/internal/notify"
	"github.com/mcoot/gaminghub/internal/services/auth"
	"github.com/mcoot/gaminghub/internal/services/chatbot"
	"github.com/mcoot/gaminghub/internal/services/economy"
	"github.com/mcoot/gaminghub/internal/services/leaderboard"
	"github.com/mcoot/gaminghub/internal/services/moderation"
	"github.com/mcoot/gaminghub/internal/services/referral"
	"github.com/mcoot/gaminghub/internal/services/round"
	"github.com/mcoot/gaminghub/internal/services/spin"
	"github.com/mcoot/gaminghub/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger             *slog.Logger
	AuthService        *auth.Service
	Engine             *economy.Engine
	SpinService        *spin.Service
	RoundService       *round.Service
	LeaderboardService *leaderboard.Service
	ModerationService  *moderation.Service
	ChatBotService     *chatbot.Service
	ReferralService    *referral.Service
	HubManager         *notify.HubManager
	Storage            storage.Storage
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// A nil *auth.Service must stay a nil interface
	var verifier middleware.TokenVerifier
	if cfg.AuthService != nil {
		verifier = cfg.AuthService
	}

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.Engine, cfg.RoundService, cfg.HubManager)
	gameHandler := handler.NewGameHandler(cfg.SpinService, cfg.RoundService)
	leaderboardHandler := handler.NewLeaderboardHandler(cfg.LeaderboardService)
	chatHandler := handler.NewChatHandler(cfg.ModerationService, cfg.ChatBotService)
	referralHandler := handler.NewReferralHandler(cfg.ReferralService)
	legacyHandler := handler.NewLegacyHandler(cfg.RoundService, verifier, cfg.Logger)
	healthHandler := handler.NewHealthHandler(cfg.Storage)

	// Create middleware
	authMiddleware := middleware.Auth(verifier)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// Logging runs outermost so recovered panics are logged with their request id
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	// Legacy award endpoint, at the path the minigame pages post to and its old alias
	r.HandleFunc("/award-experience", legacyHandler.AwardExperience).Methods(http.MethodPost)
	r.HandleFunc("/api/add-experience", legacyHandler.AwardExperience).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", leaderboardHandler.Get).Methods(http.MethodGet)

	// Account routes (all require auth)
	accounts := api.PathPrefix("/accounts/me").Subrouter()
	accounts.Use(authMiddleware)
	accounts.HandleFunc("", playerHandler.GetMe).Methods(http.MethodGet)
	accounts.HandleFunc("/rounds", playerHandler.Rounds).Methods(http.MethodGet)
	accounts.HandleFunc("/events", playerHandler.Events).Methods(http.MethodGet)
	accounts.HandleFunc("/referral", referralHandler.Code).Methods(http.MethodGet)
	accounts.HandleFunc("/referral", referralHandler.Apply).Methods(http.MethodPost)

	// Game routes (all require auth)
	games := api.PathPrefix("/games").Subrouter()
	games.Use(authMiddleware)
	games.HandleFunc("/spin", gameHandler.Spin).Methods(http.MethodPost)
	games.HandleFunc("/{gameType}/rounds", gameHandler.StartRound).Methods(http.MethodPost)

	rounds := api.PathPrefix("/rounds").Subrouter()
	rounds.Use(authMiddleware)
	rounds.HandleFunc("/{id}/complete", gameHandler.CompleteRound).Methods(http.MethodPost)

	// Chat routes (require auth)
	chat := api.PathPrefix("/chat").Subrouter()
	chat.Use(authMiddleware)
	chat.HandleFunc("/check", chatHandler.Check).Methods(http.MethodPost)
	chat.HandleFunc("/question", chatHandler.Question).Methods(http.MethodGet)

	return r
}
