package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/gaminghub/internal/dependencies/clock"
	"github.com/mcoot/gaminghub/internal/dependencies/random"
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
	"github.com/mcoot/gaminghub/internal/storage/memory"
	redisstorage "github.com/mcoot/gaminghub/internal/storage/redis"
	"github.com/mcoot/gaminghub/internal/storage/sqlstore"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Engine             *economy.Engine
	SpinService        *spin.Service
	RoundService       *round.Service
	LeaderboardService *leaderboard.Service
	ModerationService  *moderation.Service
	ChatBotService     *chatbot.Service
	ReferralService    *referral.Service
	AuthService        *auth.Service
	HubManager         *notify.HubManager
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service; Secret is required
	AuthConfig auth.Config
	// EngineConfig holds economy engine settings (optional)
	// If zero value, defaults to economy.DefaultConfig()
	EngineConfig economy.Config
	// RoundConfig holds timed round settings (optional)
	// If zero value, defaults to round.DefaultConfig()
	RoundConfig round.Config
	// ModerationConfig overrides the chat rules (optional)
	ModerationConfig *moderation.Config
	// ChatBotConfig overrides the chat bot's pacing and questions (optional)
	ChatBotConfig *chatbot.Config
	// ReferralConfig holds referral rewards (optional)
	// If zero value, defaults to referral.DefaultConfig()
	ReferralConfig referral.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis", "sqlite" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLConfig holds database settings (required if StorageType is "sqlite" or "postgres")
	SQLConfig *sqlstore.Config
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	app, err := newWithDependencies(store, clk, rnd, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

func openStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite, StorageTypePostgres:
		if cfg.SQLConfig == nil {
			return nil, fmt.Errorf("SQLConfig required when StorageType is %s", storageType)
		}
		sqlCfg := *cfg.SQLConfig
		sqlCfg.Driver = storageType
		return sqlstore.Open(ctx, sqlCfg)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis', 'sqlite' or 'postgres'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, cfg Config, logger *slog.Logger) (*App, error) {
	engineCfg := cfg.EngineConfig
	if engineCfg == (economy.Config{}) {
		engineCfg = economy.DefaultConfig()
	}
	roundCfg := cfg.RoundConfig
	if roundCfg == (round.Config{}) {
		roundCfg = round.DefaultConfig()
	}
	moderationCfg := moderation.DefaultConfig()
	if cfg.ModerationConfig != nil {
		moderationCfg = *cfg.ModerationConfig
	}

	chatBotCfg := chatbot.DefaultConfig()
	if cfg.ChatBotConfig != nil {
		chatBotCfg = *cfg.ChatBotConfig
	}

	quiz, err := round.DefaultQuizBank()
	if err != nil {
		return nil, err
	}
	authService, err := auth.New(clk, cfg.AuthConfig)
	if err != nil {
		return nil, err
	}

	// Create services
	hubManager := notify.NewHubManager(logger)
	engine := economy.New(store, clk, hubManager, logger, engineCfg)
	spinService := spin.New(engine, store, rnd, clk, hubManager, logger)
	roundService := round.New(engine, store, rnd, clk, hubManager, logger, quiz, roundCfg)
	leaderboardService := leaderboard.New(store, logger)
	moderationService := moderation.New(engine, logger, moderationCfg)
	referralService := referral.New(engine, logger, cfg.ReferralConfig)
	chatBotService, err := chatbot.New(engine, store, rnd, clk, logger, chatBotCfg)
	if err != nil {
		return nil, err
	}

	return &App{
		Storage:            store,
		Clock:              clk,
		Random:             rnd,
		Engine:             engine,
		SpinService:        spinService,
		RoundService:       roundService,
		LeaderboardService: leaderboardService,
		ModerationService:  moderationService,
		ChatBotService:     chatBotService,
		ReferralService:    referralService,
		AuthService:        authService,
		HubManager:         hubManager,
	}, nil
}

// Close releases the app's resources
func (a *App) Close() error {
	a.HubManager.CloseAll()
	return a.Storage.Close()
}
