package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcoot/gaminghub/internal/api"
	"github.com/mcoot/gaminghub/internal/factory"
	"github.com/mcoot/gaminghub/internal/platform/config"
	"github.com/mcoot/gaminghub/internal/platform/otel"
	"github.com/mcoot/gaminghub/internal/services/auth"
	"github.com/mcoot/gaminghub/internal/services/chatbot"
	redisstorage "github.com/mcoot/gaminghub/internal/storage/redis"
	"github.com/mcoot/gaminghub/internal/storage/sqlstore"
)

// serverEnv holds raw env values for the server process
type serverEnv struct {
	Port        int           `env:"HUB_PORT"          envDefault:"8080"`
	LogLevel    string        `env:"HUB_LOG_LEVEL"     envDefault:"info"`
	StorageType string        `env:"HUB_STORAGE_TYPE"  envDefault:"memory"`
	RedisURL    string        `env:"HUB_REDIS_URL"`
	DatabaseDSN string        `env:"HUB_DATABASE_DSN"`
	AuthSecret  string        `env:"HUB_AUTH_SECRET,required"`
	AuthIssuer  string        `env:"HUB_AUTH_ISSUER"`
	AuthAud     string        `env:"HUB_AUTH_AUDIENCE" envDefault:"authenticated"`
	SweepEvery  time.Duration `env:"HUB_SWEEP_INTERVAL" envDefault:"15s"`
	BotEvery    time.Duration `env:"HUB_CHATBOT_INTERVAL" envDefault:"1h"`
	BotTTL      time.Duration `env:"HUB_CHATBOT_QUESTION_TTL" envDefault:"2h"`
	OTel        otel.Config   `envPrefix:"HUB_OTEL_"`
}

func main() {
	var env serverEnv
	if err := config.ParseEnv(&env); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(env.LogLevel),
	}))
	slog.SetDefault(logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "gaminghub", env.OTel)
	if err != nil {
		logger.Error("failed to set up tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", slog.String("error", err.Error()))
		}
	}()

	// Build factory config from environment
	authCfg := auth.DefaultConfig()
	authCfg.Secret = env.AuthSecret
	authCfg.Issuer = env.AuthIssuer
	authCfg.Audience = env.AuthAud

	chatBotCfg := chatbot.DefaultConfig()
	chatBotCfg.QuestionTTL = env.BotTTL

	cfg := factory.Config{
		AuthConfig:    authCfg,
		ChatBotConfig: &chatBotCfg,
		Logger:        logger,
		StorageType:   env.StorageType,
	}

	switch cfg.StorageType {
	case factory.StorageTypeRedis:
		if env.RedisURL == "" {
			logger.Error("HUB_REDIS_URL required when HUB_STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = env.RedisURL
		cfg.RedisConfig = &redisCfg
	case factory.StorageTypeSQLite, factory.StorageTypePostgres:
		sqlCfg := sqlstore.DefaultConfig()
		if env.DatabaseDSN != "" {
			sqlCfg.DSN = env.DatabaseDSN
		} else if cfg.StorageType == factory.StorageTypePostgres {
			logger.Error("HUB_DATABASE_DSN required when HUB_STORAGE_TYPE=postgres")
			os.Exit(1)
		}
		cfg.SQLConfig = &sqlCfg
	}

	// Create application factory
	app, err := factory.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Logger:             logger,
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

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = env.Port
	server := api.NewServer(router, serverConfig, logger)
	server.RegisterOnShutdown(app.HubManager.CloseAll)

	go runSweeper(ctx, app, env.SweepEvery, logger)
	go runChatBot(ctx, app, env.BotEvery, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.StorageType))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

// runSweeper times out abandoned rounds and drops idle event hubs until ctx ends
func runSweeper(ctx context.Context, app *factory.App, every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.RoundService.ExpireStale(ctx)
			if err != nil {
				logger.Warn("round sweep failed", slog.String("error", err.Error()))
			} else if n > 0 {
				logger.Info("timed out abandoned rounds", slog.Int("count", n))
			}
			app.HubManager.CleanupEmptyHubs()
		}
	}
}

// runChatBot asks a chat bot question on every tick until ctx ends
func runChatBot(ctx context.Context, app *factory.App, every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := app.ChatBotService.Ask(ctx)
			if err != nil {
				logger.Warn("chat bot tick failed", slog.String("error", err.Error()))
			} else if !res.Posted {
				logger.Debug("chat bot skipped", slog.String("reason", res.Reason))
			}
		}
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
