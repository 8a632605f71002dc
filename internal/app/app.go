// Package app wires every component into a runnable service, the same
// New/Start/Run/Close shape the teacher's own app package exposes.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/agent/router"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/agent/synthesizer"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/config"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/data/db"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/data/repos"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/httpapi"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/httpapi/middleware"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/orchestrator"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/docstore"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/embedcache"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/envutil"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/gateway"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/observability"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/quota"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/score/cutoffs"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/session"
)

type App struct {
	Log    *logger.Logger
	Cfg    config.Config
	Router *gin.Engine
	db     *db.Service
	cancel context.CancelFunc

	otelShutdown func(context.Context) error
}

// New initializes every dependency in order: logger, config (exit 1 on
// failure), data layer, domain pipeline, HTTP surface (exit 2 on any
// unrecoverable dependency error, spec §6 "Exit codes").
func New() (*App, error) {
	logMode := envutil.GetEnv("LOG_MODE", "production", nil)
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := config.Load(log)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	ctx := context.Background()

	otelShutdown := observability.Init(ctx, log, observability.Config{
		ServiceName: "uniroad-agent",
		Environment: envutil.GetEnv("APP_ENV", "development", log),
	})

	svc, err := db.NewService(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := svc.AutoMigrateAll(cfg.VectorIndex); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn("unknown TIMEZONE, defaulting to UTC", "timezone", cfg.Timezone, "error", err.Error())
		tz = time.UTC
	}

	gw, err := gateway.New(gateway.Config{
		APIKey:     cfg.ModelAPIKey,
		BaseURL:    cfg.ModelBaseURL,
		ChatModel:  cfg.ChatModel,
		EmbedModel: cfg.EmbedModel,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init model gateway: %w", err)
	}

	cutoffTable, err := cutoffs.Load()
	if err != nil {
		return nil, fmt.Errorf("load admission cutoffs: %w", err)
	}

	docs := docstore.New(svc.Pool(), log, cfg.EmbeddingDim)
	cache := embedcache.New(cfg.RedisAddr, log)
	lim := quota.New(svc.Pool(), log, quota.Config{
		DailyLimitUser: cfg.DailyLimitUser,
		DailyLimitIP:   cfg.DailyLimitIP,
		Timezone:       tz,
		FailOpenAuthed: cfg.RateLimitFailOpenAuthed,
	})

	sessionRepo := repos.NewSessionRepo(svc.DB(), log)
	messageRepo := repos.NewMessageRepo(svc.DB(), log)
	sessions := session.NewStore(svc.DB(), sessionRepo, messageRepo, log)

	rtr := router.New(gw, log)
	synth := synthesizer.New(gw, log)

	orch := orchestrator.New(lim, sessions, rtr, docs, gw, cutoffTable, synth, cache, cfg.ChunkTokenBudget, cfg.TokensPerRune, log)

	auth, err := middleware.NewAuthMiddleware(log, cfg.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("init auth middleware: %w", err)
	}
	handlers := httpapi.NewHandlers(orch, sessions, log)
	ginEngine := httpapi.NewRouter(httpapi.RouterConfig{
		Handlers:       handlers,
		Auth:           auth,
		AllowedOrigins: envutil.GetEnv("ALLOWED_ORIGINS", "", log),
		Log:            log,
	})

	return &App{Log: log, Cfg: cfg, Router: ginEngine, db: svc, otelShutdown: otelShutdown}, nil
}

// ConfigError distinguishes a configuration failure (exit 1) from any other
// startup failure (exit 2, spec §6 "Exit codes").
type ConfigError struct{ Err error }

func (e *ConfigError) Error() string { return e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	_, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(shutdownCtx)
		cancel()
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
}
