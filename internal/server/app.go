// Package server initializes and runs the integration sync service: it wires
// storage, encryption, OAuth, pipelines, and the HTTP API, and handles
// graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devlens/devlens/internal/cryptox"
	"github.com/devlens/devlens/internal/logging"
	"github.com/devlens/devlens/internal/server/config"
	"github.com/devlens/devlens/internal/server/health"
	"github.com/devlens/devlens/internal/server/httpapi"
	"github.com/devlens/devlens/internal/server/kvstore"
	"github.com/devlens/devlens/internal/server/notify"
	"github.com/devlens/devlens/internal/server/oauth"
	"github.com/devlens/devlens/internal/server/ratelimit"
	"github.com/devlens/devlens/internal/server/repositories/repomanager"
	"github.com/devlens/devlens/internal/server/summary"
	"github.com/devlens/devlens/internal/server/syncer"
	"github.com/devlens/devlens/internal/server/tokenstore"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	store  kvstore.Store
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	rm := repomanager.NewPostgresManager()

	db, err := repomanager.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	var store kvstore.Store
	if cfg.RedisAddr != "" {
		store, err = kvstore.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("redis init error: %w", err)
		}
	} else {
		store = kvstore.NewMemory(time.Minute)
	}

	enc, err := cryptox.NewEncryptor(cfg.TokenMasterSecret)
	if err != nil {
		return nil, fmt.Errorf("encryptor init error: %w", err)
	}

	tokens := tokenstore.New(rm.Credentials(db), enc, logger)
	oauthMgr := oauth.NewManager(cfg, logger)

	pipelines := []syncer.Pipeline{
		syncer.NewGitHubPipeline(),
		syncer.NewNotionPipeline(),
		syncer.NewSlackPipeline(),
		syncer.NewCalendarPipeline(),
	}

	orch := syncer.New(tokens, oauthMgr.Refresh, rm.SyncLogs(db), rm.Activities(db), pipelines, logger)

	if cfg.S3Bucket != "" {
		archiver, err := syncer.NewS3Archiver(ctx, syncer.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("archiver init error: %w", err)
		}
		orch.SetArchiver(archiver)
	}

	notifySvc := notify.New(rm.Notifications(db), logger)
	monitor := health.New(rm.SyncLogs(db), rm.Credentials(db), notifySvc, logger)
	summarySvc := summary.New(rm.Activities(db), summary.TemplateSummarizer{}, logger)

	srv := httpapi.NewServer(httpapi.Deps{
		Addr:          cfg.EndpointAddr,
		SessionSecret: []byte(cfg.SessionSecret),
		DB:            db,
		Repos:         rm,
		Tokens:        tokens,
		OAuth:         oauthMgr,
		State:         oauth.NewStateManager(store),
		Syncer:        orch,
		Health:        monitor,
		Notify:        notifySvc,
		Summary:       summarySvc,
		Limiter:       ratelimit.NewLimiter(store),
		Log:           logger,
	})

	return &App{config: cfg, logger: logger, db: db, store: store, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
	}

	if err := app.store.Close(); err != nil {
		app.logger.Warn(ctx, "error closing kv store", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "error closing database", "error", err)
	}
}
