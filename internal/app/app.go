package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/docsentinel-backend/internal/data/db"
	"github.com/yungbote/docsentinel-backend/internal/http"
	"github.com/yungbote/docsentinel-backend/internal/ingestion"
	"github.com/yungbote/docsentinel-backend/internal/observability"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *http.Server
	Cfg      Config
	Repos    Repos
	Services Services
	Clients  Clients
	Watcher  *ingestion.Watcher

	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig()
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "docsentinel",
		Environment: cfg.Environment,
	})
	observability.Init(log)

	theDB, err := openDB(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if err := db.AutoMigrateAll(theDB); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	var watcher *ingestion.Watcher
	watchCfg, err := ingestion.WatchConfigFromEnv()
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}
	if watchCfg.Enabled() {
		watcher, err = ingestion.NewWatcher(log, watchCfg, serviceset.Processing)
		if err != nil {
			clients.Close()
			log.Sync()
			return nil, fmt.Errorf("init inbox watcher: %w", err)
		}
	}

	handlerset := wireHandlers(log, theDB, serviceset)
	middleware := wireMiddleware(log, serviceset)

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       wireServer(log, cfg, handlerset, middleware),
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Clients:      clients,
		Watcher:      watcher,
		otelShutdown: otelShutdown,
	}, nil
}

func openDB(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	if cfg.DatabaseDriver == "sqlite" {
		log.Warn("Using SQLite database", "dsn", cfg.SQLiteDSN)
		return db.OpenSQLite(cfg.SQLiteDSN, false)
	}
	pg, err := db.NewPostgresService(log, db.PostgresConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	return pg.DB(), nil
}

// Run starts the background loops and serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	if m := observability.Current(); m != nil {
		m.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		m.StartQueueCollector(ctx, a.Log, a.DB)
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Start(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.Watcher != nil {
		g.Go(func() error { return a.Watcher.Run(gctx) })
	}
	g.Go(func() error {
		a.Log.Info("HTTP server listening", "port", a.Cfg.Port)
		return a.Server.Run(gctx, ":"+a.Cfg.Port)
	})
	err := g.Wait()
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Wait()
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
