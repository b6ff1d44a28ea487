// Package server initializes and runs the data-room disclosure server: it
// wires the database, object storage, and key-value backends to the engine
// services, starts the HTTP endpoint, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avendale/dataroom/internal/kv"
	"github.com/avendale/dataroom/internal/logging"
	"github.com/avendale/dataroom/internal/server/config"
	"github.com/avendale/dataroom/internal/server/httpapi"
	"github.com/avendale/dataroom/internal/server/prefill"
	"github.com/avendale/dataroom/internal/server/ratelimit"
	"github.com/avendale/dataroom/internal/server/repositories/repomanager"
	"github.com/avendale/dataroom/internal/server/services"
	"github.com/avendale/dataroom/internal/server/storage"
)

// shutdownTimeout bounds the drain of in-flight requests on shutdown.
const shutdownTimeout = 10 * time.Second

// janitorInterval is the sweep period of the in-process kv store.
const janitorInterval = time.Minute

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	kvStore kv.Store
	server  *http.Server
}

// NewApp builds the full dependency graph: Postgres (with migrations run at
// startup), the S3 blob store, the kv backend (Redis when configured, the
// in-process store otherwise), and the services behind the HTTP boundary.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("repository manager init: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	blob, err := storage.NewS3Store(cfg)
	if err != nil {
		return nil, fmt.Errorf("blob store init: %w", err)
	}

	var kvStore kv.Store
	if cfg.RedisAddr != "" {
		kvStore, err = kv.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis init: %w", err)
		}
	} else {
		kvStore = kv.NewMemory()
	}

	audit := services.NewAuditService(db, rm, logger)
	nda := services.NewNDAService(db, rm, audit, cfg.NDAVersion, logger)
	limiter := ratelimit.New(kvStore, cfg.RateLimitPerMinute, time.Minute)
	disclosure := services.NewDisclosureService(db, rm, blob, limiter, nda, audit, cfg, logger)
	prefillStore := prefill.NewStore(kvStore, cfg.PrefillTTL)

	api := httpapi.New(disclosure, nda, audit, prefillStore, cfg, logger)

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		kvStore: kvStore,
		server: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: api.Router(),
		},
	}, nil
}

// Run serves until the context is canceled or a termination signal arrives,
// then drains in-flight requests and closes the backends.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if mem, ok := app.kvStore.(*kv.Memory); ok {
		mem.StartJanitor(ctx, janitorInterval)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigs)

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "listening", "addr", app.config.ListenAddr)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigs:
		app.logger.Info(ctx, "shutting down", "signal", sig.String())
	case <-ctx.Done():
		app.logger.Info(ctx, "shutting down", "reason", ctx.Err().Error())
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "shutdown incomplete", "error", err)
	}

	if closer, ok := app.kvStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			app.logger.Warn(ctx, "kv close failed", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}
	return nil
}
