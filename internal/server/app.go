// Package server initializes and runs the ProposalKeeper server: it opens
// the database, applies migrations, selects the document store and token
// revocation backend, and serves the HTTP API until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/proposalkeeper/internal/logging"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/attachments"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/config"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/services"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/session"
)

type App struct {
	config          *config.Config
	logger          logging.Logger
	db              *sql.DB
	metrics         *metrics.Metrics
	userService     *services.UserService
	proposalService *services.ProposalService
	closers         []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, closers: []func() error{db.Close}}

	rm := repomanager.NewPostgresRepositoryManager()
	if c.RunMigrations {
		if err := rm.RunMigrations(ctx, db); err != nil {
			app.close(ctx)
			return nil, fmt.Errorf("migrations error: %w", err)
		}
		logger.Info(ctx, "migrations applied")
	}

	store, err := newBlobStore(ctx, c)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("document store init error: %w", err)
	}

	revoker, closeRevoker, err := newRevoker(ctx, c)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("session store init error: %w", err)
	}
	if closeRevoker != nil {
		app.closers = append(app.closers, closeRevoker)
	}

	app.metrics = metrics.New()
	documents := attachments.NewManager(store, c.MaxUploadSize, logger, app.metrics)

	app.userService = services.NewUserService(db, rm, c, revoker, logger, app.metrics)
	app.proposalService = services.NewProposalService(db, rm, documents, logger, app.metrics)

	logger.Info(ctx, "app initialized", "storage", c.StorageBackend, "redis", c.RedisURL != "")
	return app, nil
}

func newBlobStore(ctx context.Context, c *config.Config) (attachments.BlobStore, error) {
	switch c.StorageBackend {
	case config.StorageLocal, "":
		return attachments.NewLocalStore(c.UploadDir)
	case config.StorageS3:
		return attachments.NewS3Store(ctx, attachments.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
			Prefix:       c.S3Prefix,
		})
	}
	return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
}

func newRevoker(ctx context.Context, c *config.Config) (session.Revoker, func() error, error) {
	if c.RedisURL == "" {
		return session.NewMemoryRevoker(), nil, nil
	}
	r, err := session.NewRedisRevoker(ctx, c.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.userService, app.proposalService,
		app.metrics, app.config.MaxUploadSize)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(ctx, "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
}
