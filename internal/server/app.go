// Package server assembles the relaytale application: configuration,
// logging, tracing, storage, services and the HTTP and gRPC listeners.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/relaytale/internal/cryptox"
	"github.com/dmitrijs2005/relaytale/internal/logging"
	"github.com/dmitrijs2005/relaytale/internal/moderation"
	"github.com/dmitrijs2005/relaytale/internal/server/archive"
	"github.com/dmitrijs2005/relaytale/internal/server/config"
	"github.com/dmitrijs2005/relaytale/internal/server/httpapi"
	"github.com/dmitrijs2005/relaytale/internal/server/pagination"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/relaytale/internal/server/services"
	"github.com/dmitrijs2005/relaytale/internal/server/telemetry"
	"github.com/gin-gonic/gin"

	gs "github.com/dmitrijs2005/relaytale/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	closers []func(context.Context) error
	db      *sql.DB
	http    *httpapi.HTTPServer
	grpc    *gs.GRPCServer
}

// NewApp connects to the database, applies migrations and builds every
// service. Resources opened before a failure are released.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	app := &App{config: c}
	defer func() {
		if err != nil {
			app.close(ctx)
		}
	}()

	logger, syncLog, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	app.logger = logger
	app.closers = append(app.closers, syncLog)

	shutdownTracing, err := telemetry.Setup(ctx, c.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}
	app.closers = append(app.closers, shutdownTracing)

	db, rm, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, func(context.Context) error { return db.Close() })

	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	var arch services.Archiver = services.NopArchiver{}
	if c.ArchiveEnabled {
		arch, err = archive.NewS3Archiver(ctx, archive.Settings{
			Bucket:   c.S3Bucket,
			Region:   c.S3Region,
			Endpoint: c.S3BaseEndpoint,
			User:     c.S3RootUser,
			Password: c.S3RootPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("archive init error: %w", err)
		}
	}

	sealer, err := cryptox.NewSealer(c.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("credential sealer init error: %w", err)
	}

	picker := services.NewRandomPicker()
	assignments := services.NewAssignmentService(db, rm, picker, c.AssignmentRetryLimit, logger)
	completions := services.NewCompletionService(db, rm, moderation.Default(), arch, logger)
	users := services.NewUserService(db, rm, sealer, logger)
	queries := services.NewStoryQueryService(db, rm, picker, pagination.PageSizeConfig{
		Default: c.DefaultPageSize,
		Max:     c.MaxPageSize,
	})

	if strings.EqualFold(c.LogLevel, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	h := httpapi.NewHandler(assignments, completions, users, queries, logger, c.SecretKey, c.AccessTokenCookie)
	router := httpapi.NewRouter(h, logger, c.AllowedOrigins)

	app.http = httpapi.NewHTTPServer(c.EndpointAddrHTTP, router, logger, c.ShutdownTimeout)
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger)

	return app, nil
}

func newLogger(c *config.Config) (logging.Logger, func(context.Context) error, error) {
	if c.LogBackend == config.LogBackendZap {
		zl, err := logging.NewZap(logging.ZapConfig{Level: c.LogLevel, Encoding: c.LogFormat})
		if err != nil {
			return nil, nil, fmt.Errorf("logger init error: %w", err)
		}
		l := logging.NewZapLogger(zl)
		return l, func(context.Context) error { _ = l.Sync(); return nil }, nil
	}

	sl := logging.NewSlog(logging.SlogConfig{Level: c.LogLevel, Format: c.LogFormat})
	return logging.NewSlogLogger(sl), func(context.Context) error { return nil }, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startServer(ctx context.Context, cancelFunc context.CancelFunc, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped with error", "server", name, "error", err)
		cancelFunc()
	}
}

// Run serves HTTP and gRPC until a signal arrives or either listener fails,
// then releases all resources.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startServer(ctx, cancelFunc, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.startServer(ctx, cancelFunc, "grpc", app.grpc.Run)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
}

// close runs the closers in reverse order of acquisition.
func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil && app.logger != nil {
			app.logger.Error(ctx, "close resource", "error", err)
		}
	}
	app.closers = nil
}
