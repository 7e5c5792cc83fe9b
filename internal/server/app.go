// Package server wires the memestore server together: configuration,
// PostgreSQL, object storage, the HTTP API and the gRPC health service. It
// also handles graceful shutdown on SIGINT, SIGTERM and SIGQUIT.
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
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/memestore/internal/logging"
	"github.com/dmitrijs2005/memestore/internal/server/auth"
	"github.com/dmitrijs2005/memestore/internal/server/config"
	"github.com/dmitrijs2005/memestore/internal/server/httpapi"
	"github.com/dmitrijs2005/memestore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/memestore/internal/server/services"
	"github.com/dmitrijs2005/memestore/internal/server/storage"

	gs "github.com/dmitrijs2005/memestore/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions *services.SessionService
	media    *services.MediaService
}

// NewApp connects to PostgreSQL and S3, applies migrations and builds the
// services. The returned App owns the database pool.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager(time.Now)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := storage.NewS3Store(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("s3 bucket error: %w", err)
	}

	hasher, err := auth.NewPasswordHasher(auth.DefaultArgon2Params)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	codec := auth.NewTokenCodec([]byte(c.SecretKey), time.Now)

	ss := services.NewSessionService(db, rm, hasher, codec, c, logger.With("module", "sessions"))
	ms := services.NewMediaService(db, rm, store, c, logger.With("module", "media"))

	return &App{config: c, logger: logger, db: db, sessions: ss, media: ms}, nil
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

func (app *App) startHealthServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrHealth, app.logger,
		map[string]gs.Probe{"postgres": app.db}, 0)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := httpapi.NewHandler(app.sessions, app.media, app.logger.With("module", "http"), app.config.MaxUploadBytes)
	limiter := httpapi.NewRateLimiter(ctx, app.config.AuthRateLimit, app.config.AuthRateBurst)

	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           httpapi.NewRouter(h, limiter, app.config.TrustProxyHeaders),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := serveHTTP(ctx, srv, app.logger); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// serveHTTP runs srv until ctx is done, then drains in-flight requests.
func serveHTTP(ctx context.Context, srv *http.Server, logger logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

// Run blocks until a shutdown signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHealthServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
