/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the koperasi settlement engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (config.toml + KOPERASI_* env)
  2. Build the zap logger
  3. Open the SQLite store
  4. Seed the default chart of accounts into an empty database
  5. Create API handler and router
  6. Start server with graceful shutdown

ENVIRONMENT:
  KOPERASI_APP_PORT              HTTP port (default 8080)
  KOPERASI_DATABASE_PATH         SQLite path, ":memory:" allowed outside production
  KOPERASI_LOG_LEVEL             debug, info, warn, error
  KOPERASI_CORS_ALLOWED_ORIGINS  comma separated

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests (http.shutdown_timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/warp/koperasi-engine/api"
	"github.com/warp/koperasi-engine/config"
	"github.com/warp/koperasi-engine/koperasi"
	"github.com/warp/koperasi-engine/logger"
	"github.com/warp/koperasi-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "koperasi-engine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer store.Close()

	if cfg.Database.SeedCOA {
		if err := seedCOA(context.Background(), store, log); err != nil {
			return err
		}
	}

	handler := api.NewHandler(store, log)
	handler.DefaultActor = cfg.App.DefaultActor
	handler.MaxBodySize = cfg.HTTP.MaxBodySize

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, cfg.CORS.AllowedOrigins),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.App.Env),
			zap.String("database", cfg.Database.Path),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// seedCOA writes the default accounts that are missing. Existing balances
// are left alone.
func seedCOA(ctx context.Context, store koperasi.Store, log *zap.Logger) error {
	seeded := 0
	for _, akun := range koperasi.DefaultCOA() {
		_, err := store.GetAkun(ctx, akun.Kode)
		if err == nil {
			continue
		}
		if !koperasi.IsNotFound(err) {
			return fmt.Errorf("read akun %s: %w", akun.Kode, err)
		}
		if err := store.SaveAkun(ctx, akun); err != nil {
			return fmt.Errorf("seed akun %s: %w", akun.Kode, err)
		}
		seeded++
	}
	if seeded > 0 {
		log.Info("chart of accounts seeded", zap.Int("accounts", seeded))
	}
	return nil
}
