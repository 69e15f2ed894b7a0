/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fixed asset engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the zap logger
  3. Open the SQL store and apply migrations
  4. Choose the run locker (Redis when REDIS_ADDR is set, else in-process)
  5. Build the depreciation engine and lifecycle services
  6. Configure HTTP router, start the scheduler if enabled
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      Database DSN (overrides DB_DSN)
           Use ":memory:" for an in-memory SQLite database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (SERVER_SHUTDOWN_TIMEOUT)
  4. Close database and Redis connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/assets.db"

  # Run against PostgreSQL with Redis locks
  DB_DRIVER=postgres DB_DSN="postgres://..." REDIS_ADDR=localhost:6379 ./server

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqldb/sqldb.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/asset-engine/api"
	"github.com/warp/asset-engine/config"
	"github.com/warp/asset-engine/depreciation"
	"github.com/warp/asset-engine/lifecycle"
	"github.com/warp/asset-engine/lock"
	"github.com/warp/asset-engine/logger"
	"github.com/warp/asset-engine/store/sqldb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dsn := flag.String("db", cfg.DB.DSN, "Database DSN")
	flag.Parse()
	cfg.App.Port = *port
	cfg.DB.DSN = *dsn

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.App.Name)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx := context.Background()

	// Initialize store
	if cfg.DB.Driver == string(sqldb.DialectSQLite) && cfg.DB.DSN != ":memory:" && cfg.DB.DSN != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.DSN), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := sqldb.Open(ctx, sqldb.Config{
		Driver:       sqldb.Dialect(cfg.DB.Driver),
		DSN:          cfg.DB.DSN,
		MaxOpenConns: cfg.DB.MaxOpenConns,
	}, zlog)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Run locks
	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		var rdb *redis.Client
		rdb, err = lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.App.Name+":")
		zlog.Info("using redis run locks", zap.String("addr", cfg.Redis.Addr))
	}

	// Services
	engine := depreciation.NewEngine(store, locker, depreciation.Config{
		Workers: cfg.Depreciation.Workers,
		LockTTL: cfg.Depreciation.LockTTL,
	}, zlog)
	handler := api.NewHandler(api.Services{
		Registry:    lifecycle.NewRegistry(store, lifecycle.WithLogger(zlog)),
		Transfers:   lifecycle.NewTransfers(store, lifecycle.WithLogger(zlog)),
		Disposals:   lifecycle.NewDisposals(store, lifecycle.WithLogger(zlog)),
		Maintenance: lifecycle.NewMaintenance(store, lifecycle.WithLogger(zlog)),
		Engine:      engine,
	}, zlog)

	// Create router
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	scheduler := api.NewDepreciationScheduler(store, engine, zlog)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errc := make(chan error, 1)
	go func() {
		zlog.Info("server starting",
			zap.Int("port", cfg.App.Port),
			zap.String("db_driver", cfg.DB.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}

	zlog.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zlog.Info("server stopped")
	return nil
}
