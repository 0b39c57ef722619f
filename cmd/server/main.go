/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the salon compensation server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, salon.yaml, SALON_* environment)
  2. Apply command-line overrides
  3. Open the configured store (running migrations for Postgres)
  4. Build the payroll engine, handler and month-end scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SALON_PORT)
  -store   sqlite, postgres or memory (overrides SALON_STORE)
  -db      SQLite database path (overrides SALON_SQLITE_PATH)
           Use ":memory:" for in-memory database
  -rollback N
           Postgres only: roll back N migrations and exit

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the payroll scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/salon.db"

  # Run against Postgres
  SALON_STORE=postgres SALON_DATABASE_URL=postgres://... ./server

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - payroll/engine.go: Compensation engine
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/warp/salon-engine/api"
	"github.com/warp/salon-engine/config"
	"github.com/warp/salon-engine/payroll"
	"github.com/warp/salon-engine/payroll/store"
	"github.com/warp/salon-engine/store/postgres"
	"github.com/warp/salon-engine/store/sqlite"
)

type closableStore interface {
	payroll.Store
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	port := flag.Int("port", cfg.Port, "HTTP server port")
	storeKind := flag.String("store", cfg.Store, "Store backend: sqlite, postgres or memory")
	dbPath := flag.String("db", cfg.SQLitePath, "SQLite database path")
	rollback := flag.Int("rollback", 0, "Roll back N postgres migrations and exit")
	flag.Parse()
	cfg.Port, cfg.Store, cfg.SQLitePath = *port, *storeKind, *dbPath

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if err := cfg.SetupLogging(); err != nil {
		log.WithError(err).Fatal("failed to set up logging")
	}

	if *rollback > 0 {
		if cfg.Store != config.StorePostgres {
			log.WithField("store", cfg.Store).Fatal("-rollback needs the postgres store")
		}
		if err := postgres.MigrateDown(cfg.DatabaseURL, *rollback); err != nil {
			log.WithError(err).Fatal("rollback failed")
		}
		log.WithField("steps", *rollback).Info("migrations rolled back")
		return
	}

	st, err := openStore(context.Background(), cfg)
	if err != nil {
		log.WithError(err).WithField("store", cfg.Store).Fatal("failed to initialize store")
	}
	defer st.Close()

	engine := payroll.NewEngine(st, payroll.NewCalculator(cfg.Rates))
	engine.Workers = cfg.PayrollWorkers

	metrics := api.NewMetrics()
	handler := api.NewHandler(engine, st, metrics)

	scheduler := api.NewPayrollScheduler(engine, metrics)
	handler.Scheduler = scheduler
	scheduler.Start()

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:  cfg.AllowedOrigins,
		EnableScenarios: !cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":        cfg.Port,
			"store":       cfg.Store,
			"environment": cfg.Environment,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Config) (closableStore, error) {
	switch cfg.Store {
	case config.StorePostgres:
		if err := postgres.MigrateUp(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		return postgres.New(ctx, cfg.DatabaseURL)
	case config.StoreMemory:
		return memoryStore{store.NewMemory()}, nil
	default:
		return sqlite.New(cfg.SQLitePath)
	}
}

// memoryStore gives the in-memory store a no-op Close.
type memoryStore struct {
	*store.Memory
}

func (memoryStore) Close() error { return nil }
