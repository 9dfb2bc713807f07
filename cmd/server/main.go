/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Initialize SQLite store
  3. Load rule tables (directory or built-in demo tables)
  4. Create API handler and reconcile rule tables with the database
  5. Start the monthly run scheduler when enabled
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port     HTTP server port (APP_PORT, default: 8080)
  -db       SQLite database path (DB_PATH, default: payroll.db)
            Use ":memory:" for in-memory database
  -rules    Rule table directory (RULE_TABLES_DIR, default: demo tables)
  -workers  Concurrent calculations per payroll run (PAYROLL_WORKERS)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/payroll.db" -rules=./rules
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/engine/store"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/jurisdiction"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	rulesDir := flag.String("rules", cfg.Payroll.RuleTablesDir, "Rule table directory (empty = demo tables)")
	workers := flag.Int("workers", cfg.Payroll.Workers, "Concurrent calculations per payroll run")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger, *port, *dbPath, *rulesDir, *workers); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, port int, dbPath, rulesDir string, workers int) error {
	// Initialize store
	db, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	ruleTables, err := loadRuleTables(rulesDir)
	if err != nil {
		return err
	}
	tables, err := store.NewRuleTables(ruleTables...)
	if err != nil {
		return fmt.Errorf("load rule tables: %w", err)
	}

	// Initialize handler
	handler := api.NewHandler(db, tables, logger)
	handler.Workers = workers
	handler.PayslipDir = cfg.Payroll.PayslipDir

	// Sync rule tables with the database
	if err := handler.LoadRuleTables(context.Background()); err != nil {
		logger.Warn("failed to sync rule tables", slog.Any("error", err))
	}
	for _, rt := range tables.All() {
		logger.Info("rule table available",
			slog.String("id", rt.ID),
			slog.String("version", rt.Version),
			slog.String("effective_from", rt.EffectiveFrom.Format(time.DateOnly)),
		)
	}

	scheduler := api.NewPayrollScheduler(handler)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.Int("port", port),
			slog.String("db", dbPath),
			slog.Int("workers", workers),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// loadRuleTables parses every table in dir, or returns the demo jurisdiction
// when dir is empty.
func loadRuleTables(dir string) ([]*engine.RuleTableVersion, error) {
	f := factory.NewRuleTableFactory()
	if dir != "" {
		tables, err := f.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		if len(tables) > 0 {
			return tables, nil
		}
	}

	h1, err := f.ParseJSON([]byte(jurisdiction.DemoTableJSON("demo-2025", "1.0.0", "2025-01-01")))
	if err != nil {
		return nil, fmt.Errorf("demo rule table: %w", err)
	}
	h2, err := f.ParseYAML([]byte(jurisdiction.DemoTableH2YAML))
	if err != nil {
		return nil, fmt.Errorf("demo rule table: %w", err)
	}
	return []*engine.RuleTableVersion{h1, h2}, nil
}
