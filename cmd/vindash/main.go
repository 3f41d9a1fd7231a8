package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/vindash/internal/api"
	"github.com/vindash/internal/apify"
	"github.com/vindash/internal/config"
	"github.com/vindash/internal/database"
	"github.com/vindash/internal/metrics"
	"github.com/vindash/internal/service"
	"github.com/vindash/internal/utils"
	"github.com/vindash/internal/vault"
	"github.com/vindash/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logrus.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	// Set up logging
	if err := utils.SetupLogger(cfg.App.LogLevel, cfg.App.Environment); err != nil {
		logrus.Errorf("Failed to set up logger: %v", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := connectToDatabase(cfg)
	if err != nil {
		logrus.Errorf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize core components
	m := metrics.NewMetrics()
	v, err := vault.New(cfg.Encryption.Key)
	if err != nil {
		logrus.Errorf("Failed to initialize credential vault: %v", err)
		os.Exit(1)
	}
	runClient := apify.NewClient(&cfg.Apify, &cfg.HTTP, m)
	orchestrator := service.NewOrchestrator(cfg, db, runClient, v, m)
	queueWorker := worker.New(&cfg.Worker, db, orchestrator)

	// Check command line arguments
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runAsService(cfg, db, orchestrator, queueWorker, v, m)
			return
		case "process":
			if err := queueWorker.ProcessOnce(context.Background()); err != nil {
				logrus.Errorf("Queue processing failed: %v", err)
				os.Exit(1)
			}
			return
		case "stats":
			if err := showStats(context.Background(), db); err != nil {
				logrus.Errorf("Failed to get stats: %v", err)
				os.Exit(1)
			}
			return
		case "health":
			if err := checkHealth(context.Background(), db, orchestrator); err != nil {
				logrus.Errorf("Health check failed: %v", err)
				os.Exit(1)
			}
			return
		case "help":
			showHelp()
			return
		default:
			logrus.Errorf("Unknown command: %s. Use 'help' for usage information.", os.Args[1])
			os.Exit(1)
		}
	}

	// Default to running as a service
	runAsService(cfg, db, orchestrator, queueWorker, v, m)
}

// connectToDatabase connects to the PostgreSQL database
func connectToDatabase(cfg *config.Config) (*sqlx.DB, error) {
	dsn := cfg.GetDSN()
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings from configuration
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	logrus.Info("Successfully connected to database")
	return db, nil
}

// runAsService starts the API server and the background worker, then
// waits for a shutdown signal.
func runAsService(cfg *config.Config, db *sqlx.DB, orchestrator *service.Orchestrator, queueWorker *worker.Worker, v *vault.Vault, m *metrics.Metrics) {
	logrus.Info("Starting VIN dashboard backend...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background worker drains the pending queue
	go queueWorker.Run(ctx)

	// Optional scheduled queue sweep
	if scheduler := worker.ScheduleMaintenance(&cfg.Worker, queueWorker); scheduler != nil {
		defer scheduler.Stop()
	}

	// System metrics collection
	go m.StartMetricsCollection(ctx)

	// HTTP API
	server := api.NewServer(cfg, db, orchestrator, v, m)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logrus.Infof("API server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("API server failed: %v", err)
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	logrus.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("API server shutdown failed: %v", err)
	}

	logrus.Info("VIN dashboard backend stopped gracefully")
}

// showStats prints submission statistics
func showStats(ctx context.Context, db *sqlx.DB) error {
	repo := database.NewSubmissionRepository(db)
	stats, err := repo.GetSubmissionStats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Submission Statistics:\n")
	fmt.Printf("  Total:      %d\n", stats.Total)
	fmt.Printf("  Pending:    %d\n", stats.Pending)
	fmt.Printf("  Processing: %d\n", stats.Processing)
	fmt.Printf("  Completed:  %d\n", stats.Completed)
	fmt.Printf("  Failed:     %d\n", stats.Failed)
	return nil
}

// checkHealth verifies the database and the scraping platform are
// reachable.
func checkHealth(ctx context.Context, db *sqlx.DB, orchestrator *service.Orchestrator) error {
	logrus.Info("Performing health checks...")

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	logrus.Info("Database connection healthy")

	info, err := orchestrator.TestConnection(ctx)
	if err != nil {
		return fmt.Errorf("apify health check failed: %w", err)
	}
	logrus.Infof("Apify connection healthy (account %s)", info.Username)

	logrus.Info("All health checks passed")
	return nil
}

// showHelp displays usage information
func showHelp() {
	fmt.Printf(`
VIN Dashboard Backend - Vehicle History Report Service

Usage:
  vindash [command]

Commands:
  serve    Run the API server and background worker (default)
  process  Drain the pending submission queue once
  stats    Show submission statistics
  health   Perform health checks
  help     Show this help message

Environment Variables:
  DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD
  APIFY_API_KEY, APIFY_ACTOR_ID, ENCRYPTION_KEY
  LOG_LEVEL, SERVER_ADDR, WORKER_CRON_SCHEDULE

Examples:
  vindash serve
  vindash process
  vindash stats
`)
}
