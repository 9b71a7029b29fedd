package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bikeshare-dashboard/internal/config"
	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/handlers"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/internal/repository"
	"bikeshare-dashboard/internal/services"
	"bikeshare-dashboard/pkg/database"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("bikeshare-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	logger.Info(ctx, "[STARTUP] Starting bike sharing dashboard API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"data_source": cfg.Data.Source,
	})

	metricsCollector := metrics.NewCollector("bikeshare_dashboard")

	// Pick the sources backing the dataset
	var (
		daily, hourly dataset.Source
		checks        = map[string]handlers.HealthCheckFunc{}
	)
	switch cfg.Data.Source {
	case config.SourcePostgres:
		db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()
		go db.MonitorConnectionPool(ctx, 30*time.Second)

		repo := repository.NewRentalRepository(db, logger, metricsCollector)
		daily = repository.NewTableSource(repo, models.DailyGrain)
		hourly = repository.NewTableSource(repo, models.HourlyGrain)
		checks["database"] = repo.HealthCheck
	default:
		daily = dataset.NewFileSource(cfg.Data.DailyPath)
		hourly = dataset.NewFileSource(cfg.Data.HourlyPath)
	}

	loader := dataset.NewLoader(daily, hourly, dataset.NewCache(), logger, metricsCollector)
	dashboardService := services.NewDashboardService(loader, logger, metricsCollector)

	dashboardHandler := handlers.NewDashboardHandler(dashboardService, logger, metricsCollector)
	for name, check := range checks {
		dashboardHandler.AddHealthCheck(name, check)
	}
	dashboardHandler.AddHealthCheck("dataset", func(ctx context.Context) error {
		_, err := loader.Load(ctx)
		return err
	})

	// Warm the cache; a failure here is reported per request instead
	if _, err := loader.Load(ctx); err != nil {
		logger.Warn(ctx, "[STARTUP_WARNING] Initial dataset load failed", logging.Fields{
			"error": err.Error(),
		})
	}

	router := handlers.NewRouter(dashboardHandler, promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      gzhttp.GzipHandler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
