package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bikeshare-dashboard/internal/config"
	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/internal/repository"
	"bikeshare-dashboard/internal/services"
	"bikeshare-dashboard/pkg/database"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

func main() {
	// Parse command-line flags
	dailyPath := flag.String("daily", "data/day.csv", "Daily rental file (csv, tsv, xlsx; optionally .gz or .zst)")
	hourlyPath := flag.String("hourly", "data/hour.csv", "Hourly rental file (csv, tsv, xlsx; optionally .gz or .zst)")
	batchSize := flag.Int("batch-size", 1000, "Number of records to insert per transaction")
	replace := flag.Bool("replace", false, "Delete the stored records of each grain before loading it")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("bikeshare-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting rental data ingestion", logging.Fields{
		"version":    "1.0.0",
		"daily":      *dailyPath,
		"hourly":     *hourlyPath,
		"batch_size": *batchSize,
		"replace":    *replace,
	})

	metricsCollector := metrics.NewCollector("bikeshare_ingester")

	db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	rentalRepo := repository.NewRentalRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(rentalRepo, logger, metricsCollector)

	ingest := ingestionService.IngestSource
	if *replace {
		ingest = ingestionService.ReplaceGrain
	}

	jobs := []struct {
		grain models.Grain
		path  string
	}{
		{models.DailyGrain, *dailyPath},
		{models.HourlyGrain, *hourlyPath},
	}

	var results []*services.IngestionResult
	for _, job := range jobs {
		if job.path == "" {
			continue
		}
		result, err := ingest(ctx, job.grain, dataset.NewFileSource(job.path), *batchSize)
		if err != nil {
			logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
				"grain": job.grain,
				"path":  job.path,
			}, err)
		}
		results = append(results, result)
	}

	for _, result := range results {
		printResult(result)
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"sources": len(results),
	})
}

func printResult(result *services.IngestionResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("INGESTION COMPLETE: %s (%s)\n", result.Source, result.Grain)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Batches:            %d\n", result.Batches)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
	fmt.Println()
}
