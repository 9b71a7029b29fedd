package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bikeshare-dashboard/internal/config"
	"bikeshare-dashboard/migrations"
	"bikeshare-dashboard/pkg/database"
	"bikeshare-dashboard/pkg/logging"
)

func main() {
	direction := flag.String("direction", database.MigrateUp, "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("bikeshare-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	ctx := context.Background()

	version, err := database.Migrate(ctx, cfg.Database.Postgres(), migrations.FS, *direction, logger)
	if err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Migration failed", logging.Fields{
			"direction": *direction,
		}, err)
	}

	fmt.Printf("Migration %s completed, schema version %d\n", *direction, version)
}
