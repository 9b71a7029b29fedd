package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"bikeshare-dashboard/pkg/logging"
)

// Migration directions accepted by Migrate
const (
	MigrateUp   = "up"
	MigrateDown = "down"
)

// Migrate applies or reverts every migration found at the root of src and
// returns the schema version left in place. Zero means no migration applied.
func Migrate(ctx context.Context, cfg *Config, src fs.FS, direction string, logger *logging.StructuredLogger) (uint, error) {
	if direction != MigrateUp && direction != MigrateDown {
		return 0, fmt.Errorf("unsupported migration direction %q", direction)
	}

	source, err := iofs.New(src, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.URL())
	if err != nil {
		return 0, fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	logger.Info(ctx, "[DB_MIGRATE] Running migrations", logging.Fields{
		"direction": direction,
		"host":      cfg.Host,
		"database":  cfg.Database,
	})

	if direction == MigrateUp {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migration %s failed: %w", direction, err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info(ctx, "[DB_MIGRATE] Schema already current", logging.Fields{"direction": direction})
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
