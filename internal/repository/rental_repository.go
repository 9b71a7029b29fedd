package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/pkg/database"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

// RentalRepository provides data access for rental records
type RentalRepository interface {
	CreateRecordsBatch(ctx context.Context, grain models.Grain, records []models.RawRentalRecord) error
	ListRaw(ctx context.Context, grain models.Grain) ([]models.RawRentalRecord, error)
	Version(ctx context.Context, grain models.Grain) (*TableVersion, error)
	DeleteGrain(ctx context.Context, grain models.Grain) (int64, error)
	HealthCheck(ctx context.Context) error
}

// TableVersion identifies the stored state of one grain
type TableVersion struct {
	Rows     int64        `db:"row_count"`
	LoadedAt sql.NullTime `db:"loaded_at"`
}

// Fingerprint hashes the version into a short stable key
func (v *TableVersion) Fingerprint() string {
	h := xxhash.New()
	h.WriteString(strconv.FormatInt(v.Rows, 10))
	if v.LoadedAt.Valid {
		h.WriteString(v.LoadedAt.Time.UTC().Format(time.RFC3339Nano))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

type rentalRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewRentalRepository creates a new rental repository
func NewRentalRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) RentalRepository {
	return &rentalRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const upsertRecord = `
	INSERT INTO rental_records (
		grain, dteday, hr, season, mnth, weathersit,
		temp, atemp, hum, windspeed,
		casual, registered, cnt, loaded_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (grain, dteday, hr) DO UPDATE SET
		season = EXCLUDED.season,
		mnth = EXCLUDED.mnth,
		weathersit = EXCLUDED.weathersit,
		temp = EXCLUDED.temp,
		atemp = EXCLUDED.atemp,
		hum = EXCLUDED.hum,
		windspeed = EXCLUDED.windspeed,
		casual = EXCLUDED.casual,
		registered = EXCLUDED.registered,
		cnt = EXCLUDED.cnt,
		loaded_at = EXCLUDED.loaded_at
`

// CreateRecordsBatch upserts records of one grain in a single transaction
func (r *rentalRepository) CreateRecordsBatch(ctx context.Context, grain models.Grain, records []models.RawRentalRecord) error {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		r.metrics.IngestionBatchSize.Observe(float64(len(records)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"grain":       grain,
			"count":       len(records),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	loadedAt := time.Now().UTC()
	for _, rec := range records {
		hour := rec.Hour
		if grain == models.DailyGrain {
			hour = 0
		}
		_, err := stmt.ExecContext(ctx,
			string(grain), rec.Date, hour,
			rec.SeasonCode, rec.MonthNumber, rec.WeatherCode,
			rec.Temp, rec.ATemp, rec.Humidity, rec.WindSpeed,
			rec.Casual, rec.Registered, rec.Total, loadedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert %s record %s hour %d: %w", grain, rec.Date, hour, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(len(records)))
	return nil
}

// ListRaw returns every stored record of a grain in date/hour order
func (r *rentalRepository) ListRaw(ctx context.Context, grain models.Grain) ([]models.RawRentalRecord, error) {
	query := `
		SELECT to_char(dteday, 'YYYY-MM-DD') AS dteday, hr, season, mnth, weathersit,
		       temp, atemp, hum, windspeed, casual, registered, cnt
		FROM rental_records
		WHERE grain = $1
		ORDER BY dteday, hr
	`

	var records []models.RawRentalRecord
	if err := r.db.SelectContext(ctx, "list_rentals", &records, query, string(grain)); err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", grain, err)
	}
	return records, nil
}

// Version reports the row count and latest load time of a grain
func (r *rentalRepository) Version(ctx context.Context, grain models.Grain) (*TableVersion, error) {
	query := `
		SELECT COUNT(*) AS row_count, MAX(loaded_at) AS loaded_at
		FROM rental_records
		WHERE grain = $1
	`

	var v TableVersion
	if err := r.db.GetContext(ctx, "rental_version", &v, query, string(grain)); err != nil {
		return nil, fmt.Errorf("failed to read %s version: %w", grain, err)
	}
	return &v, nil
}

// DeleteGrain removes every record of a grain
func (r *rentalRepository) DeleteGrain(ctx context.Context, grain models.Grain) (int64, error) {
	res, err := r.db.ExecContext(ctx, "delete_rentals", `DELETE FROM rental_records WHERE grain = $1`, string(grain))
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s records: %w", grain, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}

	r.logger.Info(ctx, "[REPO_DELETE_GRAIN] Records removed", logging.Fields{
		"grain": grain,
		"rows":  n,
	})
	return n, nil
}

// HealthCheck performs a health check on the repository
func (r *rentalRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
