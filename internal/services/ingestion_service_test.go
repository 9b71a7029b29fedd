package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/internal/repository"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

type memoryRepo struct {
	batches  [][]models.RawRentalRecord
	deleted  []models.Grain
	failOn   int
	batchErr error
}

func (r *memoryRepo) CreateRecordsBatch(_ context.Context, _ models.Grain, records []models.RawRentalRecord) error {
	if r.batchErr != nil && len(r.batches)+1 == r.failOn {
		return r.batchErr
	}
	r.batches = append(r.batches, append([]models.RawRentalRecord(nil), records...))
	return nil
}

func (r *memoryRepo) ListRaw(context.Context, models.Grain) ([]models.RawRentalRecord, error) {
	return nil, nil
}

func (r *memoryRepo) Version(context.Context, models.Grain) (*repository.TableVersion, error) {
	return &repository.TableVersion{}, nil
}

func (r *memoryRepo) DeleteGrain(_ context.Context, grain models.Grain) (int64, error) {
	r.deleted = append(r.deleted, grain)
	return 0, nil
}

func (r *memoryRepo) HealthCheck(context.Context) error { return nil }

type rowsSource struct {
	rows []models.RawRentalRecord
	err  error
}

func (s *rowsSource) Name() string { return "rows" }

func (s *rowsSource) Fingerprint(context.Context) (string, error) { return "v1", nil }

func (s *rowsSource) Read(context.Context, models.Grain) ([]models.RawRentalRecord, error) {
	return s.rows, s.err
}

func dailyRows(n int) []models.RawRentalRecord {
	rows := make([]models.RawRentalRecord, n)
	for i := range rows {
		rows[i] = models.RawRentalRecord{
			Date: "2011-01-01", SeasonCode: 1, MonthNumber: 1, WeatherCode: 1,
			Casual: i, Registered: 10, Total: i + 10,
		}
	}
	return rows
}

func newIngestion(repo repository.RentalRepository) (*IngestionService, *metrics.Collector) {
	m := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
	return NewIngestionService(repo, logging.NewNopLogger(), m), m
}

func TestIngestSource_Batches(t *testing.T) {
	repo := &memoryRepo{}
	svc, _ := newIngestion(repo)

	result, err := svc.IngestSource(context.Background(), models.DailyGrain, &rowsSource{rows: dailyRows(5)}, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalRecords)
	assert.Equal(t, 5, result.SuccessfulRecords)
	assert.Equal(t, 3, result.Batches)
	require.Len(t, repo.batches, 3)
	assert.Len(t, repo.batches[0], 2)
	assert.Len(t, repo.batches[2], 1)
}

func TestIngestSource_SkipsInvalidRows(t *testing.T) {
	rows := dailyRows(3)
	rows[1].WeatherCode = 7
	rows[2].Date = "01/03/2011"

	repo := &memoryRepo{}
	svc, m := newIngestion(repo)

	result, err := svc.IngestSource(context.Background(), models.DailyGrain, &rowsSource{rows: rows}, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessfulRecords)
	assert.Equal(t, 2, result.FailedRecords)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "row 2")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("enrichment_error")))
}

func TestIngestSource_Failures(t *testing.T) {
	svc, _ := newIngestion(&memoryRepo{})
	_, err := svc.IngestSource(context.Background(), models.DailyGrain, &rowsSource{rows: dailyRows(1)}, 0)
	assert.ErrorContains(t, err, "batch size must be positive")

	_, err = svc.IngestSource(context.Background(), models.DailyGrain, &rowsSource{err: errors.New("gone")}, 10)
	assert.ErrorContains(t, err, "failed to read rows")

	repo := &memoryRepo{failOn: 2, batchErr: errors.New("deadlock")}
	svc, m := newIngestion(repo)
	_, err = svc.IngestSource(context.Background(), models.DailyGrain, &rowsSource{rows: dailyRows(4)}, 2)
	assert.ErrorContains(t, err, "failed to insert batch 2: deadlock")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("batch_error")))
}

func TestReplaceGrain(t *testing.T) {
	repo := &memoryRepo{}
	svc, _ := newIngestion(repo)

	result, err := svc.ReplaceGrain(context.Background(), models.HourlyGrain, &rowsSource{rows: []models.RawRentalRecord{
		{Date: "2011-01-01", Hour: 4, SeasonCode: 1, MonthNumber: 1, WeatherCode: 2, Casual: 0, Registered: 1, Total: 1},
	}}, 100)
	require.NoError(t, err)
	assert.Equal(t, []models.Grain{models.HourlyGrain}, repo.deleted)
	assert.Equal(t, 1, result.SuccessfulRecords)
}
