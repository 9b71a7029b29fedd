package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/pkg/database"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

var rawColumns = []string{"dteday", "hr", "season", "mnth", "weathersit", "temp", "atemp", "hum", "windspeed", "casual", "registered", "cnt"}

func newTestRepo(t *testing.T) (RentalRepository, sqlmock.Sqlmock, *metrics.Collector) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	m := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
	logger := logging.NewNopLogger()
	db := database.NewPostgresDBFromConn(sqlx.NewDb(conn, "postgres"), nil, logger, m)
	return NewRentalRepository(db, logger, m), mock, m
}

func sampleRecords() []models.RawRentalRecord {
	return []models.RawRentalRecord{
		{Date: "2011-01-01", Hour: 0, SeasonCode: 1, MonthNumber: 1, WeatherCode: 1, Temp: 0.24, ATemp: 0.2879, Humidity: 0.81, Casual: 3, Registered: 13, Total: 16},
		{Date: "2011-01-01", Hour: 1, SeasonCode: 1, MonthNumber: 1, WeatherCode: 1, Temp: 0.22, ATemp: 0.2727, Humidity: 0.8, Casual: 8, Registered: 32, Total: 40},
	}
}

func TestCreateRecordsBatch(t *testing.T) {
	repo, mock, m := newTestRepo(t)
	records := sampleRecords()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO rental_records")
	for _, rec := range records {
		prep.ExpectExec().
			WithArgs("hourly", rec.Date, rec.Hour, 1, 1, 1, rec.Temp, rec.ATemp, rec.Humidity, rec.WindSpeed, rec.Casual, rec.Registered, rec.Total, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.CreateRecordsBatch(context.Background(), models.HourlyGrain, records))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestionRecordsTotal))
}

func TestCreateRecordsBatch_DailyHourIsZero(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	rec := sampleRecords()[1]

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO rental_records").ExpectExec().
		WithArgs("daily", rec.Date, 0, 1, 1, 1, rec.Temp, rec.ATemp, rec.Humidity, rec.WindSpeed, rec.Casual, rec.Registered, rec.Total, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateRecordsBatch(context.Background(), models.DailyGrain, []models.RawRentalRecord{rec}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRecordsBatch_RollsBackOnFailure(t *testing.T) {
	repo, mock, m := newTestRepo(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO rental_records").ExpectExec().WillReturnError(errors.New("constraint violated"))
	mock.ExpectRollback()

	err := repo.CreateRecordsBatch(context.Background(), models.HourlyGrain, sampleRecords())
	assert.ErrorContains(t, err, "failed to insert hourly record 2011-01-01 hour 0")
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.IngestionRecordsTotal))
}

func TestCreateRecordsBatch_Empty(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	require.NoError(t, repo.CreateRecordsBatch(context.Background(), models.DailyGrain, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRaw(t *testing.T) {
	repo, mock, _ := newTestRepo(t)

	rows := sqlmock.NewRows(rawColumns).
		AddRow("2011-01-01", 0, 1, 1, 2, 0.344167, 0.363625, 0.805833, 0.160446, 331, 654, 985).
		AddRow("2011-01-02", 0, 1, 1, 2, 0.363478, 0.353739, 0.696087, 0.248539, 131, 670, 801)
	mock.ExpectQuery("SELECT to_char\\(dteday").WithArgs("daily").WillReturnRows(rows)

	records, err := repo.ListRaw(context.Background(), models.DailyGrain)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2011-01-02", records[1].Date)
	assert.Equal(t, 2, records[0].WeatherCode)
	assert.Equal(t, 985, records[0].Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVersion_Fingerprint(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	loaded := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").WithArgs("hourly").
		WillReturnRows(sqlmock.NewRows([]string{"row_count", "loaded_at"}).AddRow(int64(17379), loaded))

	v, err := repo.Version(context.Background(), models.HourlyGrain)
	require.NoError(t, err)
	assert.EqualValues(t, 17379, v.Rows)
	assert.True(t, v.LoadedAt.Valid)

	same := &TableVersion{Rows: 17379, LoadedAt: sql.NullTime{Time: loaded, Valid: true}}
	assert.Equal(t, same.Fingerprint(), v.Fingerprint())

	reloaded := &TableVersion{Rows: 17379, LoadedAt: sql.NullTime{Time: loaded.Add(time.Second), Valid: true}}
	assert.NotEqual(t, v.Fingerprint(), reloaded.Fingerprint())
	assert.NotEqual(t, v.Fingerprint(), (&TableVersion{}).Fingerprint())
}

func TestDeleteGrain(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectExec("DELETE FROM rental_records").WithArgs("daily").WillReturnResult(sqlmock.NewResult(0, 731))

	n, err := repo.DeleteGrain(context.Background(), models.DailyGrain)
	require.NoError(t, err)
	assert.EqualValues(t, 731, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableSource(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	src := NewTableSource(repo, models.HourlyGrain)
	ctx := context.Background()

	assert.Equal(t, "postgres:rental_records/hourly", src.Name())

	mock.ExpectQuery("SELECT COUNT").WithArgs("hourly").
		WillReturnRows(sqlmock.NewRows([]string{"row_count", "loaded_at"}).AddRow(int64(2), time.Now()))
	fp, err := src.Fingerprint(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, fp)

	mock.ExpectQuery("SELECT to_char").WithArgs("hourly").
		WillReturnRows(sqlmock.NewRows(rawColumns).AddRow("2011-01-01", 5, 1, 1, 1, 0.2, 0.2, 0.5, 0.1, 1, 2, 3))
	records, err := src.Read(ctx, models.HourlyGrain)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 5, records[0].Hour)

	_, err = src.Read(ctx, models.DailyGrain)
	var loadErr *models.DataLoadError
	require.ErrorAs(t, err, &loadErr)

	mock.ExpectQuery("SELECT to_char").WithArgs("hourly").WillReturnError(errors.New("relation does not exist"))
	_, err = src.Read(ctx, models.HourlyGrain)
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "query records", loadErr.Message)

	assert.NoError(t, mock.ExpectationsWereMet())
}
