package dataset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

// fakeSource serves fixed rows and counts reads
type fakeSource struct {
	name        string
	fingerprint string
	rows        []models.RawRentalRecord
	err         error
	reads       atomic.Int32
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Fingerprint(context.Context) (string, error) { return s.fingerprint, nil }

func (s *fakeSource) Read(context.Context, models.Grain) ([]models.RawRentalRecord, error) {
	s.reads.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func raw(date string, hour, casual, registered int) models.RawRentalRecord {
	return models.RawRentalRecord{
		Date: date, Hour: hour, SeasonCode: 1, MonthNumber: 1, WeatherCode: 1,
		Casual: casual, Registered: registered, Total: casual + registered,
	}
}

func newTestLoader(daily, hourly Source) (*Loader, *metrics.Collector) {
	m := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
	return NewLoader(daily, hourly, NewCache(), logging.NewNopLogger(), m), m
}

func fixtures() (*fakeSource, *fakeSource) {
	daily := &fakeSource{name: "day", fingerprint: "d1", rows: []models.RawRentalRecord{
		raw("2011-01-01", 0, 10, 50),
		raw("2011-01-02", 0, 20, 80),
	}}
	hourly := &fakeSource{name: "hour", fingerprint: "h1", rows: []models.RawRentalRecord{
		raw("2011-01-01", 0, 1, 5),
		raw("2011-01-01", 1, 2, 7),
	}}
	return daily, hourly
}

func TestLoader_LoadEnrichesTables(t *testing.T) {
	daily, hourly := fixtures()
	loader, _ := newTestLoader(daily, hourly)

	ds, err := loader.Load(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, ds.Daily.Len())
	require.Equal(t, 2, ds.Hourly.Len())
	assert.Equal(t, models.DailyGrain, ds.Daily.Grain)
	assert.Equal(t, "January", ds.Daily.Records[0].Month)
	assert.Equal(t, "Spring", ds.Daily.Records[0].Season)
	assert.Equal(t, "Clear/Partly Cloudy", ds.Daily.Records[0].Weather)
	assert.Equal(t, 1, ds.Hourly.Records[1].Hour)

	for _, rec := range append(ds.Daily.Records, ds.Hourly.Records...) {
		assert.Equal(t, rec.Total, rec.Casual+rec.Registered)
	}
}

func TestLoader_MemoizesUntilSourceChanges(t *testing.T) {
	daily, hourly := fixtures()
	loader, m := newTestLoader(daily, hourly)
	ctx := context.Background()

	first, err := loader.Load(ctx)
	require.NoError(t, err)
	second, err := loader.Load(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, daily.reads.Load())
	assert.EqualValues(t, 1, hourly.reads.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))

	// a new source version is re-read and replaces the old entry
	hourly.fingerprint = "h2"
	third, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.EqualValues(t, 2, hourly.reads.Load())
	assert.Equal(t, 1, loader.cache.Len())
}

func TestLoader_Invalidate(t *testing.T) {
	daily, hourly := fixtures()
	loader, _ := newTestLoader(daily, hourly)
	ctx := context.Background()

	_, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.Invalidate(ctx))

	_, err = loader.Load(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, daily.reads.Load())
}

func TestLoader_ConcurrentLoadsAgree(t *testing.T) {
	daily, hourly := fixtures()
	loader, _ := newTestLoader(daily, hourly)

	var wg sync.WaitGroup
	results := make([]*Dataset, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ds, err := loader.Load(context.Background())
			if err == nil {
				results[i] = ds
			}
		}(i)
	}
	wg.Wait()

	for _, ds := range results {
		require.NotNil(t, ds)
		assert.Equal(t, results[0].Key, ds.Key)
		assert.Equal(t, 2, ds.Daily.Len())
	}
	assert.Equal(t, 1, loader.cache.Len())
}

// blockingSource holds every Read until release is closed
type blockingSource struct {
	*fakeSource
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSource) Read(ctx context.Context, grain models.Grain) ([]models.RawRentalRecord, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.fakeSource.Read(ctx, grain)
}

func TestLoader_CanceledCallerDoesNotFailOthers(t *testing.T) {
	daily, hourly := fixtures()
	blocking := &blockingSource{fakeSource: daily, started: make(chan struct{}), release: make(chan struct{})}
	loader, _ := newTestLoader(blocking, hourly)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := loader.Load(firstCtx)
		firstErr <- err
	}()
	<-blocking.started

	type outcome struct {
		ds  *Dataset
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		ds, err := loader.Load(context.Background())
		second <- outcome{ds, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(blocking.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 2, got.ds.Daily.Len())
	assert.EqualValues(t, 1, daily.reads.Load())
	assert.Equal(t, 1, loader.cache.Len())
}

func TestLoader_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(daily, hourly *fakeSource)
		wantMsg string
	}{
		{
			name:    "source read error",
			mutate:  func(d, _ *fakeSource) { d.err = errors.New("disk gone") },
			wantMsg: "read source",
		},
		{
			name:    "out of domain weather code",
			mutate:  func(_, h *fakeSource) { h.rows[1].WeatherCode = 9 },
			wantMsg: "row 2: enrichment failed",
		},
		{
			name:    "duplicate hourly row",
			mutate:  func(_, h *fakeSource) { h.rows[1].Hour = 0 },
			wantMsg: "duplicate hourly row",
		},
		{
			name:    "no data rows",
			mutate:  func(d, _ *fakeSource) { d.rows = nil },
			wantMsg: "no data rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			daily, hourly := fixtures()
			tt.mutate(daily, hourly)
			loader, m := newTestLoader(daily, hourly)

			ds, err := loader.Load(context.Background())
			assert.Nil(t, ds)
			var loadErr *models.DataLoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, 0, loader.cache.Len())
			assert.Equal(t, 1, testutil.CollectAndCount(m.DatasetLoadErrors))
		})
	}
}

func TestLoader_KeepsInconsistentTotals(t *testing.T) {
	daily, hourly := fixtures()
	daily.rows[0].Total = 1000
	loader, _ := newTestLoader(daily, hourly)

	ds, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000, ds.Daily.Records[0].Total)
}

func TestLoader_FileSourcesEndToEnd(t *testing.T) {
	dayPath := writeFile(t, "day.csv", []byte(dayCSV))
	hourPath := writeFile(t, "hour.csv", []byte(hourCSV))
	loader, _ := newTestLoader(NewFileSource(dayPath), NewFileSource(hourPath))

	ds, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Daily.Len())
	assert.Equal(t, 3, ds.Hourly.Len())
	assert.Equal(t, "Mist/Cloudy", ds.Daily.Records[0].Weather)
}

func TestCache_Operations(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", &Dataset{Key: "a"})
	c.Put("b", &Dataset{Key: "b"})
	ds, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", ds.Key)

	assert.True(t, c.Invalidate("a"))
	assert.False(t, c.Invalidate("a"))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 0, c.Len())
}
