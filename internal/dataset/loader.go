package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

// Loader reads and enriches the daily and hourly sources, memoizing the
// result in a Cache keyed on both source fingerprints.
type Loader struct {
	daily   Source
	hourly  Source
	cache   *Cache
	group   singleflight.Group
	logger  *logging.StructuredLogger
	metrics *metrics.Collector

	mu      sync.Mutex
	lastKey string
}

// NewLoader creates a loader over the two sources
func NewLoader(daily, hourly Source, cache *Cache, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Loader {
	return &Loader{
		daily:   daily,
		hourly:  hourly,
		cache:   cache,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Load returns the enriched dataset for the current source versions.
// Unchanged sources are served from the cache without re-reading.
// Any read or enrichment failure is a *models.DataLoadError. If ctx ends
// first, Load returns ctx.Err() while the read carries on for other callers.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	key, err := l.key(ctx)
	if err != nil {
		return nil, err
	}

	if ds, ok := l.cache.Get(key); ok {
		l.metrics.RecordCacheLookup(true)
		return ds, nil
	}
	l.metrics.RecordCacheLookup(false)

	// Concurrent misses on the same key share one read. The shared read
	// outlives any single caller; a caller that gives up only stops waiting.
	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (interface{}, error) {
		ds, err := l.read(shared, key)
		if err != nil {
			return nil, err
		}
		l.store(shared, ds)
		return ds, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dataset), nil
	}
}

// Invalidate drops every cached dataset so the next Load re-reads the sources
func (l *Loader) Invalidate(ctx context.Context) int {
	n := l.cache.Purge()
	l.mu.Lock()
	l.lastKey = ""
	l.mu.Unlock()

	l.logger.Info(ctx, "[DATASET_INVALIDATE] Dataset cache purged", logging.Fields{
		"entries": n,
	})
	return n
}

func (l *Loader) key(ctx context.Context) (string, error) {
	dailyFP, err := l.daily.Fingerprint(ctx)
	if err != nil {
		return "", asLoadError(l.daily.Name(), "fingerprint source", err)
	}
	hourlyFP, err := l.hourly.Fingerprint(ctx)
	if err != nil {
		return "", asLoadError(l.hourly.Name(), "fingerprint source", err)
	}
	return dailyFP + ":" + hourlyFP, nil
}

// store caches ds and evicts the version it replaces
func (l *Loader) store(ctx context.Context, ds *Dataset) {
	l.cache.Put(ds.Key, ds)

	l.mu.Lock()
	previous := l.lastKey
	l.lastKey = ds.Key
	l.mu.Unlock()

	if previous != "" && previous != ds.Key && l.cache.Invalidate(previous) {
		l.logger.Info(ctx, "[DATASET_EVICT] Replaced stale dataset version", logging.Fields{
			"previous_key": previous,
			"key":          ds.Key,
		})
	}
}

func (l *Loader) read(ctx context.Context, key string) (*Dataset, error) {
	timer := l.metrics.NewTimer(l.metrics.DatasetLoadDuration)

	l.logger.Info(ctx, "[DATASET_LOAD_START] Reading dataset sources", logging.Fields{
		"daily_source":  l.daily.Name(),
		"hourly_source": l.hourly.Name(),
		"key":           key,
	})

	daily, err := l.readTable(ctx, models.DailyGrain, l.daily)
	if err != nil {
		return nil, err
	}
	hourly, err := l.readTable(ctx, models.HourlyGrain, l.hourly)
	if err != nil {
		return nil, err
	}

	duration := timer.ObserveDuration()
	l.metrics.DatasetRows.WithLabelValues(string(models.DailyGrain)).Set(float64(daily.Len()))
	l.metrics.DatasetRows.WithLabelValues(string(models.HourlyGrain)).Set(float64(hourly.Len()))

	l.logger.Info(ctx, "[DATASET_LOAD_COMPLETE] Dataset enriched", logging.Fields{
		"daily_rows":  daily.Len(),
		"hourly_rows": hourly.Len(),
		"duration_ms": duration.Milliseconds(),
		"key":         key,
	})

	return &Dataset{
		Key:      key,
		Daily:    daily,
		Hourly:   hourly,
		LoadedAt: time.Now().UTC(),
	}, nil
}

func (l *Loader) readTable(ctx context.Context, grain models.Grain, src Source) (*models.Table, error) {
	l.metrics.DatasetLoadsTotal.WithLabelValues(string(grain)).Inc()

	table, err := l.enrichTable(ctx, grain, src)
	if err != nil {
		l.metrics.DatasetLoadErrors.WithLabelValues(string(grain)).Inc()
		l.logger.Error(ctx, "[DATASET_LOAD_ERROR] Failed to load source", logging.Fields{
			"grain":  grain,
			"source": src.Name(),
		}, err)
		return nil, err
	}
	return table, nil
}

func (l *Loader) enrichTable(ctx context.Context, grain models.Grain, src Source) (*models.Table, error) {
	raws, err := src.Read(ctx, grain)
	if err != nil {
		return nil, asLoadError(src.Name(), "read source", err)
	}

	type rowKey struct {
		date int64
		hour int
	}
	seen := make(map[rowKey]int, len(raws))
	records := make([]models.RentalRecord, 0, len(raws))
	inconsistent := 0

	for i := range raws {
		row := raws[i].RowNumber(i)
		rec, err := raws[i].Enrich(grain)
		if err != nil {
			return nil, &models.DataLoadError{Source: src.Name(), Row: row, Message: "enrichment failed", Err: err}
		}

		k := rowKey{date: rec.Date.Unix(), hour: rec.Hour}
		if first, dup := seen[k]; dup {
			return nil, &models.DataLoadError{
				Source:  src.Name(),
				Row:     row,
				Message: fmt.Sprintf("duplicate %s row for %s hour %d (first at row %d)", grain, rec.Date.Format(models.DateLayout), rec.Hour, first),
			}
		}
		seen[k] = row

		if !rec.RidersConsistent() {
			inconsistent++
		}
		records = append(records, *rec)
	}

	if inconsistent > 0 {
		l.logger.Warn(ctx, "[DATASET_INCONSISTENT_TOTALS] casual + registered differs from cnt", logging.Fields{
			"grain":  grain,
			"source": src.Name(),
			"rows":   inconsistent,
		})
	}
	if len(records) == 0 {
		return nil, &models.DataLoadError{Source: src.Name(), Message: "source has no data rows"}
	}

	return models.NewTable(grain, records), nil
}

func asLoadError(source, message string, err error) error {
	var loadErr *models.DataLoadError
	if errors.As(err, &loadErr) {
		return err
	}
	return &models.DataLoadError{Source: source, Message: message, Err: err}
}
