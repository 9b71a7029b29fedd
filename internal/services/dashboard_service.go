package services

import (
	"context"
	"time"

	"bikeshare-dashboard/internal/aggregate"
	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/filter"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

// DatasetLoader provides the memoized enriched tables
type DatasetLoader interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
	Invalidate(ctx context.Context) int
}

// Query is one filter interaction. Dates holds the raw values of the date
// picker and must contain exactly a start and an end.
type Query struct {
	Dates    []time.Time
	Seasons  []string
	Weathers []string
}

// Selection echoes the validated filter back to the caller
type Selection struct {
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Seasons  []string `json:"seasons"`
	Weathers []string `json:"weathers"`
}

// Dashboard is the data contract consumed by the presentation layer
type Dashboard struct {
	Selection  Selection `json:"selection"`
	DailyRows  int       `json:"daily_rows"`
	HourlyRows int       `json:"hourly_rows"`

	Riders aggregate.Riders `json:"riders"`

	DailyTrend   []aggregate.Point `json:"daily_trend"`
	MonthlyMean  []aggregate.Point `json:"monthly_mean"`
	HourlyMean   []aggregate.Point `json:"hourly_mean"`
	SeasonalMean []aggregate.Point `json:"seasonal_mean"`

	RegisteredByWeather []aggregate.Point  `json:"registered_by_weather"`
	CasualByWeather     []aggregate.Point  `json:"casual_by_weather"`
	HourlyByWeather     []aggregate.Series `json:"hourly_by_weather"`

	DailyCorrelation  aggregate.Matrix `json:"daily_correlation"`
	HourlyCorrelation aggregate.Matrix `json:"hourly_correlation"`
}

// Options describes the choices offered by the filter controls
type Options struct {
	MinDate          string   `json:"min_date"`
	MaxDate          string   `json:"max_date"`
	Seasons          []string `json:"seasons"`
	SuggestedSeasons []string `json:"suggested_seasons"`
	Weathers         []string `json:"weathers"`
}

// DashboardService runs load -> validate -> filter -> aggregate for each query
type DashboardService struct {
	loader  DatasetLoader
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(loader DatasetLoader, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *DashboardService {
	return &DashboardService{
		loader:  loader,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Options returns the observed date bounds and the label choices
func (s *DashboardService) Options(ctx context.Context) (*Options, error) {
	ds, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	min, max, ok := ds.Daily.DateBounds()
	if !ok {
		return nil, &models.DataLoadError{Source: "daily", Message: "no observed dates"}
	}

	return &Options{
		MinDate:          min.Format(models.DateLayout),
		MaxDate:          max.Format(models.DateLayout),
		Seasons:          models.SeasonOrder(),
		SuggestedSeasons: filter.SuggestSeasons(min, max),
		Weathers:         models.WeatherOrder(),
	}, nil
}

// Build filters both tables with the query and aggregates the result.
// An empty filter result is reported as *models.EmptyResultError.
func (s *DashboardService) Build(ctx context.Context, q Query) (*Dashboard, error) {
	dateRange, err := filter.ParseDateSelection(q.Dates)
	if err != nil {
		return nil, err
	}

	ds, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	criteria := filter.Criteria{Range: dateRange, Seasons: q.Seasons, Weathers: q.Weathers}
	if err := criteria.Validate(ds.Daily); err != nil {
		return nil, err
	}

	daily := criteria.Apply(ds.Daily)
	hourly := criteria.Apply(ds.Hourly)
	s.metrics.RecordFilterResult(string(models.DailyGrain), daily.Len())
	s.metrics.RecordFilterResult(string(models.HourlyGrain), hourly.Len())

	fields := logging.Fields{
		"start":       dateRange.Start.Format(models.DateLayout),
		"end":         dateRange.End.Format(models.DateLayout),
		"seasons":     q.Seasons,
		"weathers":    q.Weathers,
		"daily_rows":  daily.Len(),
		"hourly_rows": hourly.Len(),
	}

	for _, t := range []*models.Table{daily, hourly} {
		if t.Empty() {
			s.logger.Info(ctx, "[FILTER_EMPTY] No records match the selected filters", fields)
			return nil, &models.EmptyResultError{Grain: t.Grain}
		}
	}

	timer := s.metrics.NewTimer(s.metrics.AggregationDuration)
	dash := &Dashboard{
		Selection: Selection{
			Start:    fields["start"].(string),
			End:      fields["end"].(string),
			Seasons:  q.Seasons,
			Weathers: q.Weathers,
		},
		DailyRows:  daily.Len(),
		HourlyRows: hourly.Len(),
		Riders:     aggregate.RiderTotals(daily),

		DailyTrend:   aggregate.DailyTotals(daily),
		MonthlyMean:  aggregate.GroupMean(daily, aggregate.ByMonth, aggregate.Total),
		HourlyMean:   aggregate.GroupMean(hourly, aggregate.ByHour, aggregate.Total),
		SeasonalMean: aggregate.GroupMean(daily, aggregate.BySeason, aggregate.Total),

		RegisteredByWeather: aggregate.GroupMean(daily, aggregate.ByWeather, aggregate.Registered),
		CasualByWeather:     aggregate.GroupMean(daily, aggregate.ByWeather, aggregate.Casual),
		HourlyByWeather:     aggregate.MeanByWeatherHourly(hourly),

		DailyCorrelation:  aggregate.Correlation(daily, aggregate.WeatherColumns),
		HourlyCorrelation: aggregate.Correlation(hourly, aggregate.WeatherColumns),
	}
	fields["duration_ms"] = timer.ObserveDuration().Milliseconds()

	s.logger.Debug(ctx, "[DASHBOARD_BUILT] Dashboard aggregated", fields)
	return dash, nil
}

// Invalidate drops the memoized dataset
func (s *DashboardService) Invalidate(ctx context.Context) int {
	return s.loader.Invalidate(ctx)
}
