package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/filter"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/internal/services"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

func main() {
	dailyPath := flag.String("daily", "data/day.csv", "Daily rental file")
	hourlyPath := flag.String("hourly", "data/hour.csv", "Hourly rental file")
	start := flag.String("start", "", "First day of the range (YYYY-MM-DD), defaults to the first observed day")
	end := flag.String("end", "", "Last day of the range (YYYY-MM-DD), defaults to the last observed day")
	seasons := flag.String("season", "", "Comma-separated season labels, defaults to the seasons of the range")
	weathers := flag.String("weather", "", "Comma-separated weather labels, defaults to every label")
	verbose := flag.Bool("v", false, "Log loader activity to stderr")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	level := logging.WarnLevel
	if *verbose {
		level = logging.DebugLevel
	}
	logger := logging.NewStructuredLogger("bikeshare-report", "1.0.0", level)
	logger.SetOutput(os.Stderr)

	// Offline run; nothing scrapes these
	metricsCollector := metrics.NewCollectorWithRegistry("bikeshare_report", prometheus.NewRegistry())

	loader := dataset.NewLoader(
		dataset.NewFileSource(*dailyPath),
		dataset.NewFileSource(*hourlyPath),
		dataset.NewCache(), logger, metricsCollector,
	)
	service := services.NewDashboardService(loader, logger, metricsCollector)

	ctx := context.Background()
	opts, err := service.Options(ctx)
	if err != nil {
		fail(err)
	}

	q, err := buildQuery(opts, *start, *end)
	if err != nil {
		fail(err)
	}
	if set["season"] {
		q.Seasons = splitLabels(*seasons)
	} else {
		q.Seasons = filter.SuggestSeasons(q.Dates[0], q.Dates[1])
	}
	if set["weather"] {
		q.Weathers = splitLabels(*weathers)
	} else {
		q.Weathers = models.WeatherOrder()
	}

	dash, err := service.Build(ctx, q)
	if err != nil {
		fail(err)
	}

	if err := render(os.Stdout, dash); err != nil {
		fail(err)
	}
}

// buildQuery fills missing range ends from the observed bounds
func buildQuery(opts *services.Options, start, end string) (services.Query, error) {
	if start == "" {
		start = opts.MinDate
	}
	if end == "" {
		end = opts.MaxDate
	}

	var dates []time.Time
	for _, s := range []string{start, end} {
		d, err := time.Parse(models.DateLayout, s)
		if err != nil {
			return services.Query{}, &models.ValidationError{
				Field:   "date",
				Value:   s,
				Message: "invalid date format, expected YYYY-MM-DD",
			}
		}
		dates = append(dates, d)
	}
	return services.Query{Dates: dates}, nil
}

func splitLabels(s string) []string {
	var labels []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			labels = append(labels, part)
		}
	}
	return labels
}

func fail(err error) {
	var emptyErr *models.EmptyResultError
	if errors.As(err, &emptyErr) {
		fmt.Fprintln(os.Stderr, "No data matches the selected filters. Widen the date range or select more seasons and weather conditions.")
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "Report failed: %v\n", err)
	os.Exit(1)
}
