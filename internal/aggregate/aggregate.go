// Package aggregate reduces filtered rental tables into the series a
// dashboard renders: group means in a fixed display order, daily totals,
// rider splits and correlations of the weather readings.
package aggregate

import (
	"sort"
	"strconv"
	"time"

	"bikeshare-dashboard/internal/models"
)

// Point is one group of an aggregated series
type Point struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// Key partitions records. Order lists every possible key in display order;
// keys outside Order are never emitted.
type Key struct {
	Name  string
	Of    func(rec *models.RentalRecord) string
	Order []string
}

// Measure selects the numeric column being reduced
type Measure struct {
	Name string
	Of   func(rec *models.RentalRecord) float64
}

var (
	ByMonth = Key{
		Name:  "month",
		Of:    func(rec *models.RentalRecord) string { return rec.Month },
		Order: models.MonthOrder(),
	}
	BySeason = Key{
		Name:  "season",
		Of:    func(rec *models.RentalRecord) string { return rec.Season },
		Order: models.SeasonOrder(),
	}
	ByWeather = Key{
		Name:  "weather",
		Of:    func(rec *models.RentalRecord) string { return rec.Weather },
		Order: models.WeatherOrder(),
	}
	ByHour = Key{
		Name:  "hour",
		Of:    func(rec *models.RentalRecord) string { return strconv.Itoa(rec.Hour) },
		Order: models.HourOrder(),
	}
)

var (
	Total      = Measure{Name: "cnt", Of: func(rec *models.RentalRecord) float64 { return float64(rec.Total) }}
	Casual     = Measure{Name: "casual", Of: func(rec *models.RentalRecord) float64 { return float64(rec.Casual) }}
	Registered = Measure{Name: "registered", Of: func(rec *models.RentalRecord) float64 { return float64(rec.Registered) }}
)

type accumulator struct {
	sum   float64
	count int
}

// GroupMean partitions the table by key and averages measure per group.
// Groups appear in key.Order; groups without rows are absent.
func GroupMean(table *models.Table, key Key, measure Measure) []Point {
	groups := make(map[string]*accumulator, len(key.Order))
	records := table.Rows()
	for i := range records {
		rec := &records[i]
		k := key.Of(rec)
		acc, ok := groups[k]
		if !ok {
			acc = &accumulator{}
			groups[k] = acc
		}
		acc.sum += measure.Of(rec)
		acc.count++
	}

	points := make([]Point, 0, len(groups))
	for _, k := range key.Order {
		acc, ok := groups[k]
		if !ok {
			continue
		}
		points = append(points, Point{Key: k, Value: acc.sum / float64(acc.count), Count: acc.count})
	}
	return points
}

// DailyTotals sums the total count per calendar date in chronological order
func DailyTotals(table *models.Table) []Point {
	groups := make(map[time.Time]*accumulator)
	records := table.Rows()
	for i := range records {
		rec := &records[i]
		acc, ok := groups[rec.Date]
		if !ok {
			acc = &accumulator{}
			groups[rec.Date] = acc
		}
		acc.sum += float64(rec.Total)
		acc.count++
	}

	dates := make([]time.Time, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	points := make([]Point, len(dates))
	for i, d := range dates {
		acc := groups[d]
		points[i] = Point{Key: d.Format(models.DateLayout), Value: acc.sum, Count: acc.count}
	}
	return points
}

// Riders summarizes the casual/registered split of a table
type Riders struct {
	Rows            int     `json:"rows"`
	TotalRegistered int     `json:"total_registered"`
	TotalCasual     int     `json:"total_casual"`
	MeanRegistered  float64 `json:"mean_registered"`
	MeanCasual      float64 `json:"mean_casual"`
}

// RiderTotals sums and averages registered and casual counts
func RiderTotals(table *models.Table) Riders {
	r := Riders{Rows: table.Len()}
	for _, rec := range table.Rows() {
		r.TotalRegistered += rec.Registered
		r.TotalCasual += rec.Casual
	}
	if r.Rows > 0 {
		r.MeanRegistered = float64(r.TotalRegistered) / float64(r.Rows)
		r.MeanCasual = float64(r.TotalCasual) / float64(r.Rows)
	}
	return r
}

// Series is a named aggregated series
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// MeanByWeatherHourly returns, per weather label present in the table, the
// mean total count by hour of day. Labels follow the severity order.
func MeanByWeatherHourly(table *models.Table) []Series {
	byWeather := make(map[string][]models.RentalRecord)
	for _, rec := range table.Rows() {
		byWeather[rec.Weather] = append(byWeather[rec.Weather], rec)
	}

	var series []Series
	for _, label := range models.WeatherOrder() {
		rows, ok := byWeather[label]
		if !ok {
			continue
		}
		series = append(series, Series{
			Name:   label,
			Points: GroupMean(models.NewTable(table.Grain, rows), ByHour, Total),
		})
	}
	return series
}
