package models

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the calendar-date format of the dteday column
const DateLayout = "2006-01-02"

// Grain is the row-level time resolution of a table
type Grain string

const (
	DailyGrain  Grain = "daily"
	HourlyGrain Grain = "hourly"
)

// ParseGrain validates a grain name
func ParseGrain(s string) (Grain, error) {
	switch Grain(s) {
	case DailyGrain, HourlyGrain:
		return Grain(s), nil
	default:
		return "", &ValidationError{Field: "grain", Value: s, Message: "grain must be daily or hourly"}
	}
}

// RentalRecord is one enriched row of the daily or hourly table.
// Hour is always 0 for daily rows.
type RentalRecord struct {
	Date        time.Time `json:"date"`
	Hour        int       `json:"hour"`
	SeasonCode  int       `json:"season_code"`
	Season      string    `json:"season"`
	WeatherCode int       `json:"weather_code"`
	Weather     string    `json:"weather"`
	MonthNumber int       `json:"month_number"`
	Month       string    `json:"month"`
	Temp        float64   `json:"temp"`
	ATemp       float64   `json:"atemp"`
	Humidity    float64   `json:"hum"`
	WindSpeed   float64   `json:"windspeed"`
	Casual      int       `json:"casual"`
	Registered  int       `json:"registered"`
	Total       int       `json:"cnt"`
}

// RidersConsistent reports whether casual + registered equals the total count
func (r *RentalRecord) RidersConsistent() bool {
	return r.Casual+r.Registered == r.Total
}

// Table is an immutable, ordered set of records of a single grain.
// Filtering produces new tables; records are never modified in place.
type Table struct {
	Grain   Grain
	Records []RentalRecord
}

// NewTable creates a table over the given records
func NewTable(grain Grain, records []RentalRecord) *Table {
	return &Table{Grain: grain, Records: records}
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Rows returns the records, nil for a nil table
func (t *Table) Rows() []RentalRecord {
	if t == nil {
		return nil
	}
	return t.Records
}

// Empty reports whether the table has no rows
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// DateBounds returns the earliest and latest record dates.
// ok is false for an empty table.
func (t *Table) DateBounds() (min, max time.Time, ok bool) {
	if t.Empty() {
		return time.Time{}, time.Time{}, false
	}
	min, max = t.Records[0].Date, t.Records[0].Date
	for i := 1; i < len(t.Records); i++ {
		d := t.Records[i].Date
		if d.Before(min) {
			min = d
		}
		if d.After(max) {
			max = d
		}
	}
	return min, max, true
}

// RawRentalRecord is a row as read from a source, before enrichment.
// The db tags match the rental_records table.
type RawRentalRecord struct {
	Date        string  `db:"dteday"`
	Hour        int     `db:"hr"`
	SeasonCode  int     `db:"season"`
	MonthNumber int     `db:"mnth"`
	WeatherCode int     `db:"weathersit"`
	Temp        float64 `db:"temp"`
	ATemp       float64 `db:"atemp"`
	Humidity    float64 `db:"hum"`
	WindSpeed   float64 `db:"windspeed"`
	Casual      int     `db:"casual"`
	Registered  int     `db:"registered"`
	Total       int     `db:"cnt"`

	// SourceLine is the 1-based line (sheet row for workbooks) the record
	// was read from, 0 when the source has no line positions
	SourceLine int `db:"-"`
}

// RowNumber reports the record's position for error messages: its source
// line when known, otherwise index+1 within the slice it came from
func (r *RawRentalRecord) RowNumber(index int) int {
	if r.SourceLine > 0 {
		return r.SourceLine
	}
	return index + 1
}

// Enrich parses the date and derives season, weather and month labels.
// Every other column is carried over unchanged; counts are not recomputed.
func (r *RawRentalRecord) Enrich(grain Grain) (*RentalRecord, error) {
	date, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return nil, &ValidationError{
			Field:   "dteday",
			Value:   r.Date,
			Message: "invalid date format, expected YYYY-MM-DD",
		}
	}

	hour := 0
	if grain == HourlyGrain {
		if r.Hour < 0 || r.Hour > 23 {
			return nil, &ValidationError{
				Field:   "hr",
				Value:   strconv.Itoa(r.Hour),
				Message: fmt.Sprintf("hour %d outside 0-23", r.Hour),
			}
		}
		hour = r.Hour
	}

	season, err := SeasonLabel(r.SeasonCode)
	if err != nil {
		return nil, err
	}
	weather, err := WeatherLabel(r.WeatherCode)
	if err != nil {
		return nil, err
	}
	month, err := MonthLabel(r.MonthNumber)
	if err != nil {
		return nil, err
	}

	if r.Casual < 0 || r.Registered < 0 || r.Total < 0 {
		return nil, &ValidationError{
			Field:   "cnt",
			Value:   fmt.Sprintf("%d/%d/%d", r.Casual, r.Registered, r.Total),
			Message: "rider counts must be non-negative",
		}
	}

	return &RentalRecord{
		Date:        date,
		Hour:        hour,
		SeasonCode:  r.SeasonCode,
		Season:      season,
		WeatherCode: r.WeatherCode,
		Weather:     weather,
		MonthNumber: r.MonthNumber,
		Month:       month,
		Temp:        r.Temp,
		ATemp:       r.ATemp,
		Humidity:    r.Humidity,
		WindSpeed:   r.WindSpeed,
		Casual:      r.Casual,
		Registered:  r.Registered,
		Total:       r.Total,
	}, nil
}
