// Package dataset reads the daily and hourly rental tables from their sources,
// enriches them with code labels and memoizes the result per source version.
package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"bikeshare-dashboard/internal/models"
)

// Source yields the raw rows of one table.
//
// Fingerprint must change whenever the content Read returns would change;
// the loader keys its cache on it.
type Source interface {
	Name() string
	Fingerprint(ctx context.Context) (string, error)
	Read(ctx context.Context, grain models.Grain) ([]models.RawRentalRecord, error)
}

// requiredColumns lists the compatibility contract with the input files
var requiredColumns = []string{
	"dteday", "season", "mnth", "weathersit",
	"temp", "atemp", "hum", "windspeed",
	"casual", "registered", "cnt",
}

// RequiredColumns returns the columns a source of the given grain must carry
func RequiredColumns(grain models.Grain) []string {
	cols := append([]string(nil), requiredColumns...)
	if grain == models.HourlyGrain {
		cols = append(cols, "hr")
	}
	return cols
}

// columnIndex maps normalized header names to positions.
// Columns outside the contract (instant, yr, holiday, ...) are ignored.
type columnIndex map[string]int

func bindHeader(source string, grain models.Grain, header []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}

	var missing *multierror.Error
	for _, col := range RequiredColumns(grain) {
		if _, ok := idx[col]; !ok {
			missing = multierror.Append(missing, fmt.Errorf("missing column %q", col))
		}
	}
	if err := missing.ErrorOrNil(); err != nil {
		return nil, &models.DataLoadError{Source: source, Message: "header validation failed", Err: err}
	}
	return idx, nil
}

// parseRows converts tabular string rows (header excluded) into raw records.
// lines holds the source line of each row.
func parseRows(source string, grain models.Grain, header []string, rows [][]string, lines []int) ([]models.RawRentalRecord, error) {
	idx, err := bindHeader(source, grain, header)
	if err != nil {
		return nil, err
	}

	records := make([]models.RawRentalRecord, 0, len(rows))
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		rec, err := idx.record(grain, row)
		if err != nil {
			return nil, &models.DataLoadError{Source: source, Row: lines[i], Message: "malformed row", Err: err}
		}
		rec.SourceLine = lines[i]
		records = append(records, rec)
	}
	return records, nil
}

func (idx columnIndex) record(grain models.Grain, row []string) (models.RawRentalRecord, error) {
	p := rowParser{idx: idx, row: row}
	rec := models.RawRentalRecord{
		Date:        p.text("dteday"),
		SeasonCode:  p.integer("season"),
		MonthNumber: p.integer("mnth"),
		WeatherCode: p.integer("weathersit"),
		Temp:        p.real("temp"),
		ATemp:       p.real("atemp"),
		Humidity:    p.real("hum"),
		WindSpeed:   p.real("windspeed"),
		Casual:      p.integer("casual"),
		Registered:  p.integer("registered"),
		Total:       p.integer("cnt"),
	}
	if grain == models.HourlyGrain {
		rec.Hour = p.integer("hr")
	}
	return rec, p.err
}

// rowParser keeps the first conversion error so a record reads top to bottom
type rowParser struct {
	idx columnIndex
	row []string
	err error
}

func (p *rowParser) text(col string) string {
	i := p.idx[col]
	if i >= len(p.row) {
		return ""
	}
	return strings.TrimSpace(p.row[i])
}

func (p *rowParser) integer(col string) int {
	s := p.text(col)
	v, err := strconv.Atoi(s)
	if err != nil {
		// spreadsheets may store integers as 3.0
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			p.fail(col, s)
			return 0
		}
		v = int(f)
	}
	return v
}

func (p *rowParser) real(col string) float64 {
	s := p.text(col)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(col, s)
		return 0
	}
	return v
}

func (p *rowParser) fail(col, value string) {
	if p.err == nil {
		p.err = &models.ValidationError{
			Field:   col,
			Value:   value,
			Message: fmt.Sprintf("column %s: cannot parse %q", col, value),
		}
	}
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
