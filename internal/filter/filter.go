// Package filter selects the rows of a rental table that fall within a date
// range and belong to accepted season and weather labels.
package filter

import (
	"fmt"
	"time"

	"bikeshare-dashboard/internal/models"
)

// Predicate decides whether a record is kept
type Predicate func(rec *models.RentalRecord) bool

// DateBetween keeps records dated within [start, end], inclusive on both ends.
// Only the calendar day of each bound is compared.
func DateBetween(start, end time.Time) Predicate {
	from, to := day(start), day(end)
	return func(rec *models.RentalRecord) bool {
		d := day(rec.Date)
		return !d.Before(from) && !d.After(to)
	}
}

// SeasonIn keeps records whose season label is accepted.
// An empty set accepts nothing.
func SeasonIn(labels []string) Predicate {
	set := toSet(labels)
	return func(rec *models.RentalRecord) bool {
		return set[rec.Season]
	}
}

// WeatherIn keeps records whose weather label is accepted.
// An empty set accepts nothing.
func WeatherIn(labels []string) Predicate {
	set := toSet(labels)
	return func(rec *models.RentalRecord) bool {
		return set[rec.Weather]
	}
}

// And keeps records accepted by every predicate
func And(preds ...Predicate) Predicate {
	return func(rec *models.RentalRecord) bool {
		for _, p := range preds {
			if !p(rec) {
				return false
			}
		}
		return true
	}
}

// Apply scans the table once and returns a new table of the kept rows in
// their original order. The input table is not modified.
func Apply(table *models.Table, pred Predicate) *models.Table {
	if table == nil {
		return nil
	}
	kept := make([]models.RentalRecord, 0, len(table.Records))
	for i := range table.Records {
		if pred(&table.Records[i]) {
			kept = append(kept, table.Records[i])
		}
	}
	return models.NewTable(table.Grain, kept)
}

// DateRange is a validated, inclusive calendar-day interval
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange checks that start is not after end
func NewDateRange(start, end time.Time) (DateRange, error) {
	start, end = day(start), day(end)
	if start.After(end) {
		return DateRange{}, &models.InvalidRangeError{
			Start:   start,
			End:     end,
			Message: fmt.Sprintf("start %s is after end %s", start.Format(models.DateLayout), end.Format(models.DateLayout)),
		}
	}
	return DateRange{Start: start, End: end}, nil
}

// ParseDateSelection turns the values of a two-date picker into a range.
// A picker that has only its start chosen (or anything other than two
// values) is rejected.
func ParseDateSelection(values []time.Time) (DateRange, error) {
	if len(values) != 2 {
		return DateRange{}, &models.InvalidRangeError{
			Message: fmt.Sprintf("expected a start and an end date, got %d value(s)", len(values)),
		}
	}
	return NewDateRange(values[0], values[1])
}

// Within checks that the range lies inside [min, max]
func (r DateRange) Within(min, max time.Time) error {
	min, max = day(min), day(max)
	if r.Start.Before(min) || r.End.After(max) {
		return &models.InvalidRangeError{
			Start: r.Start,
			End:   r.End,
			Message: fmt.Sprintf("%s to %s is outside the observed range %s to %s",
				r.Start.Format(models.DateLayout), r.End.Format(models.DateLayout),
				min.Format(models.DateLayout), max.Format(models.DateLayout)),
		}
	}
	return nil
}

// Criteria is one user filter selection
type Criteria struct {
	Range    DateRange
	Seasons  []string
	Weathers []string
}

// Predicate combines the three criteria with AND
func (c Criteria) Predicate() Predicate {
	return And(
		DateBetween(c.Range.Start, c.Range.End),
		SeasonIn(c.Seasons),
		WeatherIn(c.Weathers),
	)
}

// Validate checks the date range against the bounds observed in table
func (c Criteria) Validate(table *models.Table) error {
	if _, err := NewDateRange(c.Range.Start, c.Range.End); err != nil {
		return err
	}
	min, max, ok := table.DateBounds()
	if !ok {
		return &models.InvalidRangeError{Start: c.Range.Start, End: c.Range.End, Message: "dataset has no observed dates"}
	}
	return c.Range.Within(min, max)
}

// Apply filters table with the criteria
func (c Criteria) Apply(table *models.Table) *models.Table {
	return Apply(table, c.Predicate())
}

// SuggestSeasons returns, in display order, the calendar seasons whose months
// occur between start and end. Dashboards use it as the default season choice.
func SuggestSeasons(start, end time.Time) []string {
	start, end = day(start), day(end)
	if start.After(end) {
		return nil
	}

	present := make(map[string]bool, 4)
	// month granularity is enough; stop once all four are seen
	for m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(end) && len(present) < 4; m = m.AddDate(0, 1, 0) {
		present[models.CalendarSeason(m.Month())] = true
	}

	var seasons []string
	for _, s := range models.SeasonOrder() {
		if present[s] {
			seasons = append(seasons, s)
		}
	}
	return seasons
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func toSet(labels []string) map[string]bool {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	return set
}
