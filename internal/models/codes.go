package models

import (
	"fmt"
	"strconv"
	"time"
)

// Season labels in display order. Codes follow the dataset convention
// 1=Spring, 2=Summer, 3=Fall, 4=Winter.
var seasonLabels = []string{"Spring", "Summer", "Fall", "Winter"}

// Weather labels ordered from clearest to most severe (codes 1-4).
var weatherLabels = []string{
	"Clear/Partly Cloudy",
	"Mist/Cloudy",
	"Light Rain/Snow/Thunderstorm",
	"Heavy Rain/Snow/Fog",
}

// SeasonLabel maps a season code (1-4) to its label
func SeasonLabel(code int) (string, error) {
	return lookup("season", seasonLabels, code)
}

// WeatherLabel maps a weather situation code (1-4) to its label
func WeatherLabel(code int) (string, error) {
	return lookup("weathersit", weatherLabels, code)
}

// MonthLabel maps a month number (1-12) to its English name
func MonthLabel(code int) (string, error) {
	if code < 1 || code > 12 {
		return "", &ValidationError{
			Field:   "mnth",
			Value:   strconv.Itoa(code),
			Message: fmt.Sprintf("month code %d outside 1-12", code),
		}
	}
	return time.Month(code).String(), nil
}

func lookup(field string, labels []string, code int) (string, error) {
	if code < 1 || code > len(labels) {
		return "", &ValidationError{
			Field:   field,
			Value:   strconv.Itoa(code),
			Message: fmt.Sprintf("%s code %d outside 1-%d", field, code, len(labels)),
		}
	}
	return labels[code-1], nil
}

// SeasonOrder returns season labels in display order
func SeasonOrder() []string {
	return append([]string(nil), seasonLabels...)
}

// WeatherOrder returns weather labels from clearest to most severe
func WeatherOrder() []string {
	return append([]string(nil), weatherLabels...)
}

// MonthOrder returns month names in calendar order
func MonthOrder() []string {
	months := make([]string, 0, 12)
	for m := time.January; m <= time.December; m++ {
		months = append(months, m.String())
	}
	return months
}

// HourOrder returns hour-of-day keys "0" through "23"
func HourOrder() []string {
	hours := make([]string, 0, 24)
	for h := 0; h < 24; h++ {
		hours = append(hours, strconv.Itoa(h))
	}
	return hours
}

// CalendarSeason returns the meteorological season of a calendar month
// (Dec-Feb Winter, Mar-May Spring, Jun-Aug Summer, Sep-Nov Fall).
// This is independent of the season code carried by each record.
func CalendarSeason(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "Winter"
	case time.March, time.April, time.May:
		return "Spring"
	case time.June, time.July, time.August:
		return "Summer"
	default:
		return "Fall"
	}
}
