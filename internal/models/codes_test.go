package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelLookups(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(int) (string, error)
		code    int
		want    string
		wantErr bool
	}{
		{"season 1", SeasonLabel, 1, "Spring", false},
		{"season 3", SeasonLabel, 3, "Fall", false},
		{"season 0", SeasonLabel, 0, "", true},
		{"weather 2", WeatherLabel, 2, "Mist/Cloudy", false},
		{"weather 3", WeatherLabel, 3, "Light Rain/Snow/Thunderstorm", false},
		{"weather 5", WeatherLabel, 5, "", true},
		{"month 1", MonthLabel, 1, "January", false},
		{"month 12", MonthLabel, 12, "December", false},
		{"month 0", MonthLabel, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.code)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrders(t *testing.T) {
	assert.Equal(t, []string{"Spring", "Summer", "Fall", "Winter"}, SeasonOrder())
	assert.Len(t, WeatherOrder(), 4)
	assert.Equal(t, "Clear/Partly Cloudy", WeatherOrder()[0])
	months := MonthOrder()
	require.Len(t, months, 12)
	assert.Equal(t, "January", months[0])
	assert.Equal(t, "December", months[11])
	hours := HourOrder()
	require.Len(t, hours, 24)
	assert.Equal(t, "23", hours[23])

	// callers get copies
	o := SeasonOrder()
	o[0] = "changed"
	assert.Equal(t, "Spring", SeasonOrder()[0])
}

func TestCalendarSeason(t *testing.T) {
	assert.Equal(t, "Winter", CalendarSeason(time.December))
	assert.Equal(t, "Winter", CalendarSeason(time.February))
	assert.Equal(t, "Spring", CalendarSeason(time.April))
	assert.Equal(t, "Summer", CalendarSeason(time.July))
	assert.Equal(t, "Fall", CalendarSeason(time.November))
}
