package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-dashboard/internal/aggregate"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/internal/services"
)

func TestRender(t *testing.T) {
	one, half := 1.0, 0.5
	dash := &services.Dashboard{
		Selection:  services.Selection{Start: "2011-01-01", End: "2011-01-31", Seasons: []string{"Winter"}, Weathers: []string{"Clear/Partly Cloudy"}},
		DailyRows:  31,
		HourlyRows: 700,
		Riders:     aggregate.Riders{Rows: 31, TotalRegistered: 1200, TotalCasual: 300, MeanRegistered: 38.71, MeanCasual: 9.68},
		HourlyMean: []aggregate.Point{{Key: "5", Value: 15, Count: 2}},
		DailyCorrelation: aggregate.Matrix{
			Columns: []string{"temp", "cnt"},
			Values:  [][]*float64{{&one, &half}, {&half, nil}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, dash))
	out := buf.String()

	assert.Contains(t, out, "2011-01-01 .. 2011-01-31")
	assert.Contains(t, out, "31 daily, 700 hourly")
	assert.Contains(t, out, "MEAN RENTALS BY HOUR")
	assert.Regexp(t, `5\s+15\.00\s+\(n=2\)`, out)
	assert.Regexp(t, `cnt\s+0\.50\s+-`, out)
}

func TestBuildQuery(t *testing.T) {
	opts := &services.Options{MinDate: "2011-01-01", MaxDate: "2012-12-31"}

	q, err := buildQuery(opts, "", "2011-06-30")
	require.NoError(t, err)
	require.Len(t, q.Dates, 2)
	assert.Equal(t, "2011-01-01", q.Dates[0].Format(models.DateLayout))
	assert.Equal(t, "2011-06-30", q.Dates[1].Format(models.DateLayout))

	_, err = buildQuery(opts, "June", "")
	var validationErr *models.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestSplitLabels(t *testing.T) {
	assert.Equal(t, []string{"Mist/Cloudy", "Clear/Partly Cloudy"}, splitLabels(" Mist/Cloudy ,Clear/Partly Cloudy,"))
	assert.Nil(t, splitLabels(""))
}
