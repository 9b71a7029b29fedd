package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"bikeshare-dashboard/internal/aggregate"
	"bikeshare-dashboard/internal/services"
)

const rule = "════════════════════════════════════════════════════════════════"

// render writes the dashboard as plain text sections
func render(w io.Writer, dash *services.Dashboard) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	heading(tw, "BIKE SHARING DASHBOARD")
	fmt.Fprintf(tw, "Range:\t%s .. %s\n", dash.Selection.Start, dash.Selection.End)
	fmt.Fprintf(tw, "Seasons:\t%s\n", strings.Join(dash.Selection.Seasons, ", "))
	fmt.Fprintf(tw, "Weather:\t%s\n", strings.Join(dash.Selection.Weathers, ", "))
	fmt.Fprintf(tw, "Rows:\t%d daily, %d hourly\n", dash.DailyRows, dash.HourlyRows)

	heading(tw, "RIDERS")
	fmt.Fprintf(tw, "Registered:\t%d\t(mean %.2f per day)\n", dash.Riders.TotalRegistered, dash.Riders.MeanRegistered)
	fmt.Fprintf(tw, "Casual:\t%d\t(mean %.2f per day)\n", dash.Riders.TotalCasual, dash.Riders.MeanCasual)

	points(tw, "MEAN RENTALS BY MONTH", dash.MonthlyMean)
	points(tw, "MEAN RENTALS BY SEASON", dash.SeasonalMean)
	points(tw, "MEAN RENTALS BY HOUR", dash.HourlyMean)
	points(tw, "MEAN REGISTERED RIDERS BY WEATHER", dash.RegisteredByWeather)
	points(tw, "MEAN CASUAL RIDERS BY WEATHER", dash.CasualByWeather)

	matrix(tw, "DAILY WEATHER CORRELATION", dash.DailyCorrelation)
	matrix(tw, "HOURLY WEATHER CORRELATION", dash.HourlyCorrelation)

	return tw.Flush()
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, rule)
}

func points(w io.Writer, title string, pts []aggregate.Point) {
	heading(w, title)
	for _, p := range pts {
		fmt.Fprintf(w, "%s\t%.2f\t(n=%d)\n", p.Key, p.Value, p.Count)
	}
}

func matrix(w io.Writer, title string, m aggregate.Matrix) {
	heading(w, title)
	fmt.Fprintf(w, "\t%s\n", strings.Join(m.Columns, "\t"))
	for i, row := range m.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				cells[j] = "-"
				continue
			}
			cells[j] = fmt.Sprintf("%.2f", *v)
		}
		fmt.Fprintf(w, "%s\t%s\n", m.Columns[i], strings.Join(cells, "\t"))
	}
}
