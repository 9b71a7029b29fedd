package aggregate

import (
	"math"

	"bikeshare-dashboard/internal/models"
)

// Column is a numeric column taking part in a correlation matrix
type Column struct {
	Name string
	Of   func(rec *models.RentalRecord) float64
}

// WeatherColumns are the environmental readings plus the total count
var WeatherColumns = []Column{
	{Name: "temp", Of: func(rec *models.RentalRecord) float64 { return rec.Temp }},
	{Name: "atemp", Of: func(rec *models.RentalRecord) float64 { return rec.ATemp }},
	{Name: "hum", Of: func(rec *models.RentalRecord) float64 { return rec.Humidity }},
	{Name: "windspeed", Of: func(rec *models.RentalRecord) float64 { return rec.WindSpeed }},
	{Name: "cnt", Of: Total.Of},
}

// Matrix holds pairwise Pearson coefficients. A nil cell means the
// coefficient is undefined because a column has no variance.
type Matrix struct {
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

// Correlation computes the Pearson correlation of every pair of columns
func Correlation(table *models.Table, columns []Column) Matrix {
	records := table.Rows()
	data := make([][]float64, len(columns))
	for c, col := range columns {
		data[c] = make([]float64, len(records))
		for i := range records {
			data[c][i] = col.Of(&records[i])
		}
	}

	m := Matrix{
		Columns: make([]string, len(columns)),
		Values:  make([][]*float64, len(columns)),
	}
	for i, col := range columns {
		m.Columns[i] = col.Name
		m.Values[i] = make([]*float64, len(columns))
	}
	for i := range columns {
		for j := i; j < len(columns); j++ {
			r, ok := pearson(data[i], data[j])
			if !ok {
				continue
			}
			m.Values[i][j] = &r
			m.Values[j][i] = &r
		}
	}
	return m
}

func pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if n < 2 {
		return 0, false
	}

	var meanX, meanY float64
	for i := 0; i < n; i++ {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}

	r := cov / math.Sqrt(varX*varY)
	// clamp rounding drift
	return math.Max(-1, math.Min(1, r)), true
}
