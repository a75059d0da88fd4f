package format

import (
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmet/climate-normals/internal/catalog"
	"github.com/webmet/climate-normals/internal/climate"
)

func record(year, month int, values map[string]float64) climate.MonthlyRecord {
	rec := climate.MonthlyRecord{StationID: "_1", Year: year, Month: month, Values: map[string]climate.Measurement{}}
	for name, v := range values {
		rec.Values[name] = climate.Measurement{Value: v}
	}
	return rec
}

func seq(recs []climate.MonthlyRecord) iter.Seq[climate.MonthlyRecord] {
	return func(yield func(climate.MonthlyRecord) bool) {
		for _, r := range recs {
			if !yield(r) {
				return
			}
		}
	}
}

func TestTable_EndToEndJanuaryMean(t *testing.T) {
	// Three complete years of January mean temperature.
	recs := []climate.MonthlyRecord{
		record(1961, 1, map[string]float64{"tpovp": 1.0}),
		record(1962, 1, map[string]float64{"tpovp": 2.0}),
		record(1963, 1, map[string]float64{"tpovp": 3.0}),
	}
	normals := climate.Compute("LENDAVA", seq(recs))

	jan := normals.Months[0].Stats["tpovp"]
	require.Equal(t, 3, jan.SampleCount)
	require.InDelta(t, 2.0, jan.Mean, 0.0001)

	text := Table(normals)

	// The mean-temperature row carries 2.0 in the January column.
	row := rowFor(t, text, "Mean temperature")
	cells := strings.Fields(row)
	// label words precede the 12 month cells
	require.GreaterOrEqual(t, len(cells), 12)
	assert.Equal(t, "2.0", cells[len(cells)-12], "January cell")
}

func TestTable_NoDataPlaceholderDistinctFromZero(t *testing.T) {
	recs := []climate.MonthlyRecord{
		// Sunshine observed at exactly zero in January; none at all in
		// any other month.
		record(1961, 1, map[string]float64{"sonce": 0.0}),
	}
	normals := climate.Compute("_1", seq(recs))
	text := Table(normals)

	row := rowFor(t, text, "Sunshine duration")
	cells := strings.Fields(row)
	require.GreaterOrEqual(t, len(cells), 12)

	months := cells[len(cells)-12:]
	assert.Equal(t, "0.0", months[0], "an observed zero renders as a number")
	for _, cell := range months[1:] {
		assert.Equal(t, NoData, cell, "absent data renders the placeholder, never a zero")
	}
}

func TestTable_PartialTotalsAreMarked(t *testing.T) {
	recs := []climate.MonthlyRecord{
		record(1961, 6, map[string]float64{"padavine": 90.0}),
		record(1962, 6, map[string]float64{"tpovp": 18.0}), // June record without precipitation
		record(1963, 6, map[string]float64{"padavine": 110.0}),
	}
	normals := climate.Compute("_1", seq(recs))
	text := Table(normals)

	row := rowFor(t, text, "Precipitation (mm)")
	assert.Contains(t, row, "200.0*", "a partial total carries the marker")
	assert.NotContains(t, row, " 200.0 ", "a partial total is never shown as complete")
}

func TestWeatherbox_OmitsNoDataFields(t *testing.T) {
	recs := []climate.MonthlyRecord{
		record(1961, 1, map[string]float64{"tpovp": -1.5, "padavine": 40.0}),
		record(1962, 1, map[string]float64{"tpovp": -0.5, "padavine": 60.0}),
	}
	normals := climate.Compute("LENDAVA", seq(recs))
	st := catalog.Station{Name: "LENDAVA", Alt: 195}

	text := Weatherbox(normals, st)

	assert.Contains(t, text, "{{Weatherbox")
	assert.Contains(t, text, "| location = LENDAVA (195m elev.) [1961-1962]")
	assert.Contains(t, text, "| Jan mean C = -1.0")
	// Accumulative fields publish the typical month, not the sum of years.
	assert.Contains(t, text, "| Jan precipitation mm = 50.0")
	// Months and variables without data never appear.
	assert.NotContains(t, text, "| Feb mean C")
	assert.NotContains(t, text, "| Jan sun")
}

// rowFor plucks the single table row whose label starts with prefix.
func rowFor(t *testing.T, text, prefix string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
	t.Fatalf("no table row with label %q in:\n%s", prefix, text)
	return ""
}
