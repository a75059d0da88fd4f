package climate

import "fmt"

// YearMonth marks one month of one year, the archive's smallest unit of
// monthly data.
type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Measurement is one observed value with its unit.
type Measurement struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// MonthlyRecord holds every measurement the archive has for one station
// month. Variables the archive did not report are absent from Values.
// Records are immutable once created; a refetch that disagrees with the
// cached record is a defect in the cache, not new data.
type MonthlyRecord struct {
	StationID string                 `json:"stationId"`
	Year      int                    `json:"year"`
	Month     int                    `json:"month"`
	Values    map[string]Measurement `json:"values"`
}

// Value returns the named variable if the record holds it.
func (r MonthlyRecord) Value(varName string) (float64, bool) {
	m, ok := r.Values[varName]
	return m.Value, ok
}
