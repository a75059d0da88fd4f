package catalog

import (
	"sort"

	"github.com/webmet/climate-normals/internal/climate"
)

// Station is one archive station identity. The archive assigns a new
// identifier whenever a station is updated or moved, so a physical station
// usually appears as several Station entries sharing a name.
//
// Months is the sorted union of every (year, month) the archive listed the
// station for. It records possibility of data, not guaranteed completeness:
// a listed month may still come back empty, but an unlisted month never has
// data and is not worth a request.
type Station struct {
	ID                 string              `json:"id"` // archive key, keeps the leading underscore
	Name               string              `json:"name"`
	NameRecoveryFailed bool                `json:"nameRecoveryFailed,omitempty"`
	Lon                float64             `json:"lon"`
	Lat                float64             `json:"lat"`
	Alt                float64             `json:"alt"`
	Months             []climate.YearMonth `json:"months"`
}

// HasMonth reports whether the archive ever listed the station for the
// given month. Months is sorted, so this is a binary search.
func (s Station) HasMonth(year, month int) bool {
	ym := climate.YearMonth{Year: year, Month: month}
	i := sort.Search(len(s.Months), func(i int) bool {
		return !s.Months[i].Before(ym)
	})
	return i < len(s.Months) && s.Months[i] == ym
}

// FirstMonth returns the earliest operational month, ok=false for a
// station with no listed months.
func (s Station) FirstMonth() (climate.YearMonth, bool) {
	if len(s.Months) == 0 {
		return climate.YearMonth{}, false
	}
	return s.Months[0], true
}

// LastMonth returns the latest operational month.
func (s Station) LastMonth() (climate.YearMonth, bool) {
	if len(s.Months) == 0 {
		return climate.YearMonth{}, false
	}
	return s.Months[len(s.Months)-1], true
}
