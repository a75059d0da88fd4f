package climate

import (
	"iter"
	"sort"
)

// Extreme is an observed extreme value together with the year it occurred.
type Extreme struct {
	Value float64 `json:"value"`
	Year  int     `json:"year"`
}

// VarNormal holds every statistic computed for one variable in one
// calendar month. SampleCount is the number of records that contributed a
// present value; when it is zero the remaining fields are meaningless and
// the normal renders as "no data", never as zero.
type VarNormal struct {
	Variable     Variable `json:"variable"`
	SampleCount  int      `json:"sampleCount"`
	Mean         float64  `json:"mean"`
	Min          Extreme  `json:"min"`
	Max          Extreme  `json:"max"`
	Total        float64  `json:"total"`
	PartialTotal bool     `json:"partialTotal"`
}

// HasData reports whether any record contributed to this normal.
func (n VarNormal) HasData() bool { return n.SampleCount > 0 }

// MonthNormals is the statistic set for one calendar month (1-12).
type MonthNormals struct {
	Month int                  `json:"month"`
	Stats map[string]VarNormal `json:"stats"`
}

// Normals is the full climate-normal set for a station identity across all
// years present in the input series.
type Normals struct {
	StationID string           `json:"stationId"`
	FromYear  int              `json:"fromYear"`
	ToYear    int              `json:"toYear"`
	Months    [12]MonthNormals `json:"months"`
}

type contribution struct {
	year  int
	value float64
}

// Compute reduces a monthly series into per-calendar-month normals. The
// reduction is pure and order-independent: contributions are sorted by year
// before folding, so any permutation of the input yields identical output.
func Compute(stationID string, series iter.Seq[MonthlyRecord]) Normals {
	var (
		contribs    [13]map[string][]contribution // index 1-12
		recordCount [13]int
		fromYear    = 0
		toYear      = 0
	)
	for m := 1; m <= 12; m++ {
		contribs[m] = make(map[string][]contribution)
	}

	for rec := range series {
		if rec.Month < 1 || rec.Month > 12 {
			continue
		}
		recordCount[rec.Month]++
		if fromYear == 0 || rec.Year < fromYear {
			fromYear = rec.Year
		}
		if rec.Year > toYear {
			toYear = rec.Year
		}
		for _, v := range Variables {
			if val, ok := rec.Value(v.Name); ok {
				contribs[rec.Month][v.Name] = append(contribs[rec.Month][v.Name], contribution{year: rec.Year, value: val})
			}
		}
	}

	out := Normals{StationID: stationID, FromYear: fromYear, ToYear: toYear}
	for m := 1; m <= 12; m++ {
		stats := make(map[string]VarNormal, len(Variables))
		for _, v := range Variables {
			stats[v.Name] = reduce(v, contribs[m][v.Name], recordCount[m])
		}
		out.Months[m-1] = MonthNormals{Month: m, Stats: stats}
	}
	return out
}

func reduce(v Variable, entries []contribution, records int) VarNormal {
	n := VarNormal{Variable: v, SampleCount: len(entries)}
	if len(entries) == 0 {
		return n
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].year != entries[j].year {
			return entries[i].year < entries[j].year
		}
		return entries[i].value < entries[j].value
	})

	n.Min = Extreme{Value: entries[0].value, Year: entries[0].year}
	n.Max = n.Min
	var sum float64
	for _, e := range entries {
		sum += e.value
		if e.value < n.Min.Value {
			n.Min = Extreme{Value: e.value, Year: e.year}
		}
		if e.value > n.Max.Value {
			n.Max = Extreme{Value: e.value, Year: e.year}
		}
	}
	n.Mean = sum / float64(len(entries))
	n.Total = sum
	// A total only covers the span when every record of this calendar
	// month carried the variable.
	n.PartialTotal = len(entries) < records
	return n
}
