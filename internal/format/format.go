// Package format renders computed climate normals into publication text.
// Everything here is a pure function of its input.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/webmet/climate-normals/internal/catalog"
	"github.com/webmet/climate-normals/internal/climate"
)

// NoData is the placeholder for a statistic with sample-count zero. It is
// never a blank cell and never a zero.
const NoData = "n/a"

const cellWidth = 8

// Table renders one row per variable and one column per calendar month. An
// accumulative variable's month cell gets a trailing "*" when its total
// misses contributions (partial, see PartialTotal).
func Table(n climate.Normals) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Station %s, %d-%d\n\n", n.StationID, n.FromYear, n.ToYear)

	fmt.Fprintf(&b, "%-28s", "Variable")
	for m := 1; m <= 12; m++ {
		fmt.Fprintf(&b, "%*s", cellWidth, monthAbbr(m))
	}
	b.WriteByte('\n')

	for _, v := range climate.Variables {
		label := v.Label
		if v.Unit != "" {
			label = fmt.Sprintf("%s (%s)", v.Label, v.Unit)
		}
		fmt.Fprintf(&b, "%-28s", label)
		for m := 1; m <= 12; m++ {
			b.WriteString(fmt.Sprintf("%*s", cellWidth, cell(n.Months[m-1].Stats[v.Name])))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func cell(s climate.VarNormal) string {
	if !s.HasData() {
		return NoData
	}
	switch s.Variable.Agg {
	case climate.AggSum:
		if s.PartialTotal {
			return fmt.Sprintf("%.1f*", s.Total)
		}
		return fmt.Sprintf("%.1f", s.Total)
	case climate.AggMax:
		return fmt.Sprintf("%.1f", s.Max.Value)
	case climate.AggMin:
		return fmt.Sprintf("%.1f", s.Min.Value)
	default:
		return fmt.Sprintf("%.1f", s.Mean)
	}
}

// Weatherbox renders the Wikipedia {{Weatherbox}} template for the station.
// Fields with no data are omitted entirely rather than rendered as zero.
func Weatherbox(n climate.Normals, st catalog.Station) string {
	var b strings.Builder

	b.WriteString("{{Weatherbox\n")
	fmt.Fprintf(&b, "| location = %s (%.0fm elev.) [%d-%d]\n", st.Name, st.Alt, n.FromYear, n.ToYear)
	b.WriteString("| source = National Meteorological Service of Slovenia – Archive\n")
	b.WriteString("| width = auto\n")
	b.WriteString("| metric first = yes\n")
	b.WriteString("| single line  = true\n")
	b.WriteString("| unit rain days = 0.1 mm\n")
	b.WriteString("| unit snow days = 0.1 mm\n")
	b.WriteString("| unit precipitation days = 0.1 mm\n")

	for _, v := range climate.Variables {
		if v.Weatherbox == "" {
			continue
		}
		for m := 1; m <= 12; m++ {
			s := n.Months[m-1].Stats[v.Name]
			if !s.HasData() {
				continue
			}
			fmt.Fprintf(&b, "| %s %s = %s\n", monthAbbr(m), v.Weatherbox, weatherboxValue(s))
		}
	}

	b.WriteString("}}\n")
	return b.String()
}

func weatherboxValue(s climate.VarNormal) string {
	switch s.Variable.Agg {
	case climate.AggMax:
		return fmt.Sprintf("%.1f", s.Max.Value)
	case climate.AggMin:
		return fmt.Sprintf("%.1f", s.Min.Value)
	default:
		// Accumulative weatherbox fields want the typical month, not the
		// multi-decade sum.
		return fmt.Sprintf("%.1f", s.Mean)
	}
}

func monthAbbr(m int) string {
	return time.Month(m).String()[:3]
}
