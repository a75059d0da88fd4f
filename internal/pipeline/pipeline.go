// Package pipeline ties the catalog, record store and aggregator together
// behind the station-name view users actually have: a physical station is
// every archive identity that carried its name.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/webmet/climate-normals/internal/catalog"
	"github.com/webmet/climate-normals/internal/climate"
	"github.com/webmet/climate-normals/internal/format"
	"github.com/webmet/climate-normals/internal/records"
)

// Pipeline orchestrates normals computation for named stations.
type Pipeline struct {
	catalog *catalog.Catalog
	store   *records.Store
	log     *slog.Logger
}

func New(cat *catalog.Catalog, store *records.Store, log *slog.Logger) *Pipeline {
	return &Pipeline{catalog: cat, store: store, log: log}
}

// Normals computes climate normals for the named station across every
// archive identity it ever had, optionally bounded to [fromYear, toYear]
// (zero means unbounded). Months that cannot be fetched are absent from
// the reduction; the result always renders.
func (p *Pipeline) Normals(ctx context.Context, name string, fromYear, toYear int) (climate.Normals, error) {
	stations := p.catalog.ByName(name)
	if len(stations) == 0 {
		return climate.Normals{}, fmt.Errorf("%w: %q", catalog.ErrNotFound, name)
	}
	return climate.Compute(name, p.series(ctx, stations, fromYear, toYear)), nil
}

// Summary computes normals and renders them; kind selects the output
// template ("weatherbox" or the default table).
func (p *Pipeline) Summary(ctx context.Context, name, kind string, fromYear, toYear int) (string, error) {
	normals, err := p.Normals(ctx, name, fromYear, toYear)
	if err != nil {
		return "", err
	}
	if kind == "weatherbox" {
		return format.Weatherbox(normals, p.StationInfo(name)), nil
	}
	return format.Table(normals), nil
}

// Prefetch warms the record cache for every identity of the named station.
// Partial results stay cached even when the context is cancelled.
func (p *Pipeline) Prefetch(ctx context.Context, name string, fromYear, toYear int) error {
	stations := p.catalog.ByName(name)
	if len(stations) == 0 {
		return fmt.Errorf("%w: %q", catalog.ErrNotFound, name)
	}
	for _, st := range stations {
		if err := p.store.Fill(ctx, st, fromYear, toYear); err != nil {
			return err
		}
	}
	return nil
}

// StationInfo merges the named station's identities into one display
// station: averaged coordinates and elevation, the union of operational
// months. The merged entry is for presentation only and never persisted.
func (p *Pipeline) StationInfo(name string) catalog.Station {
	stations := p.catalog.ByName(name)
	merged := catalog.Station{Name: name}
	if len(stations) == 0 {
		return merged
	}
	merged.ID = stations[0].ID
	merged.NameRecoveryFailed = stations[0].NameRecoveryFailed
	for _, st := range stations {
		merged.Lon += st.Lon
		merged.Lat += st.Lat
		merged.Alt += st.Alt
		merged.Months = append(merged.Months, st.Months...)
	}
	n := float64(len(stations))
	merged.Lon /= n
	merged.Lat /= n
	merged.Alt /= n
	return merged
}

// series chains the per-identity lazy series. Identities are ordered by
// first operational month, so iteration stays chronological; the
// aggregation itself is order-independent either way.
func (p *Pipeline) series(ctx context.Context, stations []catalog.Station, fromYear, toYear int) iter.Seq[climate.MonthlyRecord] {
	return func(yield func(climate.MonthlyRecord) bool) {
		for _, st := range stations {
			for rec := range p.store.Series(ctx, st, fromYear, toYear) {
				if !yield(rec) {
					return
				}
			}
		}
	}
}
