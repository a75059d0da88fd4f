package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/webmet/climate-normals/internal/climate"
	"github.com/webmet/climate-normals/internal/webmet"
)

// ErrNotFound is returned when no station matches a lookup.
var ErrNotFound = errors.New("station not found in catalog")

// Lister is the slice of the archive client the catalog needs: one
// station-list query per month. Isolating it here keeps the upstream
// enumeration quirks inside the webmet package.
type Lister interface {
	FetchLocations(ctx context.Context, year, month int) ([]webmet.StationListing, error)
}

// Config holds catalog construction parameters.
type Config struct {
	// Path of the persisted catalog file. Deleting it forces a full
	// re-enumeration on the next Load.
	Path string
	// EpochYear is the first year the digital archive covers (1948).
	EpochYear int
	// EndYear is the last year to enumerate.
	EndYear int
	// Concurrency bounds parallel station-list requests.
	Concurrency int
}

// Catalog is the station set reconstructed from the archive's monthly
// station lists. The archive has no listing API, so the catalog is built by
// asking which stations had data in every month since the epoch and taking
// the union.
type Catalog struct {
	cfg    Config
	lister Lister
	log    *slog.Logger

	mu       sync.RWMutex
	stations map[string]*Station
	order    []string // station IDs sorted ascending
}

// New creates an empty catalog. Call Load before using it.
func New(cfg Config, lister Lister, log *slog.Logger) *Catalog {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Catalog{cfg: cfg, lister: lister, log: log}
}

// Load reads the persisted catalog, or performs a full enumeration and
// persists the result when no file exists yet.
func (c *Catalog) Load(ctx context.Context) error {
	raw, err := os.ReadFile(c.cfg.Path)
	if errors.Is(err, os.ErrNotExist) {
		c.log.Info("no persisted catalog, enumerating archive",
			"path", c.cfg.Path, "from", c.cfg.EpochYear, "to", c.cfg.EndYear)
		return c.Refresh(ctx)
	}
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}

	var stations map[string]*Station
	if err := json.Unmarshal(raw, &stations); err != nil {
		return fmt.Errorf("decode catalog %s: %w", c.cfg.Path, err)
	}
	c.install(stations)
	c.log.Info("catalog loaded", "path", c.cfg.Path, "stations", len(stations))
	return nil
}

// Refresh re-enumerates the archive and atomically overwrites the persisted
// catalog. Any fetch failure aborts the refresh: an incomplete catalog must
// never be persisted as complete.
func (c *Catalog) Refresh(ctx context.Context) error {
	months := enumerationMonths(c.cfg.EpochYear, c.cfg.EndYear)
	results := make([][]webmet.StationListing, len(months))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, ym := range months {
		g.Go(func() error {
			listings, err := c.lister.FetchLocations(gctx, ym.Year, ym.Month)
			if err != nil {
				return fmt.Errorf("list stations for %s: %w", ym, err)
			}
			results[i] = listings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Merge chronologically so the result is independent of fetch
	// interleaving: metadata comes from the earliest listing, months
	// accumulate as the sorted union.
	stations := make(map[string]*Station)
	for i, ym := range months {
		for _, l := range results[i] {
			st, ok := stations[l.ID]
			if !ok {
				st = &Station{
					ID:                 l.ID,
					Name:               l.Name.Value,
					NameRecoveryFailed: l.Name.RecoveryFailed,
					Lon:                l.Lon,
					Lat:                l.Lat,
					Alt:                l.Alt,
				}
				stations[l.ID] = st
			}
			st.Months = append(st.Months, ym)
		}
	}

	if err := c.persist(stations); err != nil {
		return err
	}
	c.install(stations)
	c.log.Info("catalog refreshed", "path", c.cfg.Path, "stations", len(stations))
	return nil
}

// All returns every station ordered by ID.
func (c *Catalog) All() []Station {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Station, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.stations[id])
	}
	return out
}

// ByID returns the station with the given archive identifier.
func (c *Catalog) ByID(id string) (Station, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.stations[id]
	if !ok {
		return Station{}, false
	}
	return *st, true
}

// ByName returns every archive identity that ever carried the given name,
// ordered by first operational month. Station IDs change when a station is
// updated, so one physical station maps to several identities.
func (c *Catalog) ByName(name string) []Station {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Station
	for _, id := range c.order {
		if c.stations[id].Name == name {
			out = append(out, *c.stations[id])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		fi, oki := out[i].FirstMonth()
		fj, okj := out[j].FirstMonth()
		if oki && okj {
			return fi.Before(fj)
		}
		return okj
	})
	return out
}

// Len returns the number of stations.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stations)
}

func (c *Catalog) install(stations map[string]*Station) {
	order := make([]string, 0, len(stations))
	for id, st := range stations {
		sort.Slice(st.Months, func(i, j int) bool { return st.Months[i].Before(st.Months[j]) })
		order = append(order, id)
	}
	sort.Strings(order)

	c.mu.Lock()
	c.stations = stations
	c.order = order
	c.mu.Unlock()
}

// persist writes the catalog as indented JSON keyed by station ID. Map keys
// marshal sorted, so an unchanged archive yields a byte-identical file.
func (c *Catalog) persist(stations map[string]*Station) error {
	for _, st := range stations {
		sort.Slice(st.Months, func(i, j int) bool { return st.Months[i].Before(st.Months[j]) })
	}
	raw, err := json.MarshalIndent(stations, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	dir := filepath.Dir(c.cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*")
	if err != nil {
		return fmt.Errorf("create catalog temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close catalog temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.cfg.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

func enumerationMonths(from, to int) []climate.YearMonth {
	var months []climate.YearMonth
	for year := from; year <= to; year++ {
		for month := 1; month <= 12; month++ {
			months = append(months, climate.YearMonth{Year: year, Month: month})
		}
	}
	return months
}
