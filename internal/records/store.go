package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/webmet/climate-normals/internal/catalog"
	"github.com/webmet/climate-normals/internal/climate"
)

// ErrConflict is returned when a refetch produced data that disagrees with
// the cached record. Records are immutable; a disagreement means either the
// cache or the archive is wrong, and neither is silently overwritten.
var ErrConflict = errors.New("cached record disagrees with refetched data")

// Fetcher is the slice of the archive client the store needs.
type Fetcher interface {
	FetchMonthly(ctx context.Context, stationID string, year, month int) (map[string]float64, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS fetched_months (
	station_id TEXT    NOT NULL,
	year       INTEGER NOT NULL,
	month      INTEGER NOT NULL,
	fetched_at TEXT    NOT NULL,
	PRIMARY KEY (station_id, year, month)
);
CREATE TABLE IF NOT EXISTS observations (
	station_id TEXT    NOT NULL,
	year       INTEGER NOT NULL,
	month      INTEGER NOT NULL,
	var_name   TEXT    NOT NULL,
	value      REAL    NOT NULL,
	PRIMARY KEY (station_id, year, month, var_name)
);
`

// Store is the per-station monthly record cache. It is cache-first: a
// cached (station, year, month) never touches the network again, and a
// failed fetch leaves no trace so a later attempt can succeed. A month the
// archive genuinely has no data for is cached as an empty record, which is
// absence, not failure.
type Store struct {
	db      *sql.DB
	fetcher Fetcher
	flight  singleflight.Group
	limit   int
	log     *slog.Logger
}

// NewStore wires the cache over db and creates the schema. concurrency
// bounds parallel upstream fetches during bulk fills.
func NewStore(db *sql.DB, fetcher Fetcher, concurrency int, log *slog.Logger) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create record schema: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Store{db: db, fetcher: fetcher, limit: concurrency, log: log}, nil
}

type getResult struct {
	rec     climate.MonthlyRecord
	present bool
}

// Get returns the station's record for (year, month). present is false when
// the month holds no data, either because it lies outside the station's
// operational interval (no request is made) or because the archive has no
// record for it. An error means the month could not be fetched; it is not
// cached and the caller may retry later.
func (s *Store) Get(ctx context.Context, st catalog.Station, year, month int) (climate.MonthlyRecord, bool, error) {
	if !st.HasMonth(year, month) {
		return climate.MonthlyRecord{}, false, nil
	}

	if rec, cached, err := s.load(ctx, st.ID, year, month); err != nil || cached {
		return rec, cached && len(rec.Values) > 0, err
	}

	// One fetch per key, however many callers want it.
	key := fmt.Sprintf("%s|%d|%d", st.ID, year, month)
	v, err, _ := s.flight.Do(key, func() (any, error) {
		// A previous flight may have filled the cache between our
		// check and this call.
		if rec, cached, err := s.load(ctx, st.ID, year, month); err != nil {
			return nil, err
		} else if cached {
			return getResult{rec: rec, present: len(rec.Values) > 0}, nil
		}

		values, err := s.fetcher.FetchMonthly(ctx, st.ID, year, month)
		if err != nil {
			return nil, err
		}
		if err := s.persist(ctx, st.ID, year, month, values); err != nil {
			return nil, err
		}
		return getResult{rec: newRecord(st.ID, year, month, values), present: len(values) > 0}, nil
	})
	if err != nil {
		return climate.MonthlyRecord{}, false, err
	}
	res := v.(getResult)
	return res.rec, res.present, nil
}

// Fill prefetches every operational month of the station in the year range
// under the configured worker cap. Single-month failures are logged and
// skipped; already-cached months are untouched. Fill only fails when the
// context is cancelled.
func (s *Store) Fill(ctx context.Context, st catalog.Station, fromYear, toYear int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for _, ym := range st.Months {
		if !inRange(ym.Year, fromYear, toYear) {
			continue
		}
		g.Go(func() error {
			if _, _, err := s.Get(gctx, st, ym.Year, ym.Month); err != nil {
				s.log.Warn("prefetch failed", "station", st.ID, "month", ym, "error", err)
			}
			return gctx.Err()
		})
	}
	return g.Wait()
}

// Series returns the station's records in chronological order as a
// restartable lazy sequence. Records are produced one at a time, fetching
// on demand, so decades of history never sit in memory at once. Months that
// fail to fetch are logged and yielded as absent.
func (s *Store) Series(ctx context.Context, st catalog.Station, fromYear, toYear int) iter.Seq[climate.MonthlyRecord] {
	return func(yield func(climate.MonthlyRecord) bool) {
		for _, ym := range st.Months {
			if !inRange(ym.Year, fromYear, toYear) {
				continue
			}
			rec, present, err := s.Get(ctx, st, ym.Year, ym.Month)
			if err != nil {
				s.log.Warn("month fetch failed, treated as absent",
					"station", st.ID, "month", ym, "error", err)
				continue
			}
			if !present {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

func (s *Store) load(ctx context.Context, stationID string, year, month int) (climate.MonthlyRecord, bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fetched_months WHERE station_id = ? AND year = ? AND month = ?`,
		stationID, year, month).Scan(&n)
	if err != nil {
		return climate.MonthlyRecord{}, false, fmt.Errorf("check cache: %w", err)
	}
	if n == 0 {
		return climate.MonthlyRecord{}, false, nil
	}

	values, err := s.loadValues(ctx, stationID, year, month)
	if err != nil {
		return climate.MonthlyRecord{}, false, err
	}
	return newRecord(stationID, year, month, values), true, nil
}

func (s *Store) loadValues(ctx context.Context, stationID string, year, month int) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT var_name, value FROM observations WHERE station_id = ? AND year = ? AND month = ?`,
		stationID, year, month)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.log.Error("close observation rows", "error", err)
		}
	}()

	values := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		values[name] = value
	}
	return values, rows.Err()
}

// persist commits one month's fetch. When the month is already cached the
// new values must match the cached ones exactly; anything else is ErrConflict.
func (s *Store) persist(ctx context.Context, stationID string, year, month int, values map[string]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer tx.Rollback()

	var n int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fetched_months WHERE station_id = ? AND year = ? AND month = ?`,
		stationID, year, month).Scan(&n)
	if err != nil {
		return fmt.Errorf("check cache: %w", err)
	}
	if n > 0 {
		existing, err := s.loadValues(ctx, stationID, year, month)
		if err != nil {
			return err
		}
		if !sameValues(existing, values) {
			return fmt.Errorf("%w: station %s %04d-%02d", ErrConflict, stationID, year, month)
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fetched_months (station_id, year, month, fetched_at) VALUES (?, ?, ?, ?)`,
		stationID, year, month, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("mark month fetched: %w", err)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO observations (station_id, year, month, var_name, value) VALUES (?, ?, ?, ?, ?)`,
			stationID, year, month, name, values[name]); err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	return tx.Commit()
}

func newRecord(stationID string, year, month int, values map[string]float64) climate.MonthlyRecord {
	rec := climate.MonthlyRecord{
		StationID: stationID,
		Year:      year,
		Month:     month,
		Values:    make(map[string]climate.Measurement, len(values)),
	}
	for name, value := range values {
		unit := ""
		if v, ok := climate.VariableByName(name); ok {
			unit = v.Unit
		}
		rec.Values[name] = climate.Measurement{Value: value, Unit: unit}
	}
	return rec
}

func sameValues(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func inRange(year, from, to int) bool {
	if from > 0 && year < from {
		return false
	}
	if to > 0 && year > to {
		return false
	}
	return true
}
