package catalog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmet/climate-normals/internal/climate"
	"github.com/webmet/climate-normals/internal/webmet"
)

// fakeLister serves a fixed station history: Lendava exists the whole
// span, Kredarica only from March.
type fakeLister struct {
	calls atomic.Int64
	fail  bool
}

func (f *fakeLister) FetchLocations(ctx context.Context, year, month int) ([]webmet.StationListing, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, &webmet.TransportError{URL: "locations.xml", Attempts: 3, Err: errors.New("down")}
	}
	listings := []webmet.StationListing{
		{ID: "_1639", Name: webmet.Text{Value: "LENDAVA"}, Lon: 16.45, Lat: 46.56, Alt: 195},
	}
	if month >= 3 {
		listings = append(listings, webmet.StationListing{
			ID: "_2803", Name: webmet.Text{Value: "KREDARICA"}, Lon: 13.85, Lat: 46.38, Alt: 2514,
		})
	}
	return listings, nil
}

func newTestCatalog(t *testing.T, lister Lister) (*Catalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	cfg := Config{Path: path, EpochYear: 2000, EndYear: 2000, Concurrency: 2}
	return New(cfg, lister, slog.New(slog.DiscardHandler)), path
}

func TestLoad_EnumeratesWhenFileAbsent(t *testing.T) {
	lister := &fakeLister{}
	cat, path := newTestCatalog(t, lister)

	require.NoError(t, cat.Load(context.Background()))

	// One listing query per month of the configured span.
	assert.EqualValues(t, 12, lister.calls.Load())
	assert.FileExists(t, path)

	assert.Equal(t, 2, cat.Len())

	lendava, ok := cat.ByID("_1639")
	require.True(t, ok)
	assert.Equal(t, "LENDAVA", lendava.Name)
	assert.Len(t, lendava.Months, 12)

	kredarica, ok := cat.ByID("_2803")
	require.True(t, ok)
	assert.Len(t, kredarica.Months, 10)
	first, _ := kredarica.FirstMonth()
	assert.Equal(t, climate.YearMonth{Year: 2000, Month: 3}, first)
}

func TestLoad_UsesPersistedFileWithoutNetwork(t *testing.T) {
	lister := &fakeLister{}
	cat, path := newTestCatalog(t, lister)
	require.NoError(t, cat.Load(context.Background()))

	// A second catalog over the same file must not enumerate.
	lister2 := &fakeLister{}
	cat2 := New(Config{Path: path, EpochYear: 2000, EndYear: 2000}, lister2, slog.New(slog.DiscardHandler))
	require.NoError(t, cat2.Load(context.Background()))

	assert.EqualValues(t, 0, lister2.calls.Load())
	assert.Equal(t, cat.Len(), cat2.Len())
}

func TestRefresh_IsByteIdenticalForUnchangedUpstream(t *testing.T) {
	cat, path := newTestCatalog(t, &fakeLister{})
	require.NoError(t, cat.Refresh(context.Background()))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, cat.Refresh(context.Background()))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRefresh_AbortsWithoutPersistingOnFailure(t *testing.T) {
	lister := &fakeLister{fail: true}
	cat, path := newTestCatalog(t, lister)

	err := cat.Refresh(context.Background())
	require.Error(t, err)

	var te *webmet.TransportError
	assert.ErrorAs(t, err, &te)
	assert.NoFileExists(t, path, "an incomplete catalog must never be persisted")
}

func TestByName_ReturnsEveryIdentityChronologically(t *testing.T) {
	cat, _ := newTestCatalog(t, &fakeLister{})
	require.NoError(t, cat.Load(context.Background()))

	assert.Len(t, cat.ByName("LENDAVA"), 1)
	assert.Empty(t, cat.ByName("NO SUCH STATION"))
}

func TestStation_HasMonth(t *testing.T) {
	st := Station{Months: []climate.YearMonth{
		{Year: 1961, Month: 1},
		{Year: 1961, Month: 2},
		{Year: 1990, Month: 12},
	}}

	assert.True(t, st.HasMonth(1961, 2))
	assert.True(t, st.HasMonth(1990, 12))
	assert.False(t, st.HasMonth(1961, 3))
	assert.False(t, st.HasMonth(1948, 1))
}
