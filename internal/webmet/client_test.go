package webmet

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	c := NewClient(httpClient, "https://archive.test/webmet/archive", []int{136, 141, 144}, slog.New(slog.DiscardHandler))
	c.backoff = BackoffConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}
	return c
}

func TestFetchLocations_ParsesAndSorts(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, `=~^https://archive\.test/webmet/archive/locations\.xml`,
		httpmock.NewStringResponder(http.StatusOK, locationsBody))

	listings, err := c.FetchLocations(context.Background(), 1995, 6)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	// Sorted by archive ID, underscore prefix intact.
	assert.Equal(t, "_1639", listings[0].ID)
	assert.Equal(t, "_2048", listings[1].ID)
	assert.Equal(t, "LENDAVA", listings[0].Name.Value)
	assert.False(t, listings[0].Name.RecoveryFailed)
	assert.InDelta(t, 195, listings[0].Alt, 0.001)

	// The listing query must span exact month boundaries.
	info := httpmock.GetCallCountInfo()
	for key := range info {
		assert.Contains(t, key, "locations.xml")
	}
}

func TestFetchLocations_NamelessListingStaysEmpty(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, `=~^https://archive\.test/webmet/archive/locations\.xml`,
		httpmock.NewStringResponder(http.StatusOK,
			`<data>AcademaPUJS.set({points:{_7:{lon:15.0, lat:46.0, alt:300, type:2}}})</data>`))

	listings, err := c.FetchLocations(context.Background(), 1995, 6)
	require.NoError(t, err)
	require.Len(t, listings, 1)

	// A listing without a name field keeps an empty name; it is never the
	// stringified absence of one.
	assert.Equal(t, "", listings[0].Name.Value)
	assert.False(t, listings[0].Name.RecoveryFailed)
}

func TestFetchMonthly_MapsParamNames(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, `=~^https://archive\.test/webmet/archive/data\.xml`,
		httpmock.NewStringResponder(http.StatusOK, monthlyBody))

	values, err := c.FetchMonthly(context.Background(), "_1639", 2001, 1)
	require.NoError(t, err)

	assert.InDelta(t, -1.2, values["tpovp"], 0.001)
	assert.InDelta(t, 89.0, values["padavine"], 0.001)
	// Valueless upstream field stays absent.
	_, ok := values["sonce"]
	assert.False(t, ok)
}

func TestFetchMonthly_NoRecordForStation(t *testing.T) {
	c := newTestClient(t)

	// Listed station, but the month's data payload has no point for it.
	httpmock.RegisterResponder(http.MethodGet, `=~^https://archive\.test/webmet/archive/data\.xml`,
		httpmock.NewStringResponder(http.StatusOK,
			`<data>AcademaPUJS.set({params:{}, points:{}})</data>`))

	values, err := c.FetchMonthly(context.Background(), "_1639", 1950, 2)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestGet_RetriesTransientFailures(t *testing.T) {
	c := newTestClient(t)

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, `=~^https://archive\.test/webmet/archive/locations\.xml`,
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(http.StatusBadGateway, "upstream down"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, locationsBody), nil
		})

	listings, err := c.FetchLocations(context.Background(), 1961, 1)
	require.NoError(t, err)
	assert.Len(t, listings, 2)
	assert.Equal(t, 3, calls)
}

func TestGet_ExhaustedRetriesSurfaceTransportError(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, `=~^https://archive\.test/webmet/archive/locations\.xml`,
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, err := c.FetchLocations(context.Background(), 1961, 1)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
}

func TestGet_SchemaMismatchIsNotRetried(t *testing.T) {
	c := newTestClient(t)

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, `=~^https://archive\.test/webmet/archive/data\.xml`,
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(http.StatusOK, `<data>something else entirely</data>`), nil
		})

	_, err := c.FetchMonthly(context.Background(), "_1639", 2001, 1)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, calls, "parse errors are permanent and must not be retried")

	var te *TransportError
	assert.False(t, errors.As(err, &te))
}

func TestMonthSpan(t *testing.T) {
	d1, d2 := monthSpan(2001, 1)
	assert.Equal(t, "2001-01-01", d1)
	assert.Equal(t, "2001-01-31", d2)

	// Leap year February.
	_, d2 = monthSpan(2000, 2)
	assert.Equal(t, "2000-02-29", d2)
}
