package webmet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the fixed archive endpoint root.
const DefaultBaseURL = "https://meteo.arso.gov.si/webmet/archive"

// BackoffConfig controls exponential backoff behaviour for transient failures.
type BackoffConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff retries twice after the initial attempt.
var DefaultBackoff = BackoffConfig{
	MaxAttempts:     3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

var (
	errServerError = errors.New("server error")
	errRateLimited = errors.New("rate limited")
	errCircuitOpen = errors.New("circuit breaker open")
)

// StationListing is one station as reported by a monthly station-list query.
// ID keeps the archive's literal underscore prefix; it is the catalog key.
type StationListing struct {
	ID   string
	Name Text
	Lon  float64
	Lat  float64
	Alt  float64
}

// Client talks to the archive's reverse-engineered query interface.
// Station-list queries hit locations.xml, measurement queries data.xml;
// both return AcademaPUJS payloads.
type Client struct {
	baseURL string
	client  *http.Client
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
	varIDs  []int
	log     *slog.Logger
}

// NewClient builds a Client against baseURL. varIDs selects the measurement
// variables requested from data.xml.
func NewClient(httpClient *http.Client, baseURL string, varIDs []int, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webmet-archive",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		backoff: DefaultBackoff,
		circuit: cb,
		varIDs:  varIDs,
		log:     log,
	}
}

// NumericID strips the archive's underscore prefix for use in data.xml
// queries, which want the bare number. Catalog identifiers keep the prefix.
func NumericID(id string) string {
	return strings.TrimPrefix(id, "_")
}

// FetchLocations lists every station the archive has data for in the given
// month. Listings are sorted by ID so callers see a deterministic order.
func (c *Client) FetchLocations(ctx context.Context, year, month int) ([]StationListing, error) {
	d1, d2 := monthSpan(year, month)
	q := url.Values{}
	q.Set("d1", d1)
	q.Set("d2", d2)
	q.Set("type", "1,2,3")
	q.Set("lang", "si")

	u := fmt.Sprintf("%s/locations.xml?%s", c.baseURL, q.Encode())
	doc, err := c.fetchDocument(ctx, u)
	if err != nil {
		return nil, err
	}

	listings := make([]StationListing, 0, len(doc.Points))
	for id, fields := range doc.Points {
		name := asString(fields["name"])
		if name == "" {
			c.log.Warn("station listing has no name", "station", id)
		}
		l := StationListing{ID: id, Name: NewText(name)}
		if l.Name.RecoveryFailed {
			c.log.Warn("station name failed encoding recovery", "station", id, "name", l.Name.Value)
		}
		l.Lon, _ = asFloat(fields["lon"])
		l.Lat, _ = asFloat(fields["lat"])
		l.Alt, _ = asFloat(fields["alt"])
		listings = append(listings, l)
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	return listings, nil
}

// FetchMonthly returns the month's measurements for one station as a map
// from upstream variable name to numeric value. Variables the archive
// reports empty or non-numeric are simply absent from the map. An empty
// map means the station has no record for that month.
func (c *Client) FetchMonthly(ctx context.Context, stationID string, year, month int) (map[string]float64, error) {
	d1, d2 := monthSpan(year, month)
	ids := make([]string, len(c.varIDs))
	for i, v := range c.varIDs {
		ids[i] = fmt.Sprint(v)
	}
	q := url.Values{}
	q.Set("vars", strings.Join(ids, ","))
	q.Set("group", "monthlyData1")
	q.Set("type", "monthly")
	q.Set("id", NumericID(stationID))
	q.Set("d1", d1)
	q.Set("d2", d2)
	q.Set("lang", "si")

	u := fmt.Sprintf("%s/data.xml?%s", c.baseURL, q.Encode())
	doc, err := c.fetchDocument(ctx, u)
	if err != nil {
		return nil, err
	}

	point, ok := doc.Points["_"+NumericID(stationID)]
	if !ok {
		// The archive lists the station for this month but holds no data.
		return map[string]float64{}, nil
	}

	// Point keys are parameter ids (p29, p30, ...); params maps them to
	// the stable upstream variable names.
	values := make(map[string]float64, len(point))
	for pid, raw := range point {
		param, ok := doc.Params[pid]
		if !ok {
			return nil, &ParseError{URL: u, Err: fmt.Errorf("point references unknown param %q", pid)}
		}
		name := asString(param["name"])
		if v, ok := asFloat(raw); ok {
			values[name] = v
		}
	}
	return values, nil
}

func (c *Client) fetchDocument(ctx context.Context, u string) (*document, error) {
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, &ParseError{URL: u, Err: err}
	}
	return doc, nil
}

// get executes the request with retries, exponential backoff and a circuit
// breaker. Network failures, 5xx and 429 are transient; anything else is
// surfaced on the first attempt.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if reqErr != nil {
				return nil, reqErr
			}
			resp, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
			return io.ReadAll(resp.Body)
		})
		if err == nil {
			return result.([]byte), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{URL: u, Attempts: attempt + 1, Err: fmt.Errorf("%w: %v", errCircuitOpen, err)}
		}

		lastErr = err
		attempt++
		if attempt >= c.backoff.MaxAttempts || !transient(err) {
			return nil, &TransportError{URL: u, Attempts: attempt, Err: lastErr}
		}

		delay := c.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt-1)))
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}
		c.log.Debug("retrying archive request", "url", u, "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func transient(err error) bool {
	if errors.Is(err, errServerError) || errors.Is(err, errRateLimited) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// monthSpan returns the first and last day of the month in the archive's
// date format. The listing endpoint insists on exact month boundaries.
func monthSpan(year, month int) (string, string) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format("2006-01-02"), last.Format("2006-01-02")
}
