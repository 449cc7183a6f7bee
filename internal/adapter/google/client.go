// Package google implements domain.Geocoder and domain.Router on top of the
// Google Maps Geocoding and Distance Matrix web services.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
	"github.com/couchcryptid/air-demand-etl/internal/observability"
)

const (
	defaultGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultMatrixURL  = "https://maps.googleapis.com/maps/api/distancematrix/json"

	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// Client calls the Google Maps web services. All requests share one rate
// limiter so geocoding and routing together stay under the project quota.
type Client struct {
	key        string
	httpClient *http.Client
	geocodeURL string
	matrixURL  string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Google Maps client allowing rps requests per second.
func NewClient(key string, timeout time.Duration, rps float64, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
		geocodeURL: defaultGeocodeURL,
		matrixURL:  defaultMatrixURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
		metrics:    metrics,
		logger:     logger,
	}
}

// ForwardGeocode resolves query to the first Geocoding API result.
// ZERO_RESULTS is a successful lookup with Found false; any other non-OK
// status is an error.
func (c *Client) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	const method = "geocode"
	start := time.Now()
	defer func() { c.metrics.APIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds()) }()

	params := url.Values{
		"address": {query},
		"region":  {"uk"},
		"key":     {c.key},
	}
	var resp geocodeResponse
	if err := c.get(ctx, c.geocodeURL, params, &resp); err != nil {
		c.record(method, "error")
		return domain.GeocodingResult{}, fmt.Errorf("geocode %q: %w", query, err)
	}

	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		c.record(method, "empty")
		return domain.GeocodingResult{}, nil
	default:
		c.record(method, "error")
		return domain.GeocodingResult{}, apiError("geocode", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Results) == 0 {
		c.record(method, "empty")
		return domain.GeocodingResult{}, nil
	}

	r := resp.Results[0]
	c.record(method, "success")
	c.logger.Debug("geocoded", "query", query, "address", r.FormattedAddress)
	return domain.GeocodingResult{
		Lat:              r.Geometry.Location.Lat,
		Lon:              r.Geometry.Location.Lng,
		FormattedAddress: r.FormattedAddress,
		Found:            true,
	}, nil
}

// TravelTime asks the Distance Matrix API for a single origin/destination
// pair. The element status is returned as-is; only transport failures and
// a non-OK top-level status are errors.
func (c *Client) TravelTime(ctx context.Context, q domain.RouteQuery) (domain.RouteResult, error) {
	method := string(q.Mode)
	start := time.Now()
	defer func() { c.metrics.APIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds()) }()

	params := url.Values{
		"origins":      {q.Origin},
		"destinations": {q.Destination},
		"mode":         {string(q.Mode)},
		"key":          {c.key},
	}
	if !q.DepartureTime.IsZero() {
		params.Set("departure_time", strconv.FormatInt(q.DepartureTime.Unix(), 10))
	}

	var resp matrixResponse
	if err := c.get(ctx, c.matrixURL, params, &resp); err != nil {
		c.record(method, "error")
		return domain.RouteResult{}, fmt.Errorf("%s travel time from %q: %w", q.Mode, q.Origin, err)
	}
	if resp.Status != statusOK {
		c.record(method, "error")
		return domain.RouteResult{}, apiError("distance matrix", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		c.record(method, "error")
		return domain.RouteResult{}, fmt.Errorf("distance matrix: empty response for %q", q.Origin)
	}

	el := resp.Rows[0].Elements[0]
	if el.Status != statusOK {
		c.record(method, "empty")
		return domain.RouteResult{Status: el.Status}, nil
	}
	c.record(method, "success")
	return domain.RouteResult{Status: domain.RouteStatusOK, DurationSeconds: el.Duration.Value}, nil
}

func (c *Client) get(ctx context.Context, base string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("google maps API error: status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) record(method, outcome string) {
	c.metrics.APIRequests.WithLabelValues(method, outcome).Inc()
}

func apiError(api, status, message string) error {
	if message != "" {
		return fmt.Errorf("%s: status %s: %s", api, status, message)
	}
	return fmt.Errorf("%s: status %s", api, status)
}

// Google Maps API response types.

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Results      []geocodeResult `json:"results"`
}

type geocodeResult struct {
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

type matrixResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Rows         []matrixRow `json:"rows"`
}

type matrixRow struct {
	Elements []matrixElement `json:"elements"`
}

type matrixElement struct {
	Status   string `json:"status"`
	Duration struct {
		Value int    `json:"value"` // seconds
		Text  string `json:"text"`
	} `json:"duration"`
}
