package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
)

// DefaultBaseURL is the Mapbox Geocoding v5 places endpoint.
const DefaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.Suggester using the Mapbox Geocoding API.
type Client struct {
	token      string
	limit      int
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox autocomplete client. An empty token is accepted;
// every lookup then fails with domain.ErrMissingCredential.
func NewClient(token, baseURL string, limit int, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		token: token,
		limit: limit,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Suggest forward-geocodes partial input into ranked place candidates.
// The query is sent exactly as typed.
func (c *Client) Suggest(ctx context.Context, query string) ([]domain.PlaceSuggestion, error) {
	if c.token == "" {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, &domain.SuggestionFetchError{Query: query, Cause: domain.ErrMissingCredential}
	}

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"autocomplete": {"true"},
		"limit":        {strconv.Itoa(c.limit)},
	}

	start := time.Now()
	suggestions, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, &domain.SuggestionFetchError{Query: query, Cause: err}
	case len(suggestions) == 0:
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	c.logger.Debug("suggestions fetched", "query", query, "count", len(suggestions))
	return suggestions, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.PlaceSuggestion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			// The URL carries the access token.
			err = uerr.Err
		}
		return nil, fmt.Errorf("forward geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if mapboxResp.Features == nil {
		return nil, fmt.Errorf("decode response: missing features")
	}

	suggestions := make([]domain.PlaceSuggestion, 0, len(mapboxResp.Features))
	for _, f := range mapboxResp.Features {
		if len(f.Center) != 2 {
			return nil, fmt.Errorf("decode response: feature %q has malformed center", f.ID)
		}
		suggestions = append(suggestions, domain.PlaceSuggestion{
			ID:      f.ID,
			Address: f.PlaceName,
			Name:    f.Text,
			Coordinates: domain.Coordinates{
				Lon: f.Center[0],
				Lat: f.Center[1],
			},
		})
	}
	return suggestions, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID        string    `json:"id"`
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
}
