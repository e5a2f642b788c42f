package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
)

// DefaultBaseURL is the OpenWeather current weather endpoint.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Client implements domain.WeatherProvider using the OpenWeather current
// weather API. Outbound calls go through a circuit breaker that trips after
// repeated transport failures or 5xx responses.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenWeather client. An empty apiKey is accepted;
// every lookup then fails with a *domain.WeatherFetchError.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
		metrics:    metrics,
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: c.onBreakerStateChange,
	})
	return c
}

// CurrentWeather fetches the observation for query. The caller is expected
// to pass an already-normalized query.
func (c *Client) CurrentWeather(ctx context.Context, query string) (domain.WeatherObservation, error) {
	if c.apiKey == "" {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.WeatherObservation{}, &domain.WeatherFetchError{
			Message: domain.MsgWeatherFetchFailed,
			Cause:   domain.ErrMissingCredential,
		}
	}

	params := url.Values{
		"q":     {query},
		"appid": {c.apiKey},
		"units": {"metric"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.WeatherObservation{}, domain.NewWeatherFetchError(fmt.Errorf("create request: %w", err))
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= http.StatusInternalServerError {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if resp != nil {
			resp.Body.Close()
			c.metrics.WeatherRequests.WithLabelValues("http_error").Inc()
			return domain.WeatherObservation{}, domain.NewWeatherStatusError(resp.StatusCode)
		}
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.WeatherObservation{}, domain.NewWeatherFetchError(stripURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.WeatherRequests.WithLabelValues("http_error").Inc()
		return domain.WeatherObservation{}, domain.NewWeatherStatusError(resp.StatusCode)
	}

	obs, err := c.decode(resp)
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.WeatherObservation{}, domain.NewWeatherFetchError(err)
	}

	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	c.logger.Debug("weather fetched", "query", query, "place", obs.PlaceName)
	return obs, nil
}

func (c *Client) decode(resp *http.Response) (domain.WeatherObservation, error) {
	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.WeatherObservation{}, fmt.Errorf("decode weather response: %w", err)
	}
	if err := c.validate.Struct(body); err != nil {
		return domain.WeatherObservation{}, fmt.Errorf("unexpected weather response shape: %w", err)
	}
	return body.toObservation(), nil
}

// CheckReadiness reports an error while the circuit breaker is open.
func (c *Client) CheckReadiness(_ context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return errors.New("weather provider circuit breaker is open")
	}
	return nil
}

// stripURL drops the request URL, which carries the API key, from transport errors.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s request: %w", strings.ToLower(uerr.Op), uerr.Err)
	}
	return err
}

func (c *Client) onBreakerStateChange(name string, from, to gobreaker.State) {
	c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	if to == gobreaker.StateOpen {
		c.metrics.WeatherBreakerOpen.Set(1)
		return
	}
	c.metrics.WeatherBreakerOpen.Set(0)
}
