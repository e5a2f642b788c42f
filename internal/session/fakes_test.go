package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// --- fakes ---

type fakeSuggester struct {
	mu      sync.Mutex
	calls   []string
	results map[string][]domain.PlaceSuggestion
	err     error
	gates   map[string]chan struct{}
}

func newFakeSuggester() *fakeSuggester {
	return &fakeSuggester{
		results: make(map[string][]domain.PlaceSuggestion),
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeSuggester) Suggest(ctx context.Context, query string) ([]domain.PlaceSuggestion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	gate := f.gates[query]
	results := f.results[query]
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, &domain.SuggestionFetchError{Query: query, Cause: err}
	}
	return results, nil
}

func (f *fakeSuggester) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeWeather struct {
	mu    sync.Mutex
	calls []string
	obs   map[string]domain.WeatherObservation
	err   error
	gates map[string]chan struct{}
}

func newFakeWeather() *fakeWeather {
	return &fakeWeather{
		obs:   make(map[string]domain.WeatherObservation),
		gates: make(map[string]chan struct{}),
	}
}

func (f *fakeWeather) CurrentWeather(ctx context.Context, query string) (domain.WeatherObservation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	gate := f.gates[query]
	obs, ok := f.obs[query]
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.WeatherObservation{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.WeatherObservation{}, err
	}
	if !ok {
		return domain.WeatherObservation{}, domain.NewWeatherStatusError(404)
	}
	return obs, nil
}

func (f *fakeWeather) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeWeather) Gate(query string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[query] = gate
	return gate
}

func (f *fakeWeather) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.AssessmentEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event domain.AssessmentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Events() []domain.AssessmentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AssessmentEvent(nil), f.events...)
}

// stalledPublisher models an unreachable broker: Publish blocks until its
// context ends.
type stalledPublisher struct {
	done        chan struct{}
	hadDeadline bool
	err         error
}

func newStalledPublisher() *stalledPublisher {
	return &stalledPublisher{done: make(chan struct{})}
}

func (p *stalledPublisher) Publish(ctx context.Context, _ domain.AssessmentEvent) error {
	defer close(p.done)
	_, p.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	p.err = ctx.Err()
	return p.err
}

// --- helpers ---

var errUpstream = errors.New("upstream unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions(clock clockwork.Clock, sug domain.Suggester, weather domain.WeatherProvider) Options {
	return Options{
		Suggester:        sug,
		Weather:          weather,
		Clock:            clock,
		Random:           constRandom(0.5),
		DebounceInterval: quiet,
		Logger:           discardLogger(),
		Metrics:          observability.NewUnregisteredMetrics(),
	}
}

func newTestCoordinator(t *testing.T, opts Options) *Coordinator {
	t.Helper()
	c := NewCoordinator("test-session", opts)
	t.Cleanup(c.Close)
	return c
}

// constRandom always returns the same draw; 0.5 leaves readings unperturbed.
type constRandom float64

func (r constRandom) Float64() float64 { return float64(r) }

var (
	recifeObs = domain.WeatherObservation{
		PlaceName:   "Recife",
		Coordinates: domain.Coordinates{Lat: -8.05, Lon: -34.9},
		Temperature: 35,
		Humidity:    10,
		WindSpeed:   8,
	}
	natalObs = domain.WeatherObservation{
		PlaceName:   "Natal",
		Coordinates: domain.Coordinates{Lat: -5.79, Lon: -35.21},
		Temperature: 20,
		Humidity:    80,
		WindSpeed:   2,
	}
)
