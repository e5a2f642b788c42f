package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var brasSuggestions = []domain.PlaceSuggestion{
	{ID: "place.1", Address: "Brasília, Federal District, Brazil", Name: "Brasília", Coordinates: domain.Coordinates{Lat: -15.79, Lon: -47.88}},
	{ID: "place.2", Address: "Brasil, Rio Grande do Norte, Brazil", Name: "Brasil", Coordinates: domain.Coordinates{Lat: -5.5, Lon: -36.5}},
}

func TestNewCoordinator_InitialState(t *testing.T) {
	c := newTestCoordinator(t, testOptions(clockwork.NewFakeClock(), nil, newFakeWeather()))

	snap := c.Snapshot()
	assert.Equal(t, domain.DefaultViewState(), snap.View)
	assert.Empty(t, snap.Query)
	assert.Empty(t, snap.Suggestions)
	assert.Nil(t, snap.Observation)
	assert.Nil(t, snap.Assessment)
	assert.Empty(t, snap.Hourly)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)
}

// --- suggestions ---

func TestSetQueryText_ShortInputNeverLooksUp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	c := newTestCoordinator(t, testOptions(clock, sug, newFakeWeather()))

	for _, text := range []string{"", "a", "ab"} {
		c.SetQueryText(text)
		clock.Advance(time.Second)
	}

	assert.Never(t, func() bool { return len(sug.Calls()) > 0 }, settle, pollTick)
	assert.Empty(t, c.Snapshot().Suggestions)
	assert.Equal(t, "ab", c.Snapshot().Query)
}

func TestSetQueryText_FetchesWithRawTextAfterQuietPeriod(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	sug.results["São"] = brasSuggestions
	c := newTestCoordinator(t, testOptions(clock, sug, newFakeWeather()))

	c.SetQueryText("São")
	assert.Never(t, func() bool { return len(sug.Calls()) > 0 }, settle, pollTick)

	clock.Advance(quiet)
	require.Eventually(t, func() bool { return len(c.Snapshot().Suggestions) == 2 }, waitFor, pollTick)

	assert.Equal(t, []string{"São"}, sug.Calls())
	assert.Equal(t, brasSuggestions, c.Snapshot().Suggestions)
	assert.False(t, c.Snapshot().SuggestionsDegraded)
}

func TestSetQueryText_RapidTypingIssuesOneLookup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	sug.results["Brasi"] = brasSuggestions
	c := newTestCoordinator(t, testOptions(clock, sug, newFakeWeather()))

	for _, text := range []string{"Bra", "Bras", "Brasi"} {
		c.SetQueryText(text)
		clock.Advance(100 * time.Millisecond)
	}
	clock.Advance(quiet)

	require.Eventually(t, func() bool { return len(c.Snapshot().Suggestions) == 2 }, waitFor, pollTick)
	assert.Equal(t, []string{"Brasi"}, sug.Calls())
}

func TestSetQueryText_ShortenedInputClearsSuggestions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	sug.results["Bras"] = brasSuggestions
	c := newTestCoordinator(t, testOptions(clock, sug, newFakeWeather()))

	c.SetQueryText("Bras")
	clock.Advance(quiet)
	require.Eventually(t, func() bool { return len(c.Snapshot().Suggestions) == 2 }, waitFor, pollTick)

	c.SetQueryText("Br")
	assert.Empty(t, c.Snapshot().Suggestions)
}

func TestSetQueryText_FailureDegradesQuietly(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	sug.err = errUpstream
	c := newTestCoordinator(t, testOptions(clock, sug, newFakeWeather()))

	c.SetQueryText("Recife")
	clock.Advance(quiet)
	require.Eventually(t, func() bool { return c.Snapshot().SuggestionsDegraded }, waitFor, pollTick)

	snap := c.Snapshot()
	assert.Empty(t, snap.Suggestions)
	assert.Empty(t, snap.Error)
}

func TestSetQueryText_StaleSuggestionsDiscarded(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	gate := make(chan struct{})
	sug.gates["Bras"] = gate
	sug.results["Bras"] = brasSuggestions[:1]
	sug.results["Brasil"] = brasSuggestions[1:]
	opts := testOptions(clock, sug, newFakeWeather())
	c := newTestCoordinator(t, opts)

	c.SetQueryText("Bras")
	clock.Advance(quiet)
	require.Eventually(t, func() bool { return len(sug.Calls()) == 1 }, waitFor, pollTick)

	c.SetQueryText("Brasil")
	clock.Advance(quiet)
	require.Eventually(t, func() bool { return len(c.Snapshot().Suggestions) == 1 }, waitFor, pollTick)

	close(gate)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(opts.Metrics.StaleResponses.WithLabelValues("suggestion")) == 1
	}, waitFor, pollTick)
	assert.Equal(t, "place.2", c.Snapshot().Suggestions[0].ID)
}

func TestSetQueryText_NilSuggesterDisablesAutocomplete(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCoordinator(t, testOptions(clock, nil, newFakeWeather()))

	c.SetQueryText("Recife")
	clock.Advance(quiet)

	assert.Equal(t, "Recife", c.Snapshot().Query)
	assert.Empty(t, c.Snapshot().Suggestions)
}

// --- weather ---

func TestSubmitSearch_WhitespaceQueryIsSkipped(t *testing.T) {
	weather := newFakeWeather()
	c := newTestCoordinator(t, testOptions(clockwork.NewFakeClock(), nil, weather))

	for _, text := range []string{"", "   ", "\t\n"} {
		c.SetQueryText(text)
		require.NoError(t, c.SubmitSearch(context.Background()))
	}

	assert.Empty(t, weather.Calls())
	assert.Equal(t, domain.DefaultViewState(), c.Snapshot().View)
}

func TestSubmitSearch_SuccessAppliesObservation(t *testing.T) {
	weather := newFakeWeather()
	weather.obs["Sao Paulo"] = recifeObs
	pub := &fakePublisher{}
	opts := testOptions(clockwork.NewFakeClock(), nil, weather)
	opts.Publisher = pub
	c := newTestCoordinator(t, opts)

	c.SetQueryText("São Paulo")
	require.NoError(t, c.SubmitSearch(context.Background()))

	assert.Equal(t, []string{"Sao Paulo"}, weather.Calls())

	snap := c.Snapshot()
	require.NotNil(t, snap.Observation)
	require.NotNil(t, snap.Assessment)
	assert.Equal(t, recifeObs, *snap.Observation)
	assert.Equal(t, domain.Assess(recifeObs), *snap.Assessment)
	assert.Equal(t, domain.RiskHigh, snap.Assessment.Level)
	assert.Equal(t, domain.FocusOn(recifeObs.Coordinates), snap.View)
	assert.Equal(t, 10.0, snap.View.Zoom)
	assert.Len(t, snap.Hourly, domain.HoursPerSeries)
	assert.Equal(t, recifeObs.Temperature, snap.Hourly[0].Temperature)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)

	require.Eventually(t, func() bool { return len(pub.Events()) == 1 }, waitFor, pollTick)
	events := pub.Events()
	assert.Equal(t, "test-session", events[0].SessionID)
	assert.Equal(t, domain.RiskHigh, events[0].Level)
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.Assessments.WithLabelValues("high")))
}

func TestSubmitSearch_FailureKeepsPreviousData(t *testing.T) {
	weather := newFakeWeather()
	weather.obs["Recife"] = recifeObs
	c := newTestCoordinator(t, testOptions(clockwork.NewFakeClock(), nil, weather))

	c.SetQueryText("Recife")
	require.NoError(t, c.SubmitSearch(context.Background()))
	before := c.Snapshot()

	c.SetQueryText("Atlantis")
	err := c.SubmitSearch(context.Background())

	var wfe *domain.WeatherFetchError
	require.ErrorAs(t, err, &wfe)

	after := c.Snapshot()
	assert.Equal(t, domain.MsgWeatherFetchFailed, after.Error)
	assert.False(t, after.Loading)
	assert.Equal(t, before.Observation, after.Observation)
	assert.Equal(t, before.Assessment, after.Assessment)
	assert.Equal(t, before.Hourly, after.Hourly)
	assert.Equal(t, before.View, after.View)
}

func TestSubmitSearch_TransportFailureKeepsMessage(t *testing.T) {
	weather := newFakeWeather()
	weather.SetErr(errors.New("dial tcp: connection refused"))
	c := newTestCoordinator(t, testOptions(clockwork.NewFakeClock(), nil, weather))

	c.SetQueryText("Recife")
	require.Error(t, c.SubmitSearch(context.Background()))

	assert.Equal(t, "dial tcp: connection refused", c.Snapshot().Error)
}

func TestSubmitSearch_SuccessClearsPreviousError(t *testing.T) {
	weather := newFakeWeather()
	weather.obs["Recife"] = recifeObs
	weather.SetErr(errUpstream)
	c := newTestCoordinator(t, testOptions(clockwork.NewFakeClock(), nil, weather))

	c.SetQueryText("Recife")
	require.Error(t, c.SubmitSearch(context.Background()))
	require.NotEmpty(t, c.Snapshot().Error)

	weather.SetErr(nil)
	require.NoError(t, c.SubmitSearch(context.Background()))
	assert.Empty(t, c.Snapshot().Error)
}

func TestSubmitSearch_LoadingWhileInFlightAndErrorCleared(t *testing.T) {
	weather := newFakeWeather()
	weather.obs["Recife"] = recifeObs
	c := newTestCoordinator(t, testOptions(clockwork.NewFakeClock(), nil, weather))

	c.SetQueryText("Atlantis")
	require.Error(t, c.SubmitSearch(context.Background()))
	require.NotEmpty(t, c.Snapshot().Error)

	gate := weather.Gate("Recife")
	c.SetQueryText("Recife")
	done := make(chan error, 1)
	go func() { done <- c.SubmitSearch(context.Background()) }()

	require.Eventually(t, func() bool { return c.Snapshot().Loading }, waitFor, pollTick)
	assert.Empty(t, c.Snapshot().Error)

	close(gate)
	require.NoError(t, <-done)
	assert.False(t, c.Snapshot().Loading)
}

func TestSubmitSearch_LatestRequestWins(t *testing.T) {
	weather := newFakeWeather()
	weather.obs["Recife"] = recifeObs
	weather.obs["Natal"] = natalObs
	gate := weather.Gate("Recife")
	opts := testOptions(clockwork.NewFakeClock(), nil, weather)
	c := newTestCoordinator(t, opts)

	c.SetQueryText("Recife")
	done := make(chan error, 1)
	go func() { done <- c.SubmitSearch(context.Background()) }()
	require.Eventually(t, func() bool { return len(weather.Calls()) == 1 }, waitFor, pollTick)

	c.SetQueryText("Natal")
	require.NoError(t, c.SubmitSearch(context.Background()))

	close(gate)
	require.NoError(t, <-done)

	snap := c.Snapshot()
	require.NotNil(t, snap.Observation)
	assert.Equal(t, "Natal", snap.Observation.PlaceName)
	assert.Equal(t, domain.FocusOn(natalObs.Coordinates), snap.View)
	assert.False(t, snap.Loading)
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.StaleResponses.WithLabelValues("weather")))
}

func TestSubmitSearch_PublishFailureDoesNotAffectState(t *testing.T) {
	weather := newFakeWeather()
	weather.obs["Recife"] = recifeObs
	opts := testOptions(clockwork.NewFakeClock(), nil, weather)
	opts.Publisher = &fakePublisher{err: errUpstream}
	c := newTestCoordinator(t, opts)

	c.SetQueryText("Recife")
	require.NoError(t, c.SubmitSearch(context.Background()))

	assert.NotNil(t, c.Snapshot().Observation)
	assert.Empty(t, c.Snapshot().Error)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(opts.Metrics.PublishFailures) == 1
	}, waitFor, pollTick)
}

func TestSubmitSearch_StalledPublisherDoesNotBlock(t *testing.T) {
	weather := newFakeWeather()
	weather.obs["Recife"] = recifeObs
	pub := newStalledPublisher()
	opts := testOptions(clockwork.NewFakeClock(), nil, weather)
	opts.Publisher = pub
	opts.PublishTimeout = 200 * time.Millisecond
	c := newTestCoordinator(t, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.SetQueryText("Recife")
	require.NoError(t, c.SubmitSearch(ctx))

	select {
	case <-pub.done:
		t.Fatal("SubmitSearch waited for the publisher")
	default:
	}
	assert.NotNil(t, c.Snapshot().Observation)

	select {
	case <-pub.done:
	case <-time.After(waitFor):
		t.Fatal("publish was not bounded by the publish timeout")
	}
	assert.True(t, pub.hadDeadline)
	require.ErrorIs(t, pub.err, context.DeadlineExceeded)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(opts.Metrics.PublishFailures) == 1
	}, waitFor, pollTick)
}

func TestClose_WaitsForPendingPublish(t *testing.T) {
	weather := newFakeWeather()
	weather.obs["Recife"] = recifeObs
	pub := newStalledPublisher()
	opts := testOptions(clockwork.NewFakeClock(), nil, weather)
	opts.Publisher = pub
	opts.PublishTimeout = 50 * time.Millisecond
	c := NewCoordinator("closing", opts)

	c.SetQueryText("Recife")
	require.NoError(t, c.SubmitSearch(context.Background()))
	c.Close()

	select {
	case <-pub.done:
	default:
		t.Fatal("Close returned before the publish finished")
	}
}

func TestSubmitQuery_DoesNotScheduleAutocomplete(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	sug.results["Bras"] = brasSuggestions
	sug.results["Brasília"] = brasSuggestions
	weather := newFakeWeather()
	weather.obs["Brasilia"] = recifeObs
	c := newTestCoordinator(t, testOptions(clock, sug, weather))

	c.SetQueryText("Bras")
	clock.Advance(quiet)
	require.Eventually(t, func() bool { return len(c.Snapshot().Suggestions) == 2 }, waitFor, pollTick)

	c.SetQueryText("Brasíl")
	require.NoError(t, c.SubmitQuery(context.Background(), "Brasília"))

	snap := c.Snapshot()
	assert.Equal(t, "Brasília", snap.Query)
	assert.Empty(t, snap.Suggestions)
	assert.Equal(t, []string{"Brasilia"}, weather.Calls())

	clock.Advance(time.Second)
	assert.Never(t, func() bool { return len(c.Snapshot().Suggestions) > 0 }, settle, pollTick)
	assert.Equal(t, []string{"Bras"}, sug.Calls())
}

// --- selection and viewport ---

func TestSelectSuggestion(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	sug.results["Bras"] = brasSuggestions
	weather := newFakeWeather()
	weather.obs["Brasilia"] = recifeObs
	c := newTestCoordinator(t, testOptions(clock, sug, weather))

	c.SetQueryText("Bras")
	clock.Advance(quiet)
	require.Eventually(t, func() bool { return len(c.Snapshot().Suggestions) == 2 }, waitFor, pollTick)

	require.NoError(t, c.SelectSuggestion(context.Background(), "place.1"))

	snap := c.Snapshot()
	assert.Equal(t, "Brasília", snap.Query)
	assert.Empty(t, snap.Suggestions)
	assert.Equal(t, []string{"Brasilia"}, weather.Calls())
	require.NotNil(t, snap.Observation)

	// Adopting the name must not schedule another autocomplete lookup.
	clock.Advance(time.Second)
	assert.Never(t, func() bool { return len(sug.Calls()) > 1 }, settle, pollTick)
}

func TestSelectSuggestion_CancelsPendingLookup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	sug.results["Bras"] = brasSuggestions
	sug.results["Brasi"] = brasSuggestions
	weather := newFakeWeather()
	weather.obs["Brasilia"] = recifeObs
	c := newTestCoordinator(t, testOptions(clock, sug, weather))

	c.SetQueryText("Bras")
	clock.Advance(quiet)
	require.Eventually(t, func() bool { return len(c.Snapshot().Suggestions) == 2 }, waitFor, pollTick)

	c.SetQueryText("Brasi")
	require.NoError(t, c.SelectSuggestion(context.Background(), "place.1"))
	clock.Advance(quiet)

	assert.Never(t, func() bool { return len(sug.Calls()) > 1 }, settle, pollTick)
	assert.Empty(t, c.Snapshot().Suggestions)
}

func TestFetchSuggestions_IgnoresSupersededQuery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	sug.results["Bras"] = brasSuggestions
	weather := newFakeWeather()
	weather.obs["Brasilia"] = recifeObs
	c := newTestCoordinator(t, testOptions(clock, sug, weather))

	c.SetQueryText("Bras")
	clock.Advance(quiet)
	require.Eventually(t, func() bool { return len(c.Snapshot().Suggestions) == 2 }, waitFor, pollTick)

	c.mu.Lock()
	rev := c.queryRev
	c.mu.Unlock()
	require.NoError(t, c.SelectSuggestion(context.Background(), "place.1"))

	// A timer that fired just before the selection still holds the old revision.
	c.fetchSuggestions("Bras", rev)

	assert.Len(t, sug.Calls(), 1)
	assert.Empty(t, c.Snapshot().Suggestions)
}

func TestSelectSuggestion_UnknownID(t *testing.T) {
	weather := newFakeWeather()
	c := newTestCoordinator(t, testOptions(clockwork.NewFakeClock(), nil, weather))

	err := c.SelectSuggestion(context.Background(), "missing")

	require.ErrorIs(t, err, domain.ErrSuggestionNotFound)
	assert.Empty(t, weather.Calls())
}

func TestUpdateViewport(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	weather := newFakeWeather()
	c := newTestCoordinator(t, testOptions(clock, sug, weather))

	v := domain.ViewState{Latitude: 10, Longitude: 20, Zoom: 7}
	require.NoError(t, c.UpdateViewport(v))
	assert.Equal(t, v, c.Snapshot().View)

	require.Error(t, c.UpdateViewport(domain.ViewState{Latitude: 91}))
	assert.Equal(t, v, c.Snapshot().View)

	clock.Advance(time.Second)
	assert.Empty(t, sug.Calls())
	assert.Empty(t, weather.Calls())
}

// --- lifecycle ---

func TestClose_CancelsPendingLookup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sug := newFakeSuggester()
	c := NewCoordinator("closing", testOptions(clock, sug, newFakeWeather()))

	c.SetQueryText("Recife")
	c.Close()
	clock.Advance(time.Second)
	c.SetQueryText("Natal")
	clock.Advance(time.Second)

	assert.Never(t, func() bool { return len(sug.Calls()) > 0 }, settle, pollTick)
}

func TestSnapshot_ReturnsCopies(t *testing.T) {
	weather := newFakeWeather()
	weather.obs["Recife"] = recifeObs
	c := newTestCoordinator(t, testOptions(clockwork.NewFakeClock(), nil, weather))
	c.SetQueryText("Recife")
	require.NoError(t, c.SubmitSearch(context.Background()))

	snap := c.Snapshot()
	snap.Hourly[0].Temperature = -100
	snap.Observation.Temperature = -100
	snap.Assessment.Level = domain.RiskLow

	fresh := c.Snapshot()
	assert.Equal(t, recifeObs.Temperature, fresh.Hourly[0].Temperature)
	assert.Equal(t, recifeObs.Temperature, fresh.Observation.Temperature)
	assert.Equal(t, domain.RiskHigh, fresh.Assessment.Level)
}

func TestLastActive_TracksUserActions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCoordinator(t, testOptions(clock, nil, newFakeWeather()))
	start := c.LastActive()

	clock.Advance(time.Minute)
	c.SetQueryText("x")

	assert.Equal(t, start.Add(time.Minute), c.LastActive())
}
