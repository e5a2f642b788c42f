package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Defaults applied to zero Options fields.
const (
	DefaultDebounceInterval = 300 * time.Millisecond
	DefaultPublishTimeout   = 5 * time.Second
)

// Publisher receives an event for every applied observation.
type Publisher interface {
	Publish(ctx context.Context, event domain.AssessmentEvent) error
}

// Options wires a Coordinator to its collaborators. Weather and Metrics are
// required. A nil Suggester disables autocomplete and a nil Publisher
// disables event publishing. Random must be safe for concurrent use when the
// same Options are shared by several sessions.
type Options struct {
	Suggester        domain.Suggester
	Weather          domain.WeatherProvider
	Publisher        Publisher
	Clock            clockwork.Clock
	Random           domain.RandomSource
	DebounceInterval time.Duration
	PublishTimeout   time.Duration // upper bound for one background publish
	Logger           *slog.Logger
	Metrics          *observability.Metrics
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Random == nil {
		o.Random = domain.DefaultRandom
	}
	if o.DebounceInterval <= 0 {
		o.DebounceInterval = DefaultDebounceInterval
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = DefaultPublishTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Snapshot is a point-in-time copy of a session's view state.
type Snapshot struct {
	View                domain.ViewState           `json:"view"`
	Query               string                     `json:"query"`
	Suggestions         []domain.PlaceSuggestion   `json:"suggestions"`
	SuggestionsDegraded bool                       `json:"suggestions_degraded"`
	Observation         *domain.WeatherObservation `json:"observation,omitempty"`
	Assessment          *domain.RiskAssessment     `json:"assessment,omitempty"`
	Hourly              []domain.HourlyPoint       `json:"hourly"`
	Loading             bool                       `json:"loading"`
	Error               string                     `json:"error,omitempty"`
}

// weatherState is everything derived from one observation. It is replaced
// as a unit so readers never see an assessment from a different observation.
type weatherState struct {
	observation domain.WeatherObservation
	assessment  domain.RiskAssessment
	hourly      []domain.HourlyPoint
}

// Coordinator holds one session's state and orchestrates its lookups.
type Coordinator struct {
	id        string
	opts      Options
	logger    *slog.Logger
	debouncer *Debouncer

	// ctx bounds debounced suggestion lookups; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	publishes sync.WaitGroup

	mu                  sync.Mutex
	view                domain.ViewState
	query               string
	suggestions         []domain.PlaceSuggestion
	suggestionsDegraded bool
	current             *weatherState
	inFlight            int
	errMsg              string
	suggestSeq          uint64
	weatherSeq          uint64
	queryRev            uint64 // bumped whenever the query text changes
	lastActive          time.Time
	closed              bool
}

// NewCoordinator creates a session with the default viewport and no data.
func NewCoordinator(id string, opts Options) *Coordinator {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		id:         id,
		opts:       opts,
		logger:     opts.Logger.With("session_id", id),
		debouncer:  NewDebouncer(opts.Clock, opts.DebounceInterval),
		ctx:        ctx,
		cancel:     cancel,
		view:       domain.DefaultViewState(),
		lastActive: opts.Clock.Now(),
	}
}

// ID returns the session identifier.
func (c *Coordinator) ID() string { return c.id }

// LastActive returns the time of the last user action.
func (c *Coordinator) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// SetQueryText records the text typed so far. Text longer than two
// characters schedules a debounced suggestion lookup; shorter text clears
// the suggestions at once and cancels any pending lookup.
func (c *Coordinator) SetQueryText(text string) {
	q := domain.LocationQuery{Raw: text}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.touchLocked()
	c.query = text
	c.queryRev++
	rev := c.queryRev
	if !q.WantsSuggestions() || c.opts.Suggester == nil {
		c.clearSuggestionsLocked()
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.debouncer.Trigger(func() { c.fetchSuggestions(text, rev) })
}

// SubmitSearch fetches weather for the current query text. Whitespace-only
// text is ignored. A failed fetch is recorded in the snapshot's error slot
// and also returned as a *domain.WeatherFetchError.
func (c *Coordinator) SubmitSearch(ctx context.Context) error {
	c.mu.Lock()
	text := c.query
	c.mu.Unlock()
	return c.fetchWeather(ctx, text)
}

// SubmitQuery replaces the query text and fetches weather for it at once.
// Unlike SetQueryText it never schedules autocomplete: pending lookups are
// cancelled and the suggestion list is cleared.
func (c *Coordinator) SubmitQuery(ctx context.Context, text string) error {
	c.mu.Lock()
	c.touchLocked()
	c.query = text
	c.queryRev++
	c.clearSuggestionsLocked()
	c.mu.Unlock()

	return c.fetchWeather(ctx, text)
}

// SelectSuggestion adopts the suggestion with the given id as the query,
// clears the list and fetches weather for its name.
func (c *Coordinator) SelectSuggestion(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := slices.IndexFunc(c.suggestions, func(s domain.PlaceSuggestion) bool { return s.ID == id })
	if idx < 0 {
		c.mu.Unlock()
		return domain.ErrSuggestionNotFound
	}
	chosen := c.suggestions[idx]
	c.touchLocked()
	c.query = chosen.Name
	c.queryRev++
	c.clearSuggestionsLocked()
	c.mu.Unlock()

	return c.fetchWeather(ctx, chosen.Name)
}

// UpdateViewport replaces the viewport after a user pan or zoom. It never
// triggers a lookup.
func (c *Coordinator) UpdateViewport(v domain.ViewState) error {
	if err := v.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	c.view = v
	return nil
}

// Snapshot returns a copy of the current state that is safe to retain.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		View:                c.view,
		Query:               c.query,
		Suggestions:         append([]domain.PlaceSuggestion{}, c.suggestions...),
		SuggestionsDegraded: c.suggestionsDegraded,
		Hourly:              []domain.HourlyPoint{},
		Loading:             c.inFlight > 0,
		Error:               c.errMsg,
	}
	if c.current != nil {
		obs := c.current.observation
		assessment := c.current.assessment
		s.Observation = &obs
		s.Assessment = &assessment
		s.Hourly = append(s.Hourly, c.current.hourly...)
	}
	return s
}

// Close cancels pending and in-flight suggestion lookups and waits for
// background publishes to finish. Later calls to SetQueryText are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.debouncer.Stop()
	c.cancel()
	c.publishes.Wait()
}

// clearSuggestionsLocked empties the list, cancels the pending lookup and
// invalidates any response still in flight. The debouncer never takes c.mu
// while holding its own lock, so cancelling here is safe.
func (c *Coordinator) clearSuggestionsLocked() {
	c.suggestions = nil
	c.suggestSeq++
	c.debouncer.Cancel()
}

// fetchSuggestions looks up text if the query is still at revision rev.
func (c *Coordinator) fetchSuggestions(text string, rev uint64) {
	c.mu.Lock()
	if c.closed || rev != c.queryRev {
		c.mu.Unlock()
		return
	}
	c.suggestSeq++
	seq := c.suggestSeq
	c.mu.Unlock()

	results, err := c.opts.Suggester.Suggest(c.ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if seq != c.suggestSeq {
		c.opts.Metrics.StaleResponses.WithLabelValues("suggestion").Inc()
		c.logger.Debug("discarding stale suggestions", "query", text)
		return
	}
	if err != nil {
		c.logger.Warn("suggestion lookup failed", "query", text, "error", err)
		c.suggestions = nil
		c.suggestionsDegraded = true
		return
	}
	c.suggestions = results
	c.suggestionsDegraded = false
}

func (c *Coordinator) fetchWeather(ctx context.Context, raw string) error {
	q := domain.LocationQuery{Raw: raw}
	if !q.Submittable() {
		c.opts.Metrics.WeatherRequests.WithLabelValues("skipped").Inc()
		return nil
	}

	c.mu.Lock()
	c.touchLocked()
	c.weatherSeq++
	seq := c.weatherSeq
	c.inFlight++
	c.errMsg = ""
	c.mu.Unlock()

	obs, err := c.opts.Weather.CurrentWeather(ctx, q.Normalized())

	c.mu.Lock()
	c.inFlight--
	if seq != c.weatherSeq {
		c.mu.Unlock()
		c.opts.Metrics.StaleResponses.WithLabelValues("weather").Inc()
		c.logger.Debug("discarding stale weather response", "query", raw)
		return nil
	}
	if err != nil {
		wfe := domain.AsWeatherFetchError(err)
		c.errMsg = wfe.Message
		c.mu.Unlock()
		c.logger.Warn("weather lookup failed", "query", raw, "error", err)
		return wfe
	}

	state := &weatherState{
		observation: obs,
		assessment:  domain.Assess(obs),
		hourly:      domain.SynthesizeHourly(obs, c.opts.Random),
	}
	c.current = state
	c.view = domain.FocusOn(obs.Coordinates)
	c.errMsg = ""
	event := domain.NewAssessmentEvent(c.id, obs, state.assessment, c.opts.Clock.Now())
	c.mu.Unlock()

	c.opts.Metrics.Assessments.WithLabelValues(string(state.assessment.Level)).Inc()
	c.logger.Info("risk assessed",
		"place", obs.PlaceName,
		"level", state.assessment.Level,
		"score", state.assessment.Score,
	)
	c.publish(ctx, event)
	return nil
}

// publish hands the event to the Publisher in the background, bounded by
// PublishTimeout, so a slow broker never delays the caller.
func (c *Coordinator) publish(ctx context.Context, event domain.AssessmentEvent) {
	if c.opts.Publisher == nil {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("session closed, assessment not published")
		return
	}
	c.publishes.Add(1) // under c.mu so Close cannot be waiting yet
	c.mu.Unlock()

	go func() {
		defer c.publishes.Done()

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.PublishTimeout)
		defer cancel()
		if err := c.opts.Publisher.Publish(pctx, event); err != nil {
			c.opts.Metrics.PublishFailures.Inc()
			c.logger.Error("publish assessment", "error", err)
		}
	}()
}

func (c *Coordinator) touchLocked() {
	c.lastActive = c.opts.Clock.Now()
}
