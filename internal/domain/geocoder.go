package domain

import "context"

// Suggester returns ranked place candidates for partial user input.
type Suggester interface {
	// Suggest forward-geocodes query. An empty result is not an error.
	Suggest(ctx context.Context, query string) ([]PlaceSuggestion, error)
}

// WeatherProvider resolves a place query to its current conditions.
type WeatherProvider interface {
	// CurrentWeather fetches the observation for an already-normalized query.
	// Failures are reported as *WeatherFetchError.
	CurrentWeather(ctx context.Context, query string) (WeatherObservation, error)
}
