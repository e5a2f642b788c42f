// Package domain models current-conditions fire risk for a single place.
//
// # Observations
//
// A [WeatherObservation] is one point-in-time reading returned by the weather
// provider for a resolved place: temperature in degrees Celsius, relative
// humidity in percent and wind speed in metres per second. Observations are
// immutable values; a newer fetch replaces the previous one as a whole.
//
// # Risk classification
//
// Risk is derived from a weighted score of the three readings:
//
//	score = 1.5 × temperature − 0.5 × humidity + 2 × wind
//
//	  score > 60        high
//	  40 < score ≤ 60   medium
//	  score ≤ 40        low
//
// [Classify] is the only place these thresholds live. A [RiskAssessment] is a
// projection of an observation and carries no identity of its own.
//
// # Hourly series
//
// [SynthesizeHourly] produces 24 points labeled "0:00" through "23:00". It is
// not a meteorological model: every point is an independent uniform
// perturbation of the current reading (±2.5 °C, ±5 % humidity) rounded to one
// decimal place. The random source is injected so output is reproducible in
// tests.
//
// # Query normalization
//
// Place names typed by users often carry diacritics ("São Paulo", "Brasília")
// that the weather provider's name lookup does not match reliably.
// [NormalizeQuery] strips combining marks before the query is sent to the
// weather provider. Geocoding suggestions receive the raw text unchanged.
//
// # Viewport
//
// The map viewport starts on [DefaultViewState] (central Brazil, zoom 4) and is
// recentered on the observation at [FocusZoom] after every successful fetch.
package domain
