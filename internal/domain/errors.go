package domain

import (
	"errors"
	"fmt"
)

// User-facing weather failure messages.
const (
	MsgWeatherFetchFailed = "failed to fetch weather data"
	MsgUnknownError       = "unknown error occurred"
)

var (
	// ErrSuggestionNotFound is returned when selecting an id that is not in
	// the current suggestion list.
	ErrSuggestionNotFound = errors.New("suggestion not found")

	// ErrMissingCredential is the cause recorded when a provider has no
	// access token configured.
	ErrMissingCredential = errors.New("access credential not configured")
)

// WeatherFetchError is a failed weather lookup. Message is safe to show to
// the user; Cause carries the underlying failure for logs.
type WeatherFetchError struct {
	Message string
	Cause   error
}

func (e *WeatherFetchError) Error() string {
	return e.Message
}

func (e *WeatherFetchError) Unwrap() error {
	return e.Cause
}

// NewWeatherStatusError reports a non-success HTTP status from the weather
// provider. The user-facing message is always the generic one.
func NewWeatherStatusError(status int) *WeatherFetchError {
	return &WeatherFetchError{
		Message: MsgWeatherFetchFailed,
		Cause:   fmt.Errorf("weather provider returned status %d", status),
	}
}

// NewWeatherFetchError wraps a transport or decode failure, keeping the
// underlying message when there is one.
func NewWeatherFetchError(cause error) *WeatherFetchError {
	msg := MsgUnknownError
	if cause != nil && cause.Error() != "" {
		msg = cause.Error()
	}
	return &WeatherFetchError{Message: msg, Cause: cause}
}

// AsWeatherFetchError returns err as a *WeatherFetchError, wrapping it if it
// is not one already. It returns nil for a nil error.
func AsWeatherFetchError(err error) *WeatherFetchError {
	if err == nil {
		return nil
	}
	var wfe *WeatherFetchError
	if errors.As(err, &wfe) {
		return wfe
	}
	return NewWeatherFetchError(err)
}

// SuggestionFetchError is a failed geocoding autocomplete lookup. It is
// logged but never shown to the user.
type SuggestionFetchError struct {
	Query string
	Cause error
}

func (e *SuggestionFetchError) Error() string {
	return fmt.Sprintf("fetch suggestions for %q: %v", e.Query, e.Cause)
}

func (e *SuggestionFetchError) Unwrap() error {
	return e.Cause
}
