package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Viewport defaults.
const (
	DefaultLatitude  = -15.7801
	DefaultLongitude = -47.9292
	DefaultZoom      = 4.0
	FocusZoom        = 10.0
	MaxZoom          = 22.0
)

// MinSuggestionQueryLength is the longest query that never produces suggestions.
const MinSuggestionQueryLength = 2

// Coordinates represents a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LocationQuery is free text typed by the user to find a place.
type LocationQuery struct {
	Raw string
}

// Normalized returns the diacritic-stripped form sent to the weather provider.
func (q LocationQuery) Normalized() string {
	return NormalizeQuery(q.Raw)
}

// Submittable reports whether the query may be sent to the weather provider.
func (q LocationQuery) Submittable() bool {
	return strings.TrimSpace(q.Raw) != ""
}

// WantsSuggestions reports whether the query is long enough to autocomplete.
func (q LocationQuery) WantsSuggestions() bool {
	return utf8.RuneCountInString(q.Raw) > MinSuggestionQueryLength
}

// PlaceSuggestion is a geocoding candidate offered while the user types.
type PlaceSuggestion struct {
	ID          string      `json:"id"`
	Address     string      `json:"address"` // full display address, e.g. "Brasília, Federal District, Brazil"
	Name        string      `json:"name"`    // short display name, e.g. "Brasília"
	Coordinates Coordinates `json:"coordinates"`
}

// ViewState is the map viewport: center coordinate and zoom level.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
}

// DefaultViewState returns the viewport shown before any weather is fetched.
func DefaultViewState() ViewState {
	return ViewState{Latitude: DefaultLatitude, Longitude: DefaultLongitude, Zoom: DefaultZoom}
}

// FocusOn returns a viewport centered on c at FocusZoom.
func FocusOn(c Coordinates) ViewState {
	return ViewState{Latitude: c.Lat, Longitude: c.Lon, Zoom: FocusZoom}
}

// Validate checks that the viewport lies within geographic bounds.
func (v ViewState) Validate() error {
	if v.Latitude < -90 || v.Latitude > 90 {
		return errors.New("latitude must be between -90 and 90")
	}
	if v.Longitude < -180 || v.Longitude > 180 {
		return errors.New("longitude must be between -180 and 180")
	}
	if v.Zoom < 0 || v.Zoom > MaxZoom {
		return errors.New("zoom must be between 0 and 22")
	}
	return nil
}
