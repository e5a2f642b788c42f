package domain

import "time"

// AssessmentEvent is published each time a session applies a new observation.
type AssessmentEvent struct {
	SessionID   string      `json:"session_id"`
	PlaceName   string      `json:"place_name"`
	Coordinates Coordinates `json:"coordinates"`
	Level       RiskLevel   `json:"level"`
	Score       float64     `json:"score"`
	Temperature float64     `json:"temperature"`
	Humidity    float64     `json:"humidity"`
	WindSpeed   float64     `json:"wind_speed"`
	ObservedAt  time.Time   `json:"observed_at,omitzero"`
	AssessedAt  time.Time   `json:"assessed_at"`
}

// NewAssessmentEvent combines an observation and its assessment into an event.
func NewAssessmentEvent(sessionID string, obs WeatherObservation, a RiskAssessment, at time.Time) AssessmentEvent {
	return AssessmentEvent{
		SessionID:   sessionID,
		PlaceName:   obs.PlaceName,
		Coordinates: a.Coordinates,
		Level:       a.Level,
		Score:       a.Score,
		Temperature: obs.Temperature,
		Humidity:    obs.Humidity,
		WindSpeed:   obs.WindSpeed,
		ObservedAt:  obs.ObservedAt,
		AssessedAt:  at.UTC(),
	}
}
