package domain

import "time"

// msToKmh converts metres per second to kilometres per hour.
const msToKmh = 3.6

// WeatherObservation is a current-conditions reading for a resolved place.
type WeatherObservation struct {
	PlaceName   string      `json:"place_name"`
	Coordinates Coordinates `json:"coordinates"`
	Temperature float64     `json:"temperature"` // °C
	Humidity    float64     `json:"humidity"`    // %
	WindSpeed   float64     `json:"wind_speed"`  // m/s
	ObservedAt  time.Time   `json:"observed_at,omitzero"`
}

// WindSpeedKmh returns the wind speed in km/h.
func (o WeatherObservation) WindSpeedKmh() float64 {
	return o.WindSpeed * msToKmh
}
