package openweather

import (
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
)

// OpenWeather current weather response, limited to the fields consumed.
// Pointers distinguish a missing field from a zero reading.

type response struct {
	Name  string     `json:"name"`
	Dt    int64      `json:"dt"`
	Coord *coord     `json:"coord" validate:"required"`
	Main  *mainBlock `json:"main" validate:"required"`
	Wind  *wind      `json:"wind" validate:"required"`
}

type coord struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lon *float64 `json:"lon" validate:"required,longitude"`
}

type mainBlock struct {
	Temp     *float64 `json:"temp" validate:"required"`
	Humidity *float64 `json:"humidity" validate:"required,gte=0,lte=100"`
}

type wind struct {
	Speed *float64 `json:"speed" validate:"required,gte=0"`
}

func (r response) toObservation() domain.WeatherObservation {
	obs := domain.WeatherObservation{
		PlaceName:   r.Name,
		Coordinates: domain.Coordinates{Lat: *r.Coord.Lat, Lon: *r.Coord.Lon},
		Temperature: *r.Main.Temp,
		Humidity:    *r.Main.Humidity,
		WindSpeed:   *r.Wind.Speed,
	}
	if r.Dt > 0 {
		obs.ObservedAt = time.Unix(r.Dt, 0).UTC()
	}
	return obs
}
