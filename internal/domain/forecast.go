package domain

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// HoursPerSeries is the number of points produced by SynthesizeHourly.
const HoursPerSeries = 24

// Perturbation half-widths applied around the current reading.
const (
	temperatureSpread = 2.5 // °C
	humiditySpread    = 5.0 // %
)

// HourlyPoint is one entry of the synthetic hourly series.
type HourlyPoint struct {
	Label       string  `json:"label"` // "H:00"
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// RandomSource yields uniform values in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// DefaultRandom is a RandomSource backed by the runtime's global generator.
// It is safe for concurrent use.
var DefaultRandom RandomSource = globalSource{}

// SynthesizeHourly derives a 24-point series from obs. Each point perturbs the
// observed temperature by a uniform value in [-2.5, 2.5] and the humidity by a
// uniform value in [-5, 5], rounded to one decimal place. A nil source falls
// back to DefaultRandom.
func SynthesizeHourly(obs WeatherObservation, src RandomSource) []HourlyPoint {
	if src == nil {
		src = DefaultRandom
	}
	points := make([]HourlyPoint, HoursPerSeries)
	for i := range points {
		points[i] = HourlyPoint{
			Label:       fmt.Sprintf("%d:00", i),
			Temperature: roundTenth(obs.Temperature + perturb(src, temperatureSpread)),
			Humidity:    roundTenth(obs.Humidity + perturb(src, humiditySpread)),
		}
	}
	return points
}

// perturb returns a uniform value in [-spread, spread).
func perturb(src RandomSource, spread float64) float64 {
	return src.Float64()*2*spread - spread
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
