package domain

// RiskLevel is the three-level fire risk category.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Score weights and thresholds. See the package documentation.
const (
	temperatureWeight = 1.5
	humidityWeight    = 0.5
	windWeight        = 2.0

	highThreshold   = 60.0
	mediumThreshold = 40.0
)

// Score returns the weighted fire risk score for the given readings.
func Score(temperature, humidity, windSpeed float64) float64 {
	return temperatureWeight*temperature - humidityWeight*humidity + windWeight*windSpeed
}

// Classify maps temperature (°C), relative humidity (%) and wind speed (m/s)
// to a risk level. Boundaries are exclusive: a score of exactly 60 is medium
// and exactly 40 is low.
func Classify(temperature, humidity, windSpeed float64) RiskLevel {
	return levelForScore(Score(temperature, humidity, windSpeed))
}

func levelForScore(score float64) RiskLevel {
	switch {
	case score > highThreshold:
		return RiskHigh
	case score > mediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Advisory returns the guidance shown alongside a risk level.
func (l RiskLevel) Advisory() string {
	switch l {
	case RiskHigh:
		return "Fire risk is high. Be extremely cautious and avoid any activity that could start a fire."
	case RiskMedium:
		return "Fire risk is medium. Take care with fire-related activities."
	case RiskLow:
		return "Fire risk is low. Conditions are favourable, but always practise fire safety."
	default:
		return ""
	}
}

// RiskAssessment is the fire risk at an observation's location.
type RiskAssessment struct {
	Coordinates Coordinates `json:"coordinates"`
	Level       RiskLevel   `json:"level"`
	Score       float64     `json:"score"`
	Advisory    string      `json:"advisory"`
}

// Assess projects an observation onto its risk assessment.
func Assess(obs WeatherObservation) RiskAssessment {
	score := Score(obs.Temperature, obs.Humidity, obs.WindSpeed)
	level := levelForScore(score)
	return RiskAssessment{
		Coordinates: obs.Coordinates,
		Level:       level,
		Score:       score,
		Advisory:    level.Advisory(),
	}
}
