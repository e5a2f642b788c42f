package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Session behaviour.
	DebounceInterval   time.Duration
	SessionIdleTimeout time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxBaseURL   string
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	SuggestionLimit int

	// OpenWeather configuration.
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	OpenWeatherTimeout time.Duration

	// Optional shared suggestion cache. Empty RedisAddr keeps the in-process LRU.
	RedisAddr     string
	RedisCacheTTL time.Duration

	// Optional assessment stream.
	KafkaEnabled         bool
	KafkaBrokers         []string
	KafkaAssessmentTopic string
	KafkaPublishTimeout  time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// Missing API credentials are not an error: lookups fail per request instead.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MapboxToken:   os.Getenv("MAPBOX_TOKEN"),
		MapboxBaseURL: sharedcfg.EnvOrDefault("MAPBOX_BASE_URL", "https://api.mapbox.com/geocoding/v5/mapbox.places"),

		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL: sharedcfg.EnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5/weather"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		KafkaEnabled:         os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:         sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAssessmentTopic: sharedcfg.EnvOrDefault("KAFKA_ASSESSMENT_TOPIC", "fire-risk-assessments"),
	}

	if cfg.DebounceInterval, err = parsePositiveDuration("DEBOUNCE_INTERVAL", "300ms"); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = parsePositiveDuration("SESSION_IDLE_TIMEOUT", "30m"); err != nil {
		return nil, err
	}
	if cfg.MapboxTimeout, err = parsePositiveDuration("MAPBOX_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.OpenWeatherTimeout, err = parsePositiveDuration("OPENWEATHER_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RedisCacheTTL, err = parsePositiveDuration("REDIS_CACHE_TTL", "1h"); err != nil {
		return nil, err
	}
	if cfg.KafkaPublishTimeout, err = parsePositiveDuration("KAFKA_PUBLISH_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.MapboxCacheSize, err = parsePositiveInt("MAPBOX_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.SuggestionLimit, err = parsePositiveInt("SUGGESTION_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.SuggestionLimit > 10 {
		return nil, errors.New("SUGGESTION_LIMIT must be at most 10")
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaAssessmentTopic == "" {
			return nil, errors.New("KAFKA_ASSESSMENT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
