package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/fire-risk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/fire-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/fire-risk-service/internal/adapter/mapbox"
	"github.com/couchcryptid/fire-risk-service/internal/adapter/openweather"
	"github.com/couchcryptid/fire-risk-service/internal/adapter/rediscache"
	"github.com/couchcryptid/fire-risk-service/internal/config"
	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
	"github.com/couchcryptid/fire-risk-service/internal/session"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MapboxToken == "" {
		logger.Warn("MAPBOX_TOKEN not set; suggestion lookups will fail")
	}
	if cfg.OpenWeatherAPIKey == "" {
		logger.Warn("OPENWEATHER_API_KEY not set; weather lookups will fail")
	}

	// Suggestion cache: shared Redis when configured, in-process LRU otherwise.
	var store mapbox.Store = mapbox.NewLRUStore(cfg.MapboxCacheSize)
	var redisStore *rediscache.Store
	if cfg.RedisAddr != "" {
		redisStore, err = rediscache.New(ctx, cfg.RedisAddr, cfg.RedisCacheTTL, logger)
		if err != nil {
			logger.Warn("redis unavailable, using in-process cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			store = redisStore
			logger.Info("redis suggestion cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisCacheTTL)
		}
	}
	suggester := mapbox.NewCachedSuggester(
		mapbox.NewClient(cfg.MapboxToken, cfg.MapboxBaseURL, cfg.SuggestionLimit, cfg.MapboxTimeout, metrics, logger),
		store, metrics,
	)

	weather := openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.OpenWeatherTimeout, metrics, logger)

	opts := session.Options{
		Suggester:        suggester,
		Weather:          weather,
		Clock:            clockwork.NewRealClock(),
		Random:           domain.DefaultRandom,
		DebounceInterval: cfg.DebounceInterval,
		PublishTimeout:   cfg.KafkaPublishTimeout,
		Logger:           logger,
		Metrics:          metrics,
	}

	var writer *kafkaadapter.AssessmentWriter
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewAssessmentWriter(cfg, logger)
		opts.Publisher = writer
		logger.Info("assessment stream enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAssessmentTopic)
	}

	manager := session.NewManager(opts, cfg.SessionIdleTimeout)
	srv := httpadapter.NewServer(cfg.HTTPAddr, manager, weather, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return manager.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
	}

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
