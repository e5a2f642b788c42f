// Package rediscache provides a Redis-backed suggestion store so several
// service replicas share autocomplete results.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
)

const keyPrefix = "fire-risk:"

// Store keeps suggestion lists in Redis as JSON with a fixed TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to Redis at addr and verifies the connection with PING.
func New(ctx context.Context, addr string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	logger.Info("redis suggestion cache connected", "addr", addr, "ttl", ttl)
	return &Store{client: client, ttl: ttl, logger: logger}, nil
}

// Get returns the cached list for key. Redis or decode failures are logged
// and reported as a miss.
func (s *Store) Get(ctx context.Context, key string) ([]domain.PlaceSuggestion, bool) {
	val, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("redis get failed", "key", key, "error", err)
		}
		return nil, false
	}

	var out []domain.PlaceSuggestion
	if err := json.Unmarshal(val, &out); err != nil {
		s.logger.Warn("redis cached value corrupt", "key", key, "error", err)
		return nil, false
	}
	return out, true
}

// Put stores value under key with the configured TTL.
func (s *Store) Put(ctx context.Context, key string, value []domain.PlaceSuggestion) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("redis marshal failed", "key", key, "error", err)
		return
	}
	if err := s.client.Set(ctx, keyPrefix+key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("redis set failed", "key", key, "error", err)
	}
}

// Close releases the Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
