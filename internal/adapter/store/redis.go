package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "rtc:"

// Redis persists values across runs; keys are namespaced with "rtc:".
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedis(addr string, logger *slog.Logger) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("store: redis address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	return &Redis{
		client: client,
		logger: logger.With(slog.String("component", "redis_store")),
	}, nil
}

// Ping checks reachability.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *Redis) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *Redis) Close() error {
	s.logger.Debug("REDIS_STORE_CLOSED")
	return s.client.Close()
}
