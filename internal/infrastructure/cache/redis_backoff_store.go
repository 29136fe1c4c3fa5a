package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisBackoffStore tracks per-shop exponential backoff in Redis so every
// scheduler instance observes the same throttle state. Each shop's key holds
// its current window and expires with it; an expired key means the shop may
// be polled again and the next bump starts over at the base delay.
type RedisBackoffStore struct {
	client    *redis.Client
	keyPrefix string
	base      time.Duration
	cap       time.Duration
}

// NewRedisBackoffStore creates a Redis-backed backoff store
func NewRedisBackoffStore(cfg RedisConfig, base, cap time.Duration) (*RedisBackoffStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisBackoffStoreWithClient(client, "", base, cap), nil
}

// NewRedisBackoffStoreWithClient creates a store with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisBackoffStoreWithClient(client *redis.Client, keyPrefix string, base, cap time.Duration) *RedisBackoffStore {
	if keyPrefix == "" {
		keyPrefix = "export:backoff:"
	}
	return &RedisBackoffStore{
		client:    client,
		keyPrefix: keyPrefix,
		base:      base,
		cap:       cap,
	}
}

func (s *RedisBackoffStore) key(shopID uuid.UUID) string {
	return s.keyPrefix + shopID.String()
}

// Delay reports how long the shop must still wait; zero means go
func (s *RedisBackoffStore) Delay(ctx context.Context, shopID uuid.UUID) (time.Duration, error) {
	remaining, err := s.client.PTTL(ctx, s.key(shopID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read shop backoff: %w", err)
	}
	// PTTL reports negative durations for absent keys and keys without expiry
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Bump escalates the shop's backoff window and returns the new delay.
// Concurrent bumps may race between read and write; the loser merely
// rewrites a window of the same magnitude, so the race is harmless.
func (s *RedisBackoffStore) Bump(ctx context.Context, shopID uuid.UUID) (time.Duration, error) {
	key := s.key(shopID)

	window := s.base
	prev, err := s.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("failed to read shop backoff: %w", err)
	}
	if err == nil {
		prevMs, parseErr := strconv.ParseInt(prev, 10, 64)
		if parseErr == nil {
			window = 2 * time.Duration(prevMs) * time.Millisecond
			if window > s.cap {
				window = s.cap
			}
		}
	}

	if err := s.client.Set(ctx, key, window.Milliseconds(), window).Err(); err != nil {
		return 0, fmt.Errorf("failed to store shop backoff: %w", err)
	}
	return window, nil
}

// Reset clears the shop's backoff after a successful platform call
func (s *RedisBackoffStore) Reset(ctx context.Context, shopID uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(shopID)).Err(); err != nil {
		return fmt.Errorf("failed to clear shop backoff: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisBackoffStore) Close() error {
	return s.client.Close()
}
