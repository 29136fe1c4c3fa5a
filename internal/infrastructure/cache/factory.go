package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	appexport "github.com/shopsight/backend/internal/application/export"
	"github.com/shopsight/backend/internal/infrastructure/config"
)

// BackoffStoreFactory creates per-shop backoff stores based on configuration
type BackoffStoreFactory struct {
	redisConfig           config.RedisConfig
	base                  time.Duration
	cap                   time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// BackoffStoreFactoryOption is a functional option for configuring the factory
type BackoffStoreFactoryOption func(*BackoffStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) BackoffStoreFactoryOption {
	return func(f *BackoffStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory store
// when Redis is unavailable. Default is true (allow fallback).
func WithInMemoryFallback(allow bool) BackoffStoreFactoryOption {
	return func(f *BackoffStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewBackoffStoreFactory creates a new factory
func NewBackoffStoreFactory(redisCfg config.RedisConfig, base, cap time.Duration, opts ...BackoffStoreFactoryOption) *BackoffStoreFactory {
	f := &BackoffStoreFactory{
		redisConfig:           redisCfg,
		base:                  base,
		cap:                   cap,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisStore creates a Redis-based backoff store
func (f *BackoffStoreFactory) CreateRedisStore() (*RedisBackoffStore, error) {
	redisCfg := RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}

	store, err := NewRedisBackoffStore(redisCfg, f.base, f.cap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis backoff store: %w", err)
	}

	return store, nil
}

// CreateInMemoryStore creates an in-memory backoff store.
// This is suitable for single-instance deployments and testing.
func (f *BackoffStoreFactory) CreateInMemoryStore() *InMemoryBackoffStore {
	return NewInMemoryBackoffStore(f.base, f.cap)
}

// CreateStore creates a backoff store based on whether Redis is available.
// It tries Redis first and falls back to in-memory if Redis is not available
// and the fallback is allowed.
func (f *BackoffStoreFactory) CreateStore() (appexport.BackoffStore, error) {
	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis backoff store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for backoff state but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory backoff store. "+
		"Distributed schedulers will throttle shops independently.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
