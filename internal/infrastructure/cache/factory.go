package cache

import (
	"context"
	"fmt"

	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LockerFactory picks the action locker implementation from configuration
type LockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// LockerFactoryOption is a functional option for configuring the factory
type LockerFactoryOption func(*LockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory locker. Default is true.
func WithInMemoryFallback(allow bool) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockerFactory creates a new factory
func NewLockerFactory(cfg config.RedisConfig, opts ...LockerFactoryOption) *LockerFactory {
	f := &LockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateLocker returns a Redis-backed locker when Redis is enabled and
// reachable. The returned client is nil for the in-memory locker and must be
// closed by the caller otherwise.
func (f *LockerFactory) CreateLocker(ctx context.Context) (shared.Locker, *redis.Client, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory action lock")
		return NewInMemoryActionLocker(), nil, nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis action lock", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisActionLocker(client), client, nil
	}
	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("Redis required for action locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory action lock. "+
		"Concurrent collections actions are only serialized within this process.",
		zap.Error(err),
	)
	return NewInMemoryActionLocker(), nil, nil
}
