package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

const (
	redisKeyPrefix   = "reno-purchases:lock:"
	defaultRedisTTL  = 30 * time.Second
	retryBackoff     = 100 * time.Millisecond
	maxRetryAttempts = 50
)

// RedisLocker holds critical sections across processes with a Redis lease
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker wraps an existing go-redis client
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		logger: logger,
	}
}

// Lock obtains the lease for key, retrying with linear backoff until ctx is done
// or the attempts run out
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lease, err := l.client.Obtain(ctx, redisKeyPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryBackoff), maxRetryAttempts),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s is locked by another operation", entity.ErrInvalidState, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func() {
		// background: the caller's ctx may already be cancelled
		if err := lease.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

var _ port.Locker = (*RedisLocker)(nil)
