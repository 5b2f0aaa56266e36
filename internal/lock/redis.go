package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"EstateSentinel/internal/logging"
)

// DefaultTTL bounds how long a crashed holder can block other processes.
const DefaultTTL = 10 * time.Minute

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisLocker is a Locker shared by every process using the same Redis.
// A held lock is refreshed every ttl/2 until released.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	prefix string
	logger logrus.FieldLogger
}

func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration, logger logrus.FieldLogger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		prefix: "lock:",
		logger: logger,
	}
}

func (r *RedisLocker) TryLock(ctx context.Context, key string) (Release, error) {
	l, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain redis lock %s: %w", key, err)
	}
	return keepAlive(l, r.ttl, r.logger.WithField("key", key)), nil
}

// lease is the part of *redislock.Lock a holder needs.
type lease interface {
	Refresh(ctx context.Context, ttl time.Duration, opt *redislock.Options) error
	Release(ctx context.Context) error
}

// keepAlive refreshes l every ttl/2 and returns a Release that stops the
// refresher and frees the lease exactly once.
func keepAlive(l lease, ttl time.Duration, logger logrus.FieldLogger) Release {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := l.Refresh(ctx, ttl, nil)
				cancel()
				if errors.Is(err, redislock.ErrNotObtained) {
					logger.Warn("redis lock lost before release")
					return
				}
				if err != nil {
					logger.WithError(err).Warn("failed to refresh redis lock")
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// The caller's context may already be cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logger.WithError(err).Warn("failed to release redis lock")
			}
		})
	}
}
