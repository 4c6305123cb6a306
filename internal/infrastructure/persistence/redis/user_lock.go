package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTED USER LOCK
// ══════════════════════════════════════════════════════════════════════════════

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// UserLockConfig configures UserLock.
type UserLockConfig struct {
	// TTL bounds how long a crashed holder can block the user.
	TTL time.Duration

	// RetryInterval is the pause between acquisition attempts.
	RetryInterval time.Duration
}

// DefaultUserLockConfig returns defaults for UserLock.
func DefaultUserLockConfig() UserLockConfig {
	return UserLockConfig{
		TTL:           30 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}
}

// UserLock implements shared.UserLocker with SET NX PX.
type UserLock struct {
	cache  *Cache
	config UserLockConfig
	logger *logger.Logger
}

var _ shared.UserLocker = (*UserLock)(nil)

// NewUserLock creates a UserLock.
func NewUserLock(cache *Cache, cfg UserLockConfig, log *logger.Logger) *UserLock {
	def := DefaultUserLockConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UserLock{
		cache:  cache,
		config: cfg,
		logger: log.With(logger.Component("user_lock")),
	}
}

// Lock polls until the lock is acquired or ctx is done. On ctx expiry the
// error matches both shared.ErrLockNotAcquired and the context error.
func (l *UserLock) Lock(ctx context.Context, userID string) (func(), error) {
	key := l.cache.key(LockKey(userID))
	token := uuid.NewString()

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.cache.client.SetNX(ctx, key, token, l.config.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", shared.ErrLockNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire user lock: %w", err)
		}
		if ok {
			return l.unlockFunc(key, token, userID), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", shared.ErrLockNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *UserLock) unlockFunc(key, token, userID string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		// The caller's ctx may already be done; release on a fresh one.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := releaseScript.Run(ctx, l.cache.client, []string{key}, token).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("failed to release user lock",
				logger.UserID(userID),
				logger.Err(err),
			)
			return
		}
		if n == 0 {
			l.logger.Warn("user lock expired before release", logger.UserID(userID))
		}
	}
}
