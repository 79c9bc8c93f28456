package repo

import (
	"MediaVault/config"
	"MediaVault/internal/logger"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis stays nil when REDIS_ENABLED is off; callers must tolerate that.
var Redis *redis.Client

var ErrLockBusy = errors.New("lock is busy")

// RedisLock is a single-holder lease identified by a random token.
type RedisLock struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

// InitRedis initializes Redis client.
func InitRedis() {
	log := logger.L().With("component", "redis")
	if !config.AppConfig.RedisEnabled {
		log.Info("redis disabled")
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.AppConfig.RedisHost, config.AppConfig.RedisPort),
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Fatal("init redis fail", "error", err)
	}
	log.Info("init redis success")
	Redis = client
}

// NewRedisLock creates a Redis lock helper.
func NewRedisLock(rdb *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		rdb: rdb,
		key: key,
		ttl: ttl,
	}
}

// Lock acquires a Redis-based lock.
func (l *RedisLock) Lock(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockBusy
	}
	l.token = token
	return nil
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Unlock releases a Redis-based lock.
func (l *RedisLock) Unlock(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	_, err := unlockScript.Run(
		ctx,
		l.rdb,
		[]string{l.key},
		l.token,
	).Result()
	l.token = ""
	return err
}

// PurgeLockKey names the lock held while one asset is being purged.
func PurgeLockKey(assetID uint64) string {
	return fmt.Sprintf("lock:purge:%d", assetID)
}

// WithLock runs fn while holding key. Without Redis, fn runs unguarded.
// A held lock yields ErrLockBusy and fn is not called.
func WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if Redis == nil {
		return fn(ctx)
	}
	lock := NewRedisLock(Redis, key, ttl)
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			logger.L().Warn("release lock failed", "key", key, "error", err)
		}
	}()
	return fn(ctx)
}
