package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// slidingWindowScript atomically trims a sorted-set request log to the window,
// records the hit if the key is under its limit and reports the resulting state.
// Scores are unix milliseconds.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// WindowState describes a key's sliding window after a hit was evaluated.
type WindowState struct {
	Allowed bool
	Count   int
	Oldest  time.Time
}

// RedisCache wraps the Redis client used for state shared between instances
type RedisCache struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(addr, password string, db, poolSize int, logger *zap.SugaredLogger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	return &RedisCache{
		client: client,
		logger: logger,
	}
}

// Ping tests the Redis connection
func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// SlidingWindowHit evaluates one request against the sliding window stored at key.
// The hit is only recorded when it is allowed, so a key never holds more than limit entries.
func (rc *RedisCache) SlidingWindowHit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (WindowState, error) {
	member := fmt.Sprintf("%d:%s", now.UnixMilli(), uuid.NewString())
	res, err := slidingWindowScript.Run(ctx, rc.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, member).Int64Slice()
	if err != nil {
		rc.logger.Errorf("Sliding window update failed for key %s: %v", key, err)
		return WindowState{}, err
	}
	if len(res) != 3 {
		return WindowState{}, fmt.Errorf("unexpected sliding window reply length %d", len(res))
	}

	return WindowState{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
		Oldest:  time.UnixMilli(res[2]),
	}, nil
}

// Cache key prefixes
const (
	CacheKeyRateLimitPrefix = "ratelimit:"
)

// GetRateLimitCacheKey generates a cache key for a rate limit client
func GetRateLimitCacheKey(clientKey string) string {
	return CacheKeyRateLimitPrefix + clientKey
}
