package bootstrap

import (
	"context"
	"time"

	"jobboard/config"
	"jobboard/core"
	"jobboard/storage"
	"jobboard/util"
	"jobboard/util/goroutine"

	"go.uber.org/zap"
)

const (
	indexTimeout     = 30 * time.Second
	redisPingTimeout = 3 * time.Second
	redisPoolSize    = 10
)

// StorageComponents holds the database handle and the stores built on it.
type StorageComponents struct {
	DB    *storage.MongoDB
	Jobs  *storage.JobStorage
	Users *storage.UserStorage
}

// InitDatabase creates the MongoDB client and stores, then connects in the
// background. The caller does not wait: the server starts whether or not
// the database is reachable. A panic in the connect goroutine goes to onPanic.
func InitDatabase(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger, onPanic goroutine.PanicHandler) (*StorageComponents, error) {
	db, err := storage.NewMongoDB(cfg, sugar)
	if err != nil {
		return nil, err
	}

	components := &StorageComponents{
		DB:    db,
		Jobs:  storage.NewJobStorage(db, sugar),
		Users: storage.NewUserStorage(db, sugar),
	}

	goroutine.Go("mongodb-connect", sugar, onPanic, func() {
		connectDatabase(ctx, cfg, components, sugar)
	})
	return components, nil
}

func connectDatabase(ctx context.Context, cfg *config.Config, c *StorageComponents, sugar *zap.SugaredLogger) {
	if err := c.DB.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		sugar.Errorw("Database unavailable, continuing without it",
			"hint", ClassifyConnectionError(err, config.RedactURI(cfg.Database.URI)),
			"error", util.SanitizeError(err))
		return
	}

	indexCtx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()
	if err := c.Jobs.EnsureIndexes(indexCtx); err != nil {
		sugar.Warnw("Failed to create job indexes", "error", err)
	}
	if err := c.Users.EnsureIndexes(indexCtx); err != nil {
		sugar.Warnw("Failed to create user indexes", "error", err)
	}
}

// InitRedis connects the shared rate-limit store when one is configured.
// An unreachable server is not fatal: the limiter falls back to memory
// per request until Redis answers again.
func InitRedis(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) *core.RedisCache {
	if cfg.RateLimit.RedisAddr == "" {
		sugar.Info("Rate limiting uses process memory")
		return nil
	}

	cache := core.NewRedisCache(cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisPassword,
		cfg.RateLimit.RedisDB, redisPoolSize, sugar)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		sugar.Warnw("Redis unreachable, rate limiting will fall back to memory",
			"addr", cfg.RateLimit.RedisAddr,
			"error", util.SanitizeError(err))
		return cache
	}

	sugar.Infow("Connected to Redis", "addr", cfg.RateLimit.RedisAddr)
	return cache
}

// closeStorage releases connections during graceful shutdown
func closeStorage(ctx context.Context, c *StorageComponents, redis *core.RedisCache, sugar *zap.SugaredLogger) {
	if c != nil && c.DB != nil {
		if err := c.DB.Close(ctx); err != nil {
			sugar.Warnw("Failed to close MongoDB client", "error", err)
		}
	}
	if redis != nil {
		if err := redis.Close(); err != nil {
			sugar.Warnw("Failed to close Redis client", "error", err)
		}
	}
}
