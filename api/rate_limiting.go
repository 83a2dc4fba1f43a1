package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"jobboard/config"
	"jobboard/core"
	"jobboard/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiterTier labels which limit rejected a request
type RateLimiterTier string

const (
	RateLimitTierClient RateLimiterTier = "client" // sliding window per client IP
	RateLimitTierGlobal RateLimiterTier = "global" // token bucket for the whole process
)

// RateLimitMessage is returned with every 429
const RateLimitMessage = "Too many requests, please try again later."

// WindowStore records hits in a sliding window keyed by client
type WindowStore interface {
	Hit(ctx context.Context, key string, now time.Time) (core.WindowState, error)
}

// windowLog is the list of accepted hits for one client, oldest first
type windowLog struct {
	mu   sync.Mutex
	hits []time.Time
}

// MemoryWindowStore keeps windows in a bounded LRU. The least recently
// seen client is evicted once MaxClients is reached.
type MemoryWindowStore struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *windowLog]
	window  time.Duration
	limit   int
}

// NewMemoryWindowStore creates an in-process store
func NewMemoryWindowStore(window time.Duration, limit, maxClients int) (*MemoryWindowStore, error) {
	entries, err := lru.New[string, *windowLog](maxClients)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit cache: %w", err)
	}
	return &MemoryWindowStore{entries: entries, window: window, limit: limit}, nil
}

// Hit implements WindowStore
func (s *MemoryWindowStore) Hit(_ context.Context, key string, now time.Time) (core.WindowState, error) {
	s.mu.Lock()
	log, ok := s.entries.Get(key)
	if !ok {
		log = &windowLog{}
		s.entries.Add(key, log)
	}
	s.mu.Unlock()

	log.mu.Lock()
	defer log.mu.Unlock()

	cutoff := now.Add(-s.window)
	kept := log.hits[:0]
	for _, t := range log.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	log.hits = kept

	allowed := len(log.hits) < s.limit
	if allowed {
		log.hits = append(log.hits, now)
	}

	oldest := now
	if len(log.hits) > 0 {
		oldest = log.hits[0]
	}
	return core.WindowState{Allowed: allowed, Count: len(log.hits), Oldest: oldest}, nil
}

// Len returns the number of tracked clients
func (s *MemoryWindowStore) Len() int {
	return s.entries.Len()
}

// RedisWindowStore shares windows between instances through a Redis sorted set
type RedisWindowStore struct {
	redis  *core.RedisCache
	window time.Duration
	limit  int
}

// NewRedisWindowStore creates a store backed by redis
func NewRedisWindowStore(redis *core.RedisCache, window time.Duration, limit int) *RedisWindowStore {
	return &RedisWindowStore{redis: redis, window: window, limit: limit}
}

// Hit implements WindowStore
func (s *RedisWindowStore) Hit(ctx context.Context, key string, now time.Time) (core.WindowState, error) {
	return s.redis.SlidingWindowHit(ctx, core.GetRateLimitCacheKey(key), now, s.window, s.limit)
}

// RateLimiter applies the global token bucket and the per-client window
type RateLimiter struct {
	window   time.Duration
	limit    int
	store    WindowStore
	fallback *MemoryWindowStore
	global   *rate.Limiter
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewRateLimiter builds the limiter described by cfg. When redis is nil the
// in-memory store is authoritative; otherwise it only serves as fallback.
func NewRateLimiter(cfg *config.Config, redis *core.RedisCache, logger *zap.SugaredLogger) (*RateLimiter, error) {
	rlCfg := cfg.RateLimit
	memory, err := NewMemoryWindowStore(rlCfg.Window, rlCfg.Max, rlCfg.MaxClients)
	if err != nil {
		return nil, err
	}

	rl := &RateLimiter{
		window:   rlCfg.Window,
		limit:    rlCfg.Max,
		store:    memory,
		fallback: memory,
		logger:   logger,
		now:      time.Now,
	}
	if redis != nil {
		rl.store = NewRedisWindowStore(redis, rlCfg.Window, rlCfg.Max)
	}
	if rlCfg.GlobalPerSecond > 0 {
		rl.global = rate.NewLimiter(rate.Limit(rlCfg.GlobalPerSecond), rlCfg.GlobalPerSecond)
	}
	return rl, nil
}

// Hit evaluates one request for key. A failing shared store degrades to the
// local one instead of rejecting or admitting blindly.
func (rl *RateLimiter) Hit(ctx context.Context, key string) core.WindowState {
	now := rl.now()
	state, err := rl.store.Hit(ctx, key, now)
	if err == nil {
		return state
	}

	metrics.RateLimitStoreFallbacks.Inc()
	rl.logger.Warnw("Rate limit store failed, falling back to memory",
		"error", err)
	state, _ = rl.fallback.Hit(ctx, key, now)
	return state
}

// AllowGlobal reports whether the process-wide bucket admits one more request
func (rl *RateLimiter) AllowGlobal() bool {
	return rl.global == nil || rl.global.Allow()
}

// resetSeconds is the time until the oldest hit leaves the window
func (rl *RateLimiter) resetSeconds(state core.WindowState) int {
	remaining := state.Oldest.Add(rl.window).Sub(rl.now())
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

// rateLimitStage enforces both tiers and always sets the RateLimit-* headers
// on per-client decisions.
func (a *API) rateLimitStage() Stage {
	rl := a.limiter
	policy := fmt.Sprintf("%d;w=%d", rl.limit, int(rl.window.Seconds()))

	return StageFunc("rate_limit", func(w http.ResponseWriter, r *http.Request) Result {
		if !rl.AllowGlobal() {
			metrics.RateLimitRejections.WithLabelValues(string(RateLimitTierGlobal)).Inc()
			w.Header().Set("Retry-After", "1")
			return Fail(core.NewAppError(RateLimitMessage, http.StatusTooManyRequests))
		}

		key := clientIP(r, a.config.Server.TrustProxy)
		state := rl.Hit(r.Context(), key)
		reset := rl.resetSeconds(state)

		h := w.Header()
		h.Set("RateLimit-Policy", policy)
		h.Set("RateLimit-Limit", strconv.Itoa(rl.limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(max(0, rl.limit-state.Count)))
		h.Set("RateLimit-Reset", strconv.Itoa(reset))

		if state.Allowed {
			return Next(nil)
		}

		metrics.RateLimitRejections.WithLabelValues(string(RateLimitTierClient)).Inc()
		a.logger.Warnw("Rate limit exceeded",
			"request_id", GetRequestIDOrDefault(r.Context()),
			"client", key,
			"path", r.URL.Path)
		h.Set("Retry-After", strconv.Itoa(reset))
		return Fail(core.NewAppError(RateLimitMessage, http.StatusTooManyRequests))
	})
}
