package redis

import (
	"context"
	"errors"
	"time"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/metrics"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/circuitbreaker"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
)

// DefaultAchievementTTL is how long a ledger entry stays cached.
const DefaultAchievementTTL = 24 * time.Hour

// AchievementCache is a read-through progress.AchievementReader.
// Ledger entries are immutable, so cached copies never need invalidation.
// While Redis keeps failing the breaker opens and reads go straight to next.
type AchievementCache struct {
	cache   *Cache
	next    progress.AchievementReader
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewAchievementCache wraps next. A nil m disables lookup metrics.
func NewAchievementCache(cache *Cache, next progress.AchievementReader, ttl time.Duration, m *metrics.Metrics, log *logger.Logger) *AchievementCache {
	if ttl <= 0 {
		ttl = DefaultAchievementTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("achievement_cache")
	breaker := circuitbreaker.CacheBreaker("redis-achievements",
		func(err error) bool { return !errors.Is(err, ErrCacheMiss) },
		func(name string, from, to circuitbreaker.State) {
			log.Warn("cache circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	)
	return &AchievementCache{cache: cache, next: next, ttl: ttl, breaker: breaker, metrics: m, log: log}
}

func achievementKey(id progress.AchievementID) string {
	return PrefixAchievement + id.String()
}

// Get returns the cached entry, falling back to the wrapped reader on a miss.
// Cache errors degrade to a read from the wrapped reader.
func (c *AchievementCache) Get(ctx context.Context, id progress.AchievementID) (*progress.Achievement, error) {
	var cached progress.Achievement
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Get(ctx, achievementKey(id), &cached)
	})
	switch {
	case err == nil:
		c.observe("hit")
		return &cached, nil
	case errors.Is(err, ErrCacheMiss):
		c.observe("miss")
	case circuitbreaker.IsRejected(err):
		c.observe("bypass")
		return c.next.Get(ctx, id)
	default:
		c.observe("error")
		c.log.Warn("cache read failed", logger.AchievementID(uint64(id)), logger.Err(err))
	}

	ach, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, achievementKey(id), ach, c.ttl)
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		c.log.Warn("cache write failed", logger.AchievementID(uint64(id)), logger.Err(err))
	}
	return ach, nil
}

func (c *AchievementCache) observe(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

var _ progress.AchievementReader = (*AchievementCache)(nil)
