package redis

import (
	"context"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/metrics"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
)

func setupCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Host, cfg.Port = host, port
	c, err := NewCache(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConfig_Addr(t *testing.T) {
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
}

type countingReader struct {
	calls atomic.Int32
	ach   *progress.Achievement
}

func (r *countingReader) Get(_ context.Context, id progress.AchievementID) (*progress.Achievement, error) {
	r.calls.Add(1)
	if id != r.ach.ID {
		return nil, shared.ErrAchievementNotFound
	}
	c := *r.ach
	return &c, nil
}

func TestAchievementCache_ReadThrough(t *testing.T) {
	cache := setupCache(t)
	m := metrics.New("test")
	ctx := context.Background()

	// Unique id per run so stale keys from earlier runs do not hit.
	id := progress.AchievementID(time.Now().UnixNano())
	t.Cleanup(func() { _ = cache.Delete(context.Background(), achievementKey(id)) })

	src := &countingReader{ach: &progress.Achievement{
		ID: id, Owner: "alice", Category: progress.CategoryStreak, Milestone: 7,
		Description: "Seven days", AwardedAt: time.Now().UTC().Truncate(time.Second),
	}}
	ac := NewAchievementCache(cache, src, time.Minute, m, logger.Nop())

	first, err := ac.Get(ctx, id)
	require.NoError(t, err)
	second, err := ac.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))

	_, err = ac.Get(ctx, id+1)
	assert.ErrorIs(t, err, shared.ErrAchievementNotFound)
}

func TestLocker_ExclusiveAndReleased(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()
	user := shared.UserID("lock-" + uuid.NewString())

	l := NewLocker(cache, 5*time.Second, 100*time.Millisecond, logger.Nop())
	release, err := l.Lock(ctx, user)
	require.NoError(t, err)

	_, err = l.Lock(ctx, user)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)

	release()
	release2, err := l.Lock(ctx, user)
	require.NoError(t, err)
	release2()
}

func TestAchievementCache_BypassesUnreachableRedis(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	m := metrics.New("test")
	src := &countingReader{ach: &progress.Achievement{ID: 9, Owner: "alice", Category: progress.CategoryVariety, Milestone: 5}}
	ac := NewAchievementCache(NewCacheFromClient(client), src, time.Minute, m, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		got, err := ac.Get(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Owner.String())
	}

	assert.Equal(t, int32(4), src.calls.Load())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheLookups.WithLabelValues("error")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheLookups.WithLabelValues("bypass")))
}
