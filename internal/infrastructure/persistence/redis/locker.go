package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/retry"
)

// errLockHeld is retried by the poll loop.
var errLockHeld = errors.New("redis: lock held")

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a progress.UserLocker backed by SET NX PX.
type Locker struct {
	client  *redis.Client
	ttl     time.Duration
	maxWait time.Duration
	log     *logger.Logger
}

// NewLocker creates a locker. ttl bounds how long a crashed holder blocks others;
// maxWait bounds how long Lock polls before giving up.
func NewLocker(cache *Cache, ttl, maxWait time.Duration, log *logger.Logger) *Locker {
	if log == nil {
		log = logger.Nop()
	}
	return &Locker{client: cache.Client(), ttl: ttl, maxWait: maxWait, log: log.Named("user_locker")}
}

// Lock polls until the lock is acquired, maxWait elapses, or ctx is done.
func (l *Locker) Lock(ctx context.Context, user shared.UserID) (func(), error) {
	key := PrefixLock + string(user)
	token := uuid.NewString()

	err := retry.LockRetrier(l.maxWait, func(err error) bool { return errors.Is(err, errLockHeld) }).
		Do(ctx, func(ctx context.Context) error {
			ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
			if err != nil {
				return err
			}
			if !ok {
				return errLockHeld
			}
			return nil
		})
	if err != nil {
		if errors.Is(err, errLockHeld) {
			return nil, shared.WrapError("redis", "Lock", shared.ErrConcurrentModification, "user lock busy", err)
		}
		return nil, shared.WrapError("redis", "Lock", shared.ErrServiceUnavailable, "user lock failed", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Warn("lock release failed", logger.UserID(string(user)), logger.Err(err))
		}
	}, nil
}

var _ progress.UserLocker = (*Locker)(nil)
