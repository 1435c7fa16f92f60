package progress

import (
	"context"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/activity"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// AggregateStore holds one UserAggregate per user.
type AggregateStore interface {
	// Get returns the user's aggregate, or a zero-valued default when none is stored.
	// It never returns a not-found error.
	Get(ctx context.Context, user shared.UserID) (*UserAggregate, error)

	// Put overwrites the user's aggregate.
	Put(ctx context.Context, aggregate *UserAggregate) error
}

// AchievementReader resolves ledger entries by id.
type AchievementReader interface {
	// Get returns the achievement or shared.ErrAchievementNotFound.
	Get(ctx context.Context, id AchievementID) (*Achievement, error)
}

// Ledger is the append-only store of awarded achievements.
type Ledger interface {
	AchievementReader

	// Create assigns the next id from a strictly increasing counter and stores the entry.
	// Ids are never reused, even when the surrounding unit of work rolls back.
	Create(ctx context.Context, owner shared.UserID, award Award) (*Achievement, error)

	// ListByOwner returns the user's achievements in award order.
	ListByOwner(ctx context.Context, owner shared.UserID) ([]*Achievement, error)
}

// Stores is the set of transactional stores handed to a unit of work.
type Stores struct {
	Events     activity.EventStore
	Aggregates AggregateStore
	Ledger     Ledger
}

// UnitOfWork runs fn atomically for one user. Calls for the same user are serialized;
// calls for different users may run in parallel. When fn returns an error nothing it
// wrote through stores is visible afterwards.
type UnitOfWork interface {
	Do(ctx context.Context, user shared.UserID, fn func(ctx context.Context, stores Stores) error) error
}

// UserLocker serializes work for one user across processes.
type UserLocker interface {
	// Lock blocks until the user's lock is held or ctx is done.
	Lock(ctx context.Context, user shared.UserID) (release func(), err error)
}
