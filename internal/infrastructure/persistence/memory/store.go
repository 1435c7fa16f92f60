// Package memory implements the session, aggregate and ledger stores in process memory.
// It is the default storage driver for development and tests; writes made inside a unit
// of work are staged and applied together on commit.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/activity"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// Store holds all committed state.
type Store struct {
	mu           sync.RWMutex
	events       map[activity.SessionKey]activity.SessionRecord
	aggregates   map[shared.UserID]*progress.UserAggregate
	achievements map[progress.AchievementID]*progress.Achievement
	byOwner      map[shared.UserID][]progress.AchievementID
	ownedKeys    map[ownerKey]progress.AchievementID

	nextAchievementID atomic.Uint64
	locks             *KeyedLocker
}

type ownerKey struct {
	owner shared.UserID
	key   progress.MilestoneKey
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		events:       make(map[activity.SessionKey]activity.SessionRecord),
		aggregates:   make(map[shared.UserID]*progress.UserAggregate),
		achievements: make(map[progress.AchievementID]*progress.Achievement),
		byOwner:      make(map[shared.UserID][]progress.AchievementID),
		ownedKeys:    make(map[ownerKey]progress.AchievementID),
		locks:        NewKeyedLocker(),
	}
}

// Events returns an auto-committing event store.
func (s *Store) Events() activity.EventStore { return eventStore{view{s: s}} }

// Aggregates returns an auto-committing aggregate store.
func (s *Store) Aggregates() progress.AggregateStore { return aggregateStore{view{s: s}} }

// Ledger returns an auto-committing ledger.
func (s *Store) Ledger() progress.Ledger { return ledger{view{s: s}} }

// SessionCount returns the number of committed raw records.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// txState collects writes made inside one unit of work.
type txState struct {
	events       []activity.SessionRecord
	aggregates   map[shared.UserID]*progress.UserAggregate
	achievements []*progress.Achievement
}

// Do runs fn with staged stores while holding the user's lock, then commits.
func (s *Store) Do(ctx context.Context, user shared.UserID, fn func(ctx context.Context, stores progress.Stores) error) error {
	release, err := s.locks.Lock(ctx, user)
	if err != nil {
		return err
	}
	defer release()

	tx := &txState{aggregates: make(map[shared.UserID]*progress.UserAggregate)}
	v := view{s: s, tx: tx}
	if err := fn(ctx, progress.Stores{
		Events:     eventStore{v},
		Aggregates: aggregateStore{v},
		Ledger:     ledger{v},
	}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *txState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range tx.events {
		if _, ok := s.events[rec.Key()]; ok {
			return shared.ErrSessionAlreadyRecorded
		}
	}
	for _, a := range tx.achievements {
		if _, ok := s.ownedKeys[ownerKey{a.Owner, a.Key()}]; ok {
			return shared.ErrDuplicateAward
		}
	}

	for _, rec := range tx.events {
		s.events[rec.Key()] = rec
	}
	for _, a := range tx.achievements {
		s.putAchievementLocked(a)
	}
	for user, agg := range tx.aggregates {
		s.aggregates[user] = agg
	}
	return nil
}

func (s *Store) putAchievementLocked(a *progress.Achievement) {
	s.achievements[a.ID] = a
	s.byOwner[a.Owner] = append(s.byOwner[a.Owner], a.ID)
	s.ownedKeys[ownerKey{a.Owner, a.Key()}] = a.ID
}

// view reads staged writes first, then committed state. tx == nil means autocommit.
type view struct {
	s  *Store
	tx *txState
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT STORE
// ══════════════════════════════════════════════════════════════════════════════

type eventStore struct{ view }

func (e eventStore) Exists(ctx context.Context, user shared.UserID, ts time.Time) (bool, error) {
	key := activity.NewSessionKey(user, ts)
	if e.tx != nil {
		for _, r := range e.tx.events {
			if r.Key() == key {
				return true, nil
			}
		}
	}
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	_, ok := e.s.events[key]
	return ok, nil
}

func (e eventStore) Put(ctx context.Context, record activity.SessionRecord) error {
	exists, err := e.Exists(ctx, record.UserID, record.Timestamp)
	if err != nil {
		return err
	}
	if exists {
		return shared.ErrSessionAlreadyRecorded
	}
	if e.tx != nil {
		e.tx.events = append(e.tx.events, record)
		return nil
	}

	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if _, ok := e.s.events[record.Key()]; ok {
		return shared.ErrSessionAlreadyRecorded
	}
	e.s.events[record.Key()] = record
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE STORE
// ══════════════════════════════════════════════════════════════════════════════

type aggregateStore struct{ view }

func (a aggregateStore) Get(ctx context.Context, user shared.UserID) (*progress.UserAggregate, error) {
	if a.tx != nil {
		if agg, ok := a.tx.aggregates[user]; ok {
			return agg.Clone(), nil
		}
	}
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	if agg, ok := a.s.aggregates[user]; ok {
		return agg.Clone(), nil
	}
	return progress.NewUserAggregate(user), nil
}

func (a aggregateStore) Put(ctx context.Context, aggregate *progress.UserAggregate) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}
	stored := aggregate.Clone()
	if a.tx != nil {
		a.tx.aggregates[aggregate.UserID] = stored
		return nil
	}
	a.s.mu.Lock()
	a.s.aggregates[aggregate.UserID] = stored
	a.s.mu.Unlock()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

type ledger struct{ view }

func (l ledger) Create(ctx context.Context, owner shared.UserID, award progress.Award) (*progress.Achievement, error) {
	key := ownerKey{owner, award.Key()}
	if l.tx != nil {
		for _, staged := range l.tx.achievements {
			if staged.Owner == owner && staged.Key() == award.Key() {
				return nil, shared.ErrDuplicateAward
			}
		}
	}
	l.s.mu.RLock()
	_, dup := l.s.ownedKeys[key]
	l.s.mu.RUnlock()
	if dup {
		return nil, shared.ErrDuplicateAward
	}

	id := progress.AchievementID(l.s.nextAchievementID.Add(1))
	ach := award.ToAchievement(id, owner)
	if l.tx != nil {
		l.tx.achievements = append(l.tx.achievements, ach)
		c := *ach
		return &c, nil
	}

	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if _, ok := l.s.ownedKeys[key]; ok {
		return nil, shared.ErrDuplicateAward
	}
	l.s.putAchievementLocked(ach)
	c := *ach
	return &c, nil
}

func (l ledger) Get(ctx context.Context, id progress.AchievementID) (*progress.Achievement, error) {
	if l.tx != nil {
		for _, staged := range l.tx.achievements {
			if staged.ID == id {
				c := *staged
				return &c, nil
			}
		}
	}
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	a, ok := l.s.achievements[id]
	if !ok {
		return nil, shared.ErrAchievementNotFound
	}
	c := *a
	return &c, nil
}

func (l ledger) ListByOwner(ctx context.Context, owner shared.UserID) ([]*progress.Achievement, error) {
	l.s.mu.RLock()
	ids := append([]progress.AchievementID(nil), l.s.byOwner[owner]...)
	out := make([]*progress.Achievement, 0, len(ids))
	for _, id := range ids {
		c := *l.s.achievements[id]
		out = append(out, &c)
	}
	l.s.mu.RUnlock()

	if l.tx != nil {
		for _, staged := range l.tx.achievements {
			if staged.Owner == owner {
				c := *staged
				out = append(out, &c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var (
	_ progress.UnitOfWork = (*Store)(nil)
	_ progress.UserLocker = (*KeyedLocker)(nil)
)
