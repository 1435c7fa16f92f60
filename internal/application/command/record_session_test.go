package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/activity"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/persistence/memory"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/timeutil"
)

var start = time.Date(2025, 5, 1, 6, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(t shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

type mockLocker struct{ mock.Mock }

func (m *mockLocker) Lock(ctx context.Context, user shared.UserID) (func(), error) {
	args := m.Called(ctx, user)
	if fn, ok := args.Get(0).(func()); ok {
		return fn, args.Error(1)
	}
	return nil, args.Error(1)
}

type failingAggregates struct{ progress.AggregateStore }

func (failingAggregates) Put(context.Context, *progress.UserAggregate) error {
	return errors.New("disk full")
}

type failingUoW struct{ inner progress.UnitOfWork }

func (f failingUoW) Do(ctx context.Context, user shared.UserID, fn func(context.Context, progress.Stores) error) error {
	return f.inner.Do(ctx, user, func(ctx context.Context, st progress.Stores) error {
		st.Aggregates = failingAggregates{st.Aggregates}
		return fn(ctx, st)
	})
}

// heldUoW parks the first call before it reaches the store until release is closed.
type heldUoW struct {
	inner   progress.UnitOfWork
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newHeldUoW(inner progress.UnitOfWork) *heldUoW {
	return &heldUoW{inner: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (u *heldUoW) Do(ctx context.Context, user shared.UserID, fn func(context.Context, progress.Stores) error) error {
	first := false
	u.once.Do(func() { first = true })
	if first {
		close(u.entered)
		<-u.release
	}
	return u.inner.Do(ctx, user, fn)
}

func newRecordHandler(t *testing.T, uow progress.UnitOfWork, clock timeutil.Clock, pub shared.EventPublisher, opts ...RecordSessionOption) *RecordSessionHandler {
	t.Helper()
	return NewRecordSessionHandler(uow, progress.MustNewEngine(progress.DefaultEngineConfig()), clock, pub, logger.Nop(), opts...)
}

func cmd(user shared.UserID, minutes uint32, typ activity.Type) RecordSessionCommand {
	return RecordSessionCommand{UserID: user, DurationMinutes: minutes, Type: typ}
}

func TestRecordSession_FirstSession(t *testing.T) {
	store := memory.NewStore()
	pub := &recordingPublisher{}
	h := newRecordHandler(t, store, timeutil.NewFixedClock(start), pub)

	res, err := h.Handle(context.Background(), cmd("alice", 30, activity.TypeMindfulness))
	require.NoError(t, err)

	assert.Equal(t, uint32(1), res.Streak)
	assert.Equal(t, uint64(1), res.TotalSessions)
	assert.Equal(t, start, res.Timestamp)
	assert.Empty(t, res.Awarded)
	assert.NotEmpty(t, res.RecordID)
	assert.Equal(t, 1, store.SessionCount())
	assert.Equal(t, 1, pub.count(shared.EventSessionRecorded))
}

func TestRecordSession_TenConsecutiveDays(t *testing.T) {
	store := memory.NewStore()
	pub := &recordingPublisher{}
	clock := timeutil.NewFixedClock(start)
	h := newRecordHandler(t, store, clock, pub)
	ctx := context.Background()

	var awarded []progress.Achievement
	for day := 1; day <= 10; day++ {
		res, err := h.Handle(ctx, cmd("alice", 15, activity.TypeBreathing))
		require.NoError(t, err)
		assert.Equal(t, uint32(day), res.Streak)
		awarded = append(awarded, res.Awarded...)
		clock.Advance(24 * time.Hour)
	}

	require.Len(t, awarded, 2)
	assert.Equal(t, progress.CategoryStreak, awarded[0].Category)
	assert.Equal(t, uint64(7), awarded[0].Milestone)
	assert.Equal(t, progress.CategorySessionCount, awarded[1].Category)
	assert.Equal(t, uint64(10), awarded[1].Milestone)
	assert.Equal(t, 2, pub.count(shared.EventAchievementAwarded))

	agg, err := store.Aggregates().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []progress.AchievementID{awarded[0].ID, awarded[1].ID}, agg.AchievementIDs())
}

func TestRecordSession_StreakBrokenEvent(t *testing.T) {
	store := memory.NewStore()
	pub := &recordingPublisher{}
	clock := timeutil.NewFixedClock(start)
	h := newRecordHandler(t, store, clock, pub)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.Handle(ctx, cmd("alice", 10, activity.TypeMindfulness))
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
	}
	clock.Advance(48 * time.Hour)

	res, err := h.Handle(ctx, cmd("alice", 10, activity.TypeMindfulness))
	require.NoError(t, err)
	assert.True(t, res.StreakBroken)
	assert.Equal(t, uint32(3), res.PreviousStreak)
	assert.Equal(t, uint32(1), res.Streak)
	assert.Equal(t, 1, pub.count(shared.EventStreakBroken))
}

func TestRecordSession_ValidationOrder(t *testing.T) {
	store := memory.NewStore()
	h := newRecordHandler(t, store, timeutil.NewFixedClock(start), nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, cmd("alice", 0, 9))
	assert.ErrorIs(t, err, shared.ErrInvalidDuration)

	_, err = h.Handle(ctx, cmd("alice", 10, 9))
	assert.ErrorIs(t, err, shared.ErrInvalidCategory)

	_, err = h.Handle(ctx, cmd("", 10, activity.TypeBodyScan))
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)

	assert.Equal(t, 0, store.SessionCount())
}

func TestRecordSession_LongSessionAccepted(t *testing.T) {
	store := memory.NewStore()
	h := newRecordHandler(t, store, timeutil.NewFixedClock(start), nil)

	res, err := h.Handle(context.Background(), cmd("alice", 1441, activity.TypeVisualization))
	require.NoError(t, err)
	assert.Equal(t, uint32(1441), res.DurationMinutes)
	assert.Equal(t, uint64(1441), res.TotalDuration)
}

func TestRecordSession_SameInstantRejected(t *testing.T) {
	store := memory.NewStore()
	h := newRecordHandler(t, store, timeutil.NewFixedClock(start), nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, cmd("alice", 10, activity.TypeMindfulness))
	require.NoError(t, err)

	_, err = h.Handle(ctx, cmd("alice", 20, activity.TypeBreathing))
	assert.ErrorIs(t, err, shared.ErrSessionAlreadyRecorded)
	assert.True(t, shared.IsAlreadyExists(err))

	// Another user at the same instant is independent.
	_, err = h.Handle(ctx, cmd("bob", 10, activity.TypeMindfulness))
	require.NoError(t, err)

	agg, err := store.Aggregates().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), agg.TotalSessions)
	assert.Equal(t, uint64(10), agg.TotalDuration)
}

func TestRecordSession_FailureLeavesNoPartialWrites(t *testing.T) {
	store := memory.NewStore()
	pub := &recordingPublisher{}
	h := newRecordHandler(t, failingUoW{inner: store}, timeutil.NewFixedClock(start), pub)

	_, err := h.Handle(context.Background(), cmd("alice", 10, activity.TypeMindfulness))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put_aggregate")

	assert.Equal(t, 0, store.SessionCount())
	assert.Empty(t, pub.events)
}

func TestRecordSession_UsesUserLocker(t *testing.T) {
	store := memory.NewStore()
	locker := &mockLocker{}
	released := false
	locker.On("Lock", mock.Anything, shared.UserID("alice")).Return(func() { released = true }, nil).Once()
	locker.On("Lock", mock.Anything, shared.UserID("bob")).Return(nil, errors.New("lock busy")).Once()

	h := newRecordHandler(t, store, timeutil.NewStepClock(start, time.Second), nil, WithUserLocker(locker))
	ctx := context.Background()

	_, err := h.Handle(ctx, cmd("alice", 10, activity.TypeMindfulness))
	require.NoError(t, err)
	assert.True(t, released)

	_, err = h.Handle(ctx, cmd("bob", 10, activity.TypeMindfulness))
	assert.ErrorContains(t, err, "lock busy")
	assert.Equal(t, 1, store.SessionCount())

	locker.AssertExpectations(t)
}

func TestRecordSession_ConcurrentTenthSessionAwardsOnce(t *testing.T) {
	store := memory.NewStore()
	clock := timeutil.NewStepClock(start, time.Second)
	h := newRecordHandler(t, store, clock, nil)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		_, err := h.Handle(ctx, cmd("alice", 10, activity.TypeMindfulness))
		require.NoError(t, err)
		clock.Jump(24 * time.Hour)
	}

	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := h.Handle(ctx, cmd("alice", 10, activity.TypeMindfulness))
			return err
		})
	}
	require.NoError(t, g.Wait())

	list, err := store.Ledger().ListByOwner(ctx, "alice")
	require.NoError(t, err)
	count10 := 0
	for _, a := range list {
		if a.Category == progress.CategorySessionCount && a.Milestone == 10 {
			count10++
		}
	}
	assert.Equal(t, 1, count10)

	agg, err := store.Aggregates().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(11), agg.TotalSessions)
	require.NoError(t, agg.Validate())
}

func TestRecordSession_ConcurrentSameInstantOneWins(t *testing.T) {
	store := memory.NewStore()
	h := newRecordHandler(t, store, timeutil.NewFixedClock(start), nil)
	ctx := context.Background()

	errs := make([]error, 8)
	var g errgroup.Group
	for i := range errs {
		g.Go(func() error {
			_, errs[i] = h.Handle(ctx, cmd("alice", 10, activity.TypeMindfulness))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	ok, dup := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shared.ErrSessionAlreadyRecorded):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, len(errs)-1, dup)
	assert.Equal(t, 1, store.SessionCount())
}

func TestRecordSession_LateCommitAcrossMidnightKeepsStreak(t *testing.T) {
	store := memory.NewStore()
	pub := &recordingPublisher{}
	clock := timeutil.NewFixedClock(start)
	ctx := context.Background()

	seed := newRecordHandler(t, store, clock, pub)
	for i := 0; i < 3; i++ {
		_, err := seed.Handle(ctx, cmd("alice", 10, activity.TypeMindfulness))
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
	}

	held := newHeldUoW(store)
	h := newRecordHandler(t, held, clock, pub)

	// The first request arrives one second before midnight and is parked.
	clock.Set(time.Date(2025, 5, 3, 23, 59, 59, 0, time.UTC))
	type outcome struct {
		res *RecordSessionResult
		err error
	}
	late := make(chan outcome, 1)
	go func() {
		res, err := h.Handle(ctx, cmd("alice", 10, activity.TypeBreathing))
		late <- outcome{res, err}
	}()
	<-held.entered

	clock.Set(time.Date(2025, 5, 4, 0, 0, 1, 0, time.UTC))
	early, err := h.Handle(ctx, cmd("alice", 10, activity.TypeBodyScan))
	require.NoError(t, err)
	assert.Equal(t, uint32(4), early.Streak)

	clock.Advance(time.Second)
	close(held.release)
	got := <-late
	require.NoError(t, got.err)
	assert.Equal(t, uint32(4), got.res.Streak)
	assert.False(t, got.res.StreakBroken)
	assert.Equal(t, early.Day, got.res.Day)
	assert.True(t, got.res.Timestamp.After(early.Timestamp))

	agg, err := store.Aggregates().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), agg.CurrentStreak)
	assert.Equal(t, early.Day, agg.LastActiveDay)
	assert.Equal(t, uint64(5), agg.TotalSessions)
	assert.Zero(t, pub.count(shared.EventStreakBroken))
}
