package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/activity"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

const testUser shared.UserID = "user-1"

var baseTime = time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)

func session(duration uint32, typ activity.Type, day uint32) activity.SessionEvent {
	return activity.SessionEvent{
		UserID:          testUser,
		Timestamp:       baseTime.Add(time.Duration(day) * 24 * time.Hour),
		DurationMinutes: duration,
		Type:            typ,
	}
}

// applyAndOwn runs the engine and binds awards to sequential ids like the ledger would.
func applyAndOwn(t *testing.T, e *Engine, agg *UserAggregate, ev activity.SessionEvent, day uint32, nextID *AchievementID) (*UserAggregate, []Award) {
	t.Helper()
	eval, err := e.Apply(agg, ev, ev.Timestamp, day)
	require.NoError(t, err)
	for _, a := range eval.Awards {
		*nextID++
		require.NoError(t, eval.Aggregate.Own(a.ToAchievement(*nextID, ev.UserID)))
	}
	return eval.Aggregate, eval.Awards
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultEngineConfig())
	require.NoError(t, err)
	return e
}

func TestEngine_ScenarioA_FirstSession(t *testing.T) {
	e := newEngine(t)
	agg := NewUserAggregate(testUser)

	eval, err := e.Apply(agg, session(30, activity.TypeMindfulness, 1), baseTime, 1)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), eval.Aggregate.CurrentStreak)
	assert.Equal(t, uint64(1), eval.Aggregate.TotalSessions)
	assert.Equal(t, uint64(30), eval.Aggregate.TotalDuration)
	assert.Equal(t, uint32(1), eval.Aggregate.LastActiveDay)
	assert.Empty(t, eval.Awards)
	assert.Equal(t, []activity.Type{activity.TypeMindfulness}, eval.Aggregate.ActivityTypesSeen)

	// Input is untouched.
	assert.True(t, agg.IsNew())
}

func TestEngine_ScenarioB_TenConsecutiveDays(t *testing.T) {
	e := newEngine(t)
	agg := NewUserAggregate(testUser)
	var id AchievementID

	var awardsByDay = map[uint32][]Award{}
	for day := uint32(1); day <= 10; day++ {
		var awards []Award
		agg, awards = applyAndOwn(t, e, agg, session(10, activity.TypeMindfulness, day), day, &id)
		awardsByDay[day] = awards
	}

	require.Len(t, awardsByDay[7], 1)
	assert.Equal(t, CategoryStreak, awardsByDay[7][0].Category)
	assert.Equal(t, uint64(7), awardsByDay[7][0].Milestone)

	require.Len(t, awardsByDay[10], 1)
	assert.Equal(t, CategorySessionCount, awardsByDay[10][0].Category)
	assert.Equal(t, uint64(10), awardsByDay[10][0].Milestone)

	for _, day := range []uint32{1, 2, 3, 4, 5, 6, 8, 9} {
		assert.Empty(t, awardsByDay[day], "day %d", day)
	}
	assert.Equal(t, uint32(10), agg.CurrentStreak)
	assert.Equal(t, uint64(10), agg.TotalSessions)
	assert.Equal(t, []AchievementID{1, 2}, agg.AchievementIDs())
}

func TestEngine_ScenarioC_DurationCrossing(t *testing.T) {
	e := newEngine(t)
	agg := NewUserAggregate(testUser)
	agg.TotalSessions = 3
	agg.TotalDuration = 580
	agg.LastActiveDay = 1
	agg.CurrentStreak = 1
	var id AchievementID

	agg, awards := applyAndOwn(t, e, agg, session(70, activity.TypeBreathing, 2), 2, &id)
	require.Len(t, awards, 1)
	assert.Equal(t, CategoryDuration, awards[0].Category)
	assert.Equal(t, uint64(600), awards[0].Milestone)

	// Still above 600 but below 3600: nothing new.
	agg, awards = applyAndOwn(t, e, agg, session(200, activity.TypeBreathing, 3), 3, &id)
	assert.Empty(t, awards)

	agg, awards = applyAndOwn(t, e, agg, session(1440, activity.TypeBreathing, 4), 4, &id)
	assert.Empty(t, awards)

	// Push total to 3700.
	agg, awards = applyAndOwn(t, e, agg, session(1410, activity.TypeBreathing, 5), 5, &id)
	require.Len(t, awards, 1)
	assert.Equal(t, uint64(3600), awards[0].Milestone)
	assert.Equal(t, uint64(3700), agg.TotalDuration)

	count600 := 0
	for _, o := range agg.Achievements {
		if o.Key() == (MilestoneKey{CategoryDuration, 600}) {
			count600++
		}
	}
	assert.Equal(t, 1, count600)
}

func TestEngine_DurationJumpAwardsOnlyHighest(t *testing.T) {
	e := newEngine(t)
	agg := NewUserAggregate(testUser)
	agg.TotalDuration = 3000
	agg.TotalSessions = 1
	agg.LastActiveDay = 1
	agg.CurrentStreak = 1

	eval, err := e.Apply(agg, session(700, activity.TypeBodyScan, 2), baseTime, 2)
	require.NoError(t, err)

	// 600 and 3600 are both crossed in one step; only the highest is awarded.
	require.Len(t, eval.Awards, 1)
	assert.Equal(t, uint64(3600), eval.Awards[0].Milestone)
}

func TestEngine_ScenarioD_VarietyOnce(t *testing.T) {
	e := newEngine(t)
	agg := NewUserAggregate(testUser)
	var id AchievementID

	var varietyAwards int
	for i, typ := range activity.AllTypes() {
		day := uint32(i + 1)
		var awards []Award
		agg, awards = applyAndOwn(t, e, agg, session(20, typ, day), day, &id)
		for _, a := range awards {
			if a.Category == CategoryVariety {
				varietyAwards++
				assert.Equal(t, uint64(5), a.Milestone)
				assert.Equal(t, 5, i+1, "variety must fire on the fifth distinct type")
			}
		}
	}
	assert.Equal(t, 1, varietyAwards)

	for day := uint32(6); day <= 20; day++ {
		var awards []Award
		typ := activity.AllTypes()[day%activity.TypeCount]
		agg, awards = applyAndOwn(t, e, agg, session(20, typ, day), day, &id)
		for _, a := range awards {
			assert.NotEqual(t, CategoryVariety, a.Category)
		}
	}
	assert.Len(t, agg.ActivityTypesSeen, activity.TypeCount)
}

func TestEngine_StreakReset(t *testing.T) {
	e := newEngine(t)
	agg := NewUserAggregate(testUser)
	agg.TotalSessions = 4
	agg.LastActiveDay = 10
	agg.CurrentStreak = 4

	eval, err := e.Apply(agg, session(5, activity.TypeMindfulness, 11), baseTime, 11)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), eval.Aggregate.CurrentStreak)
	assert.False(t, eval.StreakBroken)

	eval, err = e.Apply(agg, session(5, activity.TypeMindfulness, 12), baseTime, 12)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), eval.Aggregate.CurrentStreak)
	assert.Equal(t, uint32(12), eval.Aggregate.LastActiveDay)
	assert.True(t, eval.StreakBroken)
	assert.Equal(t, uint32(1), eval.DaysMissed)
	assert.Equal(t, uint32(4), eval.PreviousStreak)
}

func TestEngine_SameDayPolicies(t *testing.T) {
	agg := NewUserAggregate(testUser)
	agg.TotalSessions = 3
	agg.LastActiveDay = 10
	agg.CurrentStreak = 3

	keep := newEngine(t)
	eval, err := keep.Apply(agg, session(5, activity.TypeMindfulness, 10), baseTime, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), eval.Aggregate.CurrentStreak)
	assert.Equal(t, uint32(10), eval.Aggregate.LastActiveDay)
	assert.False(t, eval.StreakBroken)

	cfg := DefaultEngineConfig()
	cfg.SameDay = SameDayReset
	reset, err := NewEngine(cfg)
	require.NoError(t, err)
	eval, err = reset.Apply(agg, session(5, activity.TypeMindfulness, 10), baseTime, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), eval.Aggregate.CurrentStreak)
	assert.Equal(t, uint32(10), eval.Aggregate.LastActiveDay)
}

func TestEngine_EarlierDayNeverRewinds(t *testing.T) {
	agg := NewUserAggregate(testUser)
	agg.TotalSessions = 4
	agg.TotalDuration = 40
	agg.LastActiveDay = 12
	agg.CurrentStreak = 4

	for _, policy := range []SameDayPolicy{SameDayKeep, SameDayReset} {
		t.Run(string(policy), func(t *testing.T) {
			cfg := DefaultEngineConfig()
			cfg.SameDay = policy
			e, err := NewEngine(cfg)
			require.NoError(t, err)

			eval, err := e.Apply(agg, session(10, activity.TypeBreathing, 11), baseTime, 11)
			require.NoError(t, err)
			assert.Equal(t, uint32(4), eval.Aggregate.CurrentStreak)
			assert.Equal(t, uint32(12), eval.Aggregate.LastActiveDay)
			assert.False(t, eval.StreakBroken)
			assert.Zero(t, eval.DaysMissed)
			assert.Equal(t, uint64(5), eval.Aggregate.TotalSessions)
			assert.Equal(t, uint64(50), eval.Aggregate.TotalDuration)
		})
	}
}

func TestEngine_StreakMilestoneNotRepeatedAfterReset(t *testing.T) {
	e := newEngine(t)
	agg := NewUserAggregate(testUser)
	var id AchievementID

	streakAwards := 0
	day := uint32(1)
	for run := 0; run < 2; run++ {
		for i := 0; i < 7; i++ {
			var awards []Award
			agg, awards = applyAndOwn(t, e, agg, session(1, activity.TypeMindfulness, day), day, &id)
			for _, a := range awards {
				if a.Category == CategoryStreak {
					streakAwards++
				}
			}
			day++
		}
		day += 3 // break the streak
	}
	assert.Equal(t, 1, streakAwards)
	assert.Equal(t, uint32(7), agg.CurrentStreak)
}

func TestEngine_CategoriesCoFire(t *testing.T) {
	e := newEngine(t)
	agg := NewUserAggregate(testUser)
	agg.TotalSessions = 9
	agg.TotalDuration = 590
	agg.CurrentStreak = 6
	agg.LastActiveDay = 6
	agg.ActivityTypesSeen = []activity.Type{1, 2, 3, 4}

	eval, err := e.Apply(agg, session(15, activity.TypeVisualization, 7), baseTime, 7)
	require.NoError(t, err)

	require.Len(t, eval.Awards, 4)
	assert.Equal(t, CategorySessionCount, eval.Awards[0].Category)
	assert.Equal(t, CategoryStreak, eval.Awards[1].Category)
	assert.Equal(t, CategoryDuration, eval.Awards[2].Category)
	assert.Equal(t, CategoryVariety, eval.Awards[3].Category)
	for _, a := range eval.Awards {
		assert.Equal(t, baseTime, a.AwardedAt)
		assert.LessOrEqual(t, len(a.Description), MaxDescriptionLength)
	}
}

func TestEngine_InvalidInput(t *testing.T) {
	e := newEngine(t)
	agg := NewUserAggregate(testUser)

	_, err := e.Apply(agg, session(0, activity.TypeMindfulness, 1), baseTime, 1)
	assert.ErrorIs(t, err, shared.ErrInvalidDuration)

	_, err = e.Apply(agg, session(10, activity.Type(6), 1), baseTime, 1)
	assert.ErrorIs(t, err, shared.ErrInvalidCategory)

	_, err = e.Apply(agg, session(10, activity.TypeMindfulness, 1), baseTime, 0)
	assert.ErrorIs(t, err, shared.ErrInvalidDay)

	other := NewUserAggregate("someone-else")
	_, err = e.Apply(other, session(10, activity.TypeMindfulness, 1), baseTime, 1)
	assert.ErrorIs(t, err, shared.ErrAggregateMismatch)
}

func TestEngine_CapacityDefended(t *testing.T) {
	e := newEngine(t)
	agg := NewUserAggregate(testUser)
	agg.TotalSessions = 9
	agg.LastActiveDay = 1
	agg.CurrentStreak = 1
	for i := 0; i < MaxAchievementsPerUser; i++ {
		agg.Achievements = append(agg.Achievements, OwnedAchievement{
			ID: AchievementID(i + 1), Category: CategoryStreak, Milestone: uint64(1000 + i),
		})
	}

	_, err := e.Apply(agg, session(10, activity.TypeMindfulness, 2), baseTime, 2)
	assert.ErrorIs(t, err, shared.ErrCapacityExceeded)
}

func TestEngine_MonotonicityAndVarietyCap(t *testing.T) {
	e := newEngine(t)
	agg := NewUserAggregate(testUser)
	var id AchievementID
	seen := map[MilestoneKey]int{}

	durations := []uint32{1, 45, 300, 1440, 7, 60, 900}
	gaps := []uint32{0, 1, 1, 2, 1, 5, 1}
	day := uint32(1)
	for i := 0; i < 400; i++ {
		prevSessions, prevDuration := agg.TotalSessions, agg.TotalDuration
		day += gaps[i%len(gaps)]
		typ := activity.AllTypes()[(i*3)%activity.TypeCount]

		var awards []Award
		agg, awards = applyAndOwn(t, e, agg, session(durations[i%len(durations)], typ, day), day, &id)

		assert.Greater(t, agg.TotalSessions, prevSessions)
		assert.GreaterOrEqual(t, agg.TotalDuration, prevDuration)
		assert.LessOrEqual(t, len(agg.ActivityTypesSeen), activity.TypeCount)
		require.NoError(t, agg.Validate())
		for _, a := range awards {
			seen[a.Key()]++
		}
	}
	for key, n := range seen {
		assert.Equal(t, 1, n, "%v awarded more than once", key)
	}
}

func TestNewEngine_RejectsBadTables(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Milestones.Duration = []uint64{3600, 600}
	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	cfg = DefaultEngineConfig()
	cfg.Milestones.SessionCount = nil
	_, err = NewEngine(cfg)
	assert.Error(t, err)

	cfg = DefaultEngineConfig()
	cfg.SameDay = "sometimes"
	_, err = NewEngine(cfg)
	assert.Error(t, err)

	cfg = DefaultEngineConfig()
	cfg.Milestones.Variety = MaxActivityTypes + 1
	_, err = NewEngine(cfg)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestMilestoneTable_DescriptionWidth(t *testing.T) {
	require.NoError(t, DefaultMilestones().Validate())

	cfg := DefaultMilestones()
	cfg.Duration = append(cfg.Duration, 1<<63)
	assert.NoError(t, cfg.Validate(), "even the widest uint64 fits the description column")

	for _, c := range Categories() {
		assert.LessOrEqual(t, len(Describe(c, ^uint64(0))), MaxDescriptionLength)
	}
}
