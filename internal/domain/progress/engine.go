package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/activity"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// SameDayPolicy decides what a second session on the last active day does to the streak.
type SameDayPolicy string

const (
	// SameDayKeep leaves the streak unchanged.
	SameDayKeep SameDayPolicy = "keep"
	// SameDayReset restarts the streak at 1, the literal continuation rule.
	SameDayReset SameDayPolicy = "reset"
)

// ParseSameDayPolicy parses a policy name; empty means SameDayKeep.
func ParseSameDayPolicy(s string) (SameDayPolicy, error) {
	switch SameDayPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SameDayKeep:
		return SameDayKeep, nil
	case SameDayReset:
		return SameDayReset, nil
	default:
		return "", fmt.Errorf("progress: unknown same-day policy %q", s)
	}
}

// EngineConfig configures the evaluation engine.
type EngineConfig struct {
	Milestones MilestoneTable
	SameDay    SameDayPolicy
}

// DefaultEngineConfig returns the production configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Milestones: DefaultMilestones(),
		SameDay:    SameDayKeep,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Evaluation is the outcome of applying one session.
type Evaluation struct {
	// Aggregate is the updated copy; the input aggregate is never modified.
	Aggregate *UserAggregate

	// Awards are the newly qualified milestones in category order
	// (session_count, streak, duration, variety), at most one per category.
	Awards []Award

	// PreviousStreak is the streak before this session.
	PreviousStreak uint32

	// StreakBroken is set when a streak longer than one day restarted at 1.
	StreakBroken bool

	// DaysMissed is the number of whole days skipped when the streak broke.
	DaysMissed uint32
}

// Engine evaluates sessions against aggregates. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	milestones MilestoneTable
	sameDay    SameDayPolicy
}

// NewEngine validates the configuration and returns an engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Milestones.Validate(); err != nil {
		return nil, err
	}
	policy, err := ParseSameDayPolicy(string(cfg.SameDay))
	if err != nil {
		return nil, err
	}
	m := cfg.Milestones
	return &Engine{
		milestones: MilestoneTable{
			SessionCount: append([]uint64(nil), m.SessionCount...),
			Streak:       append([]uint64(nil), m.Streak...),
			Duration:     append([]uint64(nil), m.Duration...),
			Variety:      m.Variety,
		},
		sameDay: policy,
	}, nil
}

// MustNewEngine is NewEngine for static configurations.
func MustNewEngine(cfg EngineConfig) *Engine {
	e, err := NewEngine(cfg)
	if err != nil {
		panic(err)
	}
	return e
}

// Milestones returns a copy of the engine's threshold table.
func (e *Engine) Milestones() MilestoneTable {
	return MilestoneTable{
		SessionCount: append([]uint64(nil), e.milestones.SessionCount...),
		Streak:       append([]uint64(nil), e.milestones.Streak...),
		Duration:     append([]uint64(nil), e.milestones.Duration...),
		Variety:      e.milestones.Variety,
	}
}

// Apply evaluates event against aggregate for calendar day today, stamping awards with now.
// The caller must pass a freshly loaded aggregate and persist the result atomically; it is
// also responsible for rejecting a second event at the same timestamp.
func (e *Engine) Apply(aggregate *UserAggregate, event activity.SessionEvent, now time.Time, today uint32) (Evaluation, error) {
	if err := event.Validate(); err != nil {
		return Evaluation{}, err
	}
	if today == 0 {
		return Evaluation{}, shared.ErrInvalidDay
	}
	if aggregate == nil {
		aggregate = NewUserAggregate(event.UserID)
	}
	if aggregate.UserID != "" && aggregate.UserID != event.UserID {
		return Evaluation{}, shared.ErrAggregateMismatch
	}

	next := aggregate.Clone()
	next.UserID = event.UserID
	eval := Evaluation{PreviousStreak: aggregate.CurrentStreak}

	// 1. Streak.
	switch {
	case next.LastActiveDay == 0 || next.LastActiveDay+1 == today:
		next.CurrentStreak++
	case next.LastActiveDay == today && e.sameDay == SameDayKeep:
		// Same calendar day: streak already counts today.
	case today < next.LastActiveDay:
		// A day earlier than the last active one never rewinds the streak.
	default:
		if next.CurrentStreak > 1 {
			eval.StreakBroken = true
			if today > next.LastActiveDay+1 {
				eval.DaysMissed = today - next.LastActiveDay - 1
			}
		}
		next.CurrentStreak = 1
	}
	if today > next.LastActiveDay {
		next.LastActiveDay = today
	}

	// 2. Totals.
	next.TotalSessions++
	next.TotalDuration += uint64(event.DurationMinutes)

	// 3. Variety.
	if err := next.addType(event.Type); err != nil {
		return Evaluation{}, err
	}

	// 4. Milestone scans, all on the updated aggregate.
	awards := make([]Award, 0, 4)
	award := func(c Category, milestone uint64) {
		key := MilestoneKey{Category: c, Milestone: milestone}
		if next.Owns(key) {
			return
		}
		awards = append(awards, Award{
			Category:    c,
			Milestone:   milestone,
			Description: Describe(c, milestone),
			AwardedAt:   now,
		})
	}

	if containsExact(e.milestones.SessionCount, next.TotalSessions) {
		award(CategorySessionCount, next.TotalSessions)
	}
	if containsExact(e.milestones.Streak, uint64(next.CurrentStreak)) {
		award(CategoryStreak, uint64(next.CurrentStreak))
	}
	if threshold, ok := highestCrossed(e.milestones.Duration, next.TotalDuration); ok {
		award(CategoryDuration, threshold)
	}
	if uint64(len(next.ActivityTypesSeen)) >= e.milestones.Variety && !next.OwnsCategory(CategoryVariety) {
		award(CategoryVariety, e.milestones.Variety)
	}

	if len(next.Achievements)+len(awards) > MaxAchievementsPerUser {
		return Evaluation{}, shared.ErrCapacityExceeded
	}

	next.UpdatedAt = now
	eval.Aggregate = next
	eval.Awards = awards
	return eval, nil
}
