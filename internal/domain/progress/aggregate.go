package progress

import (
	"fmt"
	"time"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/activity"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

const (
	// MaxActivityTypes bounds ActivityTypesSeen.
	MaxActivityTypes = 10

	// MaxAchievementsPerUser bounds the owned achievement list.
	MaxAchievementsPerUser = 100
)

// OwnedAchievement is one entry of a user's award-ordered achievement list.
type OwnedAchievement struct {
	ID        AchievementID
	Category  Category
	Milestone uint64
}

// Key returns the dedup key.
func (o OwnedAchievement) Key() MilestoneKey {
	return MilestoneKey{Category: o.Category, Milestone: o.Milestone}
}

// UserAggregate is the rolling per-user summary of all recorded sessions.
// It is only ever replaced as a whole; stores never apply partial updates.
type UserAggregate struct {
	UserID            shared.UserID
	TotalSessions     uint64
	TotalDuration     uint64 // minutes
	CurrentStreak     uint32
	LastActiveDay     uint32 // 0 = never active
	ActivityTypesSeen []activity.Type
	Achievements      []OwnedAchievement
	UpdatedAt         time.Time
}

// NewUserAggregate returns the zero-state aggregate used for users with no history.
func NewUserAggregate(user shared.UserID) *UserAggregate {
	return &UserAggregate{
		UserID:            user,
		ActivityTypesSeen: make([]activity.Type, 0, activity.TypeCount),
		Achievements:      make([]OwnedAchievement, 0),
	}
}

// Clone returns a deep copy.
func (a *UserAggregate) Clone() *UserAggregate {
	c := *a
	c.ActivityTypesSeen = append(make([]activity.Type, 0, len(a.ActivityTypesSeen)), a.ActivityTypesSeen...)
	c.Achievements = append(make([]OwnedAchievement, 0, len(a.Achievements)), a.Achievements...)
	return &c
}

// IsNew reports whether the user has never recorded a session.
func (a *UserAggregate) IsNew() bool {
	return a.TotalSessions == 0 && a.LastActiveDay == 0
}

// HasType reports whether t was already seen.
func (a *UserAggregate) HasType(t activity.Type) bool {
	for _, seen := range a.ActivityTypesSeen {
		if seen == t {
			return true
		}
	}
	return false
}

// addType inserts t if absent.
func (a *UserAggregate) addType(t activity.Type) error {
	if a.HasType(t) {
		return nil
	}
	if len(a.ActivityTypesSeen) >= MaxActivityTypes {
		return shared.WrapError("progress", "AddType", shared.ErrCapacity,
			"activity type capacity exceeded", shared.ErrCapacityExceeded)
	}
	a.ActivityTypesSeen = append(a.ActivityTypesSeen, t)
	return nil
}

// Owns reports whether the user already holds the (category, milestone) pair.
func (a *UserAggregate) Owns(key MilestoneKey) bool {
	for _, o := range a.Achievements {
		if o.Key() == key {
			return true
		}
	}
	return false
}

// OwnsCategory reports whether the user holds any achievement of category c.
func (a *UserAggregate) OwnsCategory(c Category) bool {
	for _, o := range a.Achievements {
		if o.Category == c {
			return true
		}
	}
	return false
}

// Own appends a ledger entry to the owned list.
func (a *UserAggregate) Own(ach *Achievement) error {
	if ach.Owner != a.UserID {
		return shared.WrapError("progress", "Own", shared.ErrInvalidInput,
			"achievement belongs to another user", fmt.Errorf("owner %s", ach.Owner))
	}
	if a.Owns(ach.Key()) {
		return shared.ErrDuplicateAward
	}
	if len(a.Achievements) >= MaxAchievementsPerUser {
		return shared.ErrCapacityExceeded
	}
	a.Achievements = append(a.Achievements, OwnedAchievement{
		ID:        ach.ID,
		Category:  ach.Category,
		Milestone: ach.Milestone,
	})
	return nil
}

// AchievementIDs returns the owned ids in award order.
func (a *UserAggregate) AchievementIDs() []AchievementID {
	ids := make([]AchievementID, len(a.Achievements))
	for i, o := range a.Achievements {
		ids[i] = o.ID
	}
	return ids
}

// Validate checks the structural invariants of the aggregate.
func (a *UserAggregate) Validate() error {
	if a.TotalSessions > 0 && a.LastActiveDay == 0 {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidState, "active user without a last active day")
	}
	if len(a.ActivityTypesSeen) > MaxActivityTypes || len(a.Achievements) > MaxAchievementsPerUser {
		return shared.ErrCapacityExceeded
	}
	seenTypes := make(map[activity.Type]struct{}, len(a.ActivityTypesSeen))
	for _, t := range a.ActivityTypesSeen {
		if _, dup := seenTypes[t]; dup || !t.IsValid() {
			return shared.NewDomainError("progress", "Validate", shared.ErrInvalidState, "invalid or duplicate activity type")
		}
		seenTypes[t] = struct{}{}
	}
	seenKeys := make(map[MilestoneKey]struct{}, len(a.Achievements))
	for _, o := range a.Achievements {
		if _, dup := seenKeys[o.Key()]; dup {
			return shared.ErrDuplicateAward
		}
		seenKeys[o.Key()] = struct{}{}
	}
	return nil
}
