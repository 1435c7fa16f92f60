// Package progress contains the per-user aggregate, the achievement ledger model and the
// evaluation engine that turns one recorded session into zero or more one-time awards.
//
// Main components:
//   - UserAggregate: rolling per-user totals, streak, types seen and owned achievements
//   - Engine: pure evaluation of a session against the aggregate
//   - Achievement: immutable ledger entry
package progress

import (
	"strconv"
	"time"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// AchievementID is the globally unique, monotonically assigned ledger identifier.
type AchievementID uint64

// String returns the decimal representation.
func (id AchievementID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseAchievementID parses a decimal ledger id.
func ParseAchievementID(s string) (AchievementID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, shared.ErrAchievementNotFound
	}
	return AchievementID(n), nil
}

// Category is the criterion an achievement was earned under.
type Category string

const (
	CategorySessionCount Category = "session_count"
	CategoryStreak       Category = "streak"
	CategoryDuration     Category = "duration"
	CategoryVariety      Category = "variety"
)

// Categories returns every category in evaluation order.
func Categories() []Category {
	return []Category{CategorySessionCount, CategoryStreak, CategoryDuration, CategoryVariety}
}

// IsValid checks the category.
func (c Category) IsValid() bool {
	switch c {
	case CategorySessionCount, CategoryStreak, CategoryDuration, CategoryVariety:
		return true
	default:
		return false
	}
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// Achievement is an immutable ledger entry.
type Achievement struct {
	ID          AchievementID
	Owner       shared.UserID
	Category    Category
	Milestone   uint64
	AwardedAt   time.Time
	Description string
}

// Key returns the per-user dedup key.
func (a *Achievement) Key() MilestoneKey {
	return MilestoneKey{Category: a.Category, Milestone: a.Milestone}
}

// IsOwnedBy reports whether user owns the achievement.
func (a *Achievement) IsOwnedBy(user shared.UserID) bool {
	return a.Owner == user
}

// MilestoneKey is the natural per-user dedup key of an achievement.
type MilestoneKey struct {
	Category  Category
	Milestone uint64
}

// Award is an achievement decided by the engine but not yet assigned a ledger id.
type Award struct {
	Category    Category
	Milestone   uint64
	Description string
	AwardedAt   time.Time
}

// Key returns the dedup key of the award.
func (a Award) Key() MilestoneKey {
	return MilestoneKey{Category: a.Category, Milestone: a.Milestone}
}

// ToAchievement binds the award to a ledger id and owner.
func (a Award) ToAchievement(id AchievementID, owner shared.UserID) *Achievement {
	return &Achievement{
		ID:          id,
		Owner:       owner,
		Category:    a.Category,
		Milestone:   a.Milestone,
		AwardedAt:   a.AwardedAt,
		Description: a.Description,
	}
}
