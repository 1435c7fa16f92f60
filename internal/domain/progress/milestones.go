package progress

import (
	"fmt"
	"sort"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// MaxDescriptionLength bounds achievement descriptions in bytes (the ledger column width).
const MaxDescriptionLength = 64

// MilestoneTable holds the thresholds of every category.
type MilestoneTable struct {
	// SessionCount thresholds award on exact match of the session total.
	SessionCount []uint64
	// Streak thresholds award on exact match of the current streak.
	Streak []uint64
	// Duration thresholds award the highest crossed value, in minutes.
	Duration []uint64
	// Variety is the number of distinct activity types that earns the single variety award.
	Variety uint64
}

// DefaultMilestones returns the production thresholds.
func DefaultMilestones() MilestoneTable {
	return MilestoneTable{
		SessionCount: []uint64{10, 50, 100, 500, 1000},
		Streak:       []uint64{7, 30, 100, 365},
		Duration:     []uint64{600, 3600, 18000, 36000, 108000},
		Variety:      5,
	}
}

// Validate checks ordering and that every description fits MaxDescriptionLength.
// NewEngine rejects any table that fails it.
func (t MilestoneTable) Validate() error {
	lists := []struct {
		category Category
		values   []uint64
	}{
		{CategorySessionCount, t.SessionCount},
		{CategoryStreak, t.Streak},
		{CategoryDuration, t.Duration},
		{CategoryVariety, []uint64{t.Variety}},
	}

	for _, l := range lists {
		if len(l.values) == 0 {
			return shared.WrapError("progress", "ValidateMilestones", shared.ErrInvalidInput,
				"empty milestone list", fmt.Errorf("category %s", l.category))
		}
		if !sort.SliceIsSorted(l.values, func(i, j int) bool { return l.values[i] < l.values[j] }) {
			return shared.WrapError("progress", "ValidateMilestones", shared.ErrInvalidInput,
				"milestones must be ascending", fmt.Errorf("category %s", l.category))
		}
		for i, v := range l.values {
			if v == 0 || (i > 0 && v == l.values[i-1]) {
				return shared.WrapError("progress", "ValidateMilestones", shared.ErrInvalidInput,
					"milestones must be positive and distinct", fmt.Errorf("category %s value %d", l.category, v))
			}
			if d := Describe(l.category, v); len(d) > MaxDescriptionLength {
				return shared.WrapError("progress", "ValidateMilestones", shared.ErrInvalidMilestone,
					"description too long", fmt.Errorf("%q is %d bytes", d, len(d)))
			}
		}
	}
	if t.Variety > MaxActivityTypes {
		return shared.WrapError("progress", "ValidateMilestones", shared.ErrValueOutOfRange,
			"variety milestone exceeds type capacity", fmt.Errorf("%d > %d", t.Variety, MaxActivityTypes))
	}
	return nil
}

// Describe renders the ledger description of a milestone.
func Describe(c Category, milestone uint64) string {
	switch c {
	case CategorySessionCount:
		return fmt.Sprintf("Completed %d meditation sessions", milestone)
	case CategoryStreak:
		return fmt.Sprintf("Meditated %d days in a row", milestone)
	case CategoryDuration:
		return fmt.Sprintf("Meditated %d minutes in total", milestone)
	case CategoryVariety:
		return fmt.Sprintf("Practiced %d different session types", milestone)
	default:
		return fmt.Sprintf("%s milestone %d", c, milestone)
	}
}

func containsExact(values []uint64, v uint64) bool {
	i := sort.Search(len(values), func(i int) bool { return values[i] >= v })
	return i < len(values) && values[i] == v
}

// highestCrossed returns the largest value <= total, or false when none is crossed.
func highestCrossed(values []uint64, total uint64) (uint64, bool) {
	i := sort.Search(len(values), func(i int) bool { return values[i] > total })
	if i == 0 {
		return 0, false
	}
	return values[i-1], true
}
