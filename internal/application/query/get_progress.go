// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Returns the user's rolling aggregate together with the achievements they own.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery contains the parameters of the progress query.
type GetProgressQuery struct {
	UserID shared.UserID
}

// ProgressDTO is the read model of a user's progress.
type ProgressDTO struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Totals
	// ─────────────────────────────────────────────────────────────────────────

	UserID        string `json:"user_id"`
	TotalSessions uint64 `json:"total_sessions"`
	TotalMinutes  uint64 `json:"total_minutes"`

	// ─────────────────────────────────────────────────────────────────────────
	// Streak
	// ─────────────────────────────────────────────────────────────────────────

	CurrentStreak uint32 `json:"current_streak"`

	// LastActiveDate is the calendar date of the last session, empty for new users.
	LastActiveDate string `json:"last_active_date,omitempty"`

	// ─────────────────────────────────────────────────────────────────────────
	// Variety and awards
	// ─────────────────────────────────────────────────────────────────────────

	ActivityTypes []string          `json:"activity_types"`
	Achievements  []*AchievementDTO `json:"achievements"`
}

// AchievementDTO is the public form of a ledger entry.
type AchievementDTO struct {
	ID          uint64    `json:"id"`
	Owner       string    `json:"owner"`
	Category    string    `json:"category"`
	Milestone   uint64    `json:"milestone"`
	Description string    `json:"description"`
	AwardedAt   time.Time `json:"awarded_at"`
}

// NewAchievementDTO converts a ledger entry.
func NewAchievementDTO(a *progress.Achievement) *AchievementDTO {
	return &AchievementDTO{
		ID:          uint64(a.ID),
		Owner:       a.Owner.String(),
		Category:    a.Category.String(),
		Milestone:   a.Milestone,
		Description: a.Description,
		AwardedAt:   a.AwardedAt,
	}
}

// GetProgressHandler handles GetProgressQuery.
type GetProgressHandler struct {
	aggregates progress.AggregateStore
	ledger     progress.Ledger
	zone       *time.Location
}

// NewGetProgressHandler creates a new GetProgressHandler. zone is used to render
// the last active day as a calendar date.
func NewGetProgressHandler(aggregates progress.AggregateStore, ledger progress.Ledger, zone *time.Location) *GetProgressHandler {
	if zone == nil {
		zone = timeutil.DefaultZone
	}
	return &GetProgressHandler{aggregates: aggregates, ledger: ledger, zone: zone}
}

// Handle executes the query.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressDTO, error) {
	if !q.UserID.IsValid() {
		return nil, fmt.Errorf("get_progress: %w", shared.ErrInvalidUserID)
	}

	agg, err := h.aggregates.Get(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: failed to get aggregate: %w", err)
	}
	owned, err := h.ledger.ListByOwner(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: failed to list achievements: %w", err)
	}

	dto := &ProgressDTO{
		UserID:        q.UserID.String(),
		TotalSessions: agg.TotalSessions,
		TotalMinutes:  agg.TotalDuration,
		CurrentStreak: agg.CurrentStreak,
		ActivityTypes: make([]string, 0, len(agg.ActivityTypesSeen)),
		Achievements:  make([]*AchievementDTO, 0, len(owned)),
	}
	if agg.LastActiveDay > 0 {
		dto.LastActiveDate = timeutil.FormatDate(timeutil.DayStart(agg.LastActiveDay, h.zone), h.zone)
	}
	for _, t := range agg.ActivityTypesSeen {
		dto.ActivityTypes = append(dto.ActivityTypes, t.String())
	}
	for _, a := range owned {
		dto.Achievements = append(dto.Achievements, NewAchievementDTO(a))
	}
	return dto, nil
}
