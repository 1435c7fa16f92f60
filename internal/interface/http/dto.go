package http

import (
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Gideonite22/zensync-meditation-assets/internal/application/command"
	"github.com/Gideonite22/zensync-meditation-assets/internal/application/query"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/group"
)

func init() {
	// Report validation failures under their JSON names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

// Value rules (duration range, category, notes length) are enforced by the domain
// so that errors come back in a fixed order; binding only checks shape.
// Duration is signed so a negative value reaches the duration check instead of failing decode.
type recordSessionRequest struct {
	DurationMinutes int64  `json:"duration_minutes"`
	Type            string `json:"type"`
	Notes           string `json:"notes"`
}

type shareAchievementRequest struct {
	GroupID uint64 `json:"group_id" binding:"required,min=1"`
}

type createGroupRequest struct {
	Name string `json:"name" binding:"required,max=64"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

type sessionResponse struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Recorded session
	// ─────────────────────────────────────────────────────────────────────────

	RecordID        string    `json:"record_id"`
	RecordedAt      time.Time `json:"recorded_at"`
	DurationMinutes uint32    `json:"duration_minutes"`
	Type            string    `json:"type"`

	// ─────────────────────────────────────────────────────────────────────────
	// Progress after the session
	// ─────────────────────────────────────────────────────────────────────────

	Streak         uint32 `json:"streak"`
	PreviousStreak uint32 `json:"previous_streak"`
	StreakBroken   bool   `json:"streak_broken"`
	TotalSessions  uint64 `json:"total_sessions"`
	TotalMinutes   uint64 `json:"total_minutes"`

	Awarded []*query.AchievementDTO `json:"awarded"`
}

func newSessionResponse(r *command.RecordSessionResult) sessionResponse {
	awarded := make([]*query.AchievementDTO, 0, len(r.Awarded))
	for i := range r.Awarded {
		awarded = append(awarded, query.NewAchievementDTO(&r.Awarded[i]))
	}
	return sessionResponse{
		RecordID:        r.RecordID,
		RecordedAt:      r.Timestamp,
		DurationMinutes: r.DurationMinutes,
		Type:            r.Type.String(),
		Streak:          r.Streak,
		PreviousStreak:  r.PreviousStreak,
		StreakBroken:    r.StreakBroken,
		TotalSessions:   r.TotalSessions,
		TotalMinutes:    r.TotalDuration,
		Awarded:         awarded,
	}
}

type groupResponse struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Creator   string    `json:"creator"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

func newGroupResponse(g *group.Group) groupResponse {
	members := make([]string, len(g.Members))
	for i, m := range g.Members {
		members[i] = m.String()
	}
	return groupResponse{
		ID:        uint64(g.ID),
		Name:      g.Name,
		Creator:   g.Creator.String(),
		Members:   members,
		CreatedAt: g.CreatedAt,
	}
}
