// Package eventhandler contains subscribers for domain events.
package eventhandler

import (
	"fmt"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════
// PROGRESS METRICS HANDLER
// Turns committed domain events into Prometheus counters.
// ═══════════════════════════════════════════════════════════════════════════

// ProgressMetricsHandler updates counters from domain events.
type ProgressMetricsHandler struct {
	metrics *metrics.Metrics
}

// NewProgressMetricsHandler creates a new ProgressMetricsHandler.
func NewProgressMetricsHandler(m *metrics.Metrics) *ProgressMetricsHandler {
	return &ProgressMetricsHandler{metrics: m}
}

// Register subscribes the handler to every event type it counts.
func (h *ProgressMetricsHandler) Register(sub shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventSessionRecorded,
		shared.EventStreakBroken,
		shared.EventAchievementAwarded,
		shared.EventAchievementShared,
		shared.EventGroupCreated,
		shared.EventGroupMemberJoined,
		shared.EventGroupMemberLeft,
	} {
		if err := sub.Subscribe(t, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle records one event.
func (h *ProgressMetricsHandler) Handle(event shared.Event) error {
	switch e := event.(type) {
	case shared.SessionRecordedEvent:
		h.metrics.SessionsRecorded.WithLabelValues(e.ActivityType).Inc()
		h.metrics.SessionMinutes.Add(float64(e.DurationMinutes))
	case shared.StreakBrokenEvent:
		h.metrics.StreaksBroken.Inc()
	case shared.AchievementAwardedEvent:
		h.metrics.AchievementsAwarded.WithLabelValues(e.Category).Inc()
	case shared.AchievementSharedEvent:
		h.metrics.AchievementsShared.Inc()
	case shared.GroupMembershipEvent:
		h.metrics.GroupEvents.WithLabelValues(string(e.EventType())).Inc()
	default:
		return fmt.Errorf("progress metrics: unexpected event %T", event)
	}
	return nil
}
