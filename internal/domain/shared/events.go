package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Events are published after the unit of work that produced them commits.
const (
	// Activity events
	EventSessionRecorded EventType = "activity.session_recorded"

	// Progress events
	EventStreakBroken       EventType = "progress.streak_broken"
	EventAchievementAwarded EventType = "progress.achievement_awarded"
	EventAchievementShared  EventType = "progress.achievement_shared"

	// Group events
	EventGroupCreated      EventType = "group.created"
	EventGroupMemberJoined EventType = "group.member_joined"
	EventGroupMemberLeft   EventType = "group.member_left"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped with the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionRecordedEvent is emitted once a session and its derived state are committed.
type SessionRecordedEvent struct {
	BaseEvent
	RecordID        string `json:"record_id"`
	DurationMinutes uint32 `json:"duration_minutes"`
	ActivityType    string `json:"activity_type"`
	Day             uint32 `json:"day"`
	TotalSessions   uint64 `json:"total_sessions"`
	Streak          uint32 `json:"streak"`
}

// Payload implements Event interface.
func (e SessionRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"record_id":        e.RecordID,
		"duration_minutes": e.DurationMinutes,
		"activity_type":    e.ActivityType,
		"day":              e.Day,
		"total_sessions":   e.TotalSessions,
		"streak":           e.Streak,
	}
}

// NewSessionRecordedEvent creates a new SessionRecordedEvent.
func NewSessionRecordedEvent(userID, recordID string, at time.Time, duration uint32, activityType string, day uint32, totalSessions uint64, streak uint32) SessionRecordedEvent {
	return SessionRecordedEvent{
		BaseEvent:       NewBaseEvent(EventSessionRecorded, userID, at),
		RecordID:        recordID,
		DurationMinutes: duration,
		ActivityType:    activityType,
		Day:             day,
		TotalSessions:   totalSessions,
		Streak:          streak,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakBrokenEvent is emitted when a session restarts a streak that was longer than one day.
type StreakBrokenEvent struct {
	BaseEvent
	PreviousStreak uint32 `json:"previous_streak"`
	DaysMissed     uint32 `json:"days_missed"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, at time.Time, previousStreak, daysMissed uint32) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID, at),
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// AchievementAwardedEvent is emitted for every ledger entry created.
type AchievementAwardedEvent struct {
	BaseEvent
	AchievementID uint64 `json:"achievement_id"`
	Category      string `json:"category"`
	Milestone     uint64 `json:"milestone"`
	Description   string `json:"description"`
}

// Payload implements Event interface.
func (e AchievementAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id": e.AchievementID,
		"category":       e.Category,
		"milestone":      e.Milestone,
		"description":    e.Description,
	}
}

// NewAchievementAwardedEvent creates a new AchievementAwardedEvent.
func NewAchievementAwardedEvent(userID string, at time.Time, id uint64, category string, milestone uint64, description string) AchievementAwardedEvent {
	return AchievementAwardedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementAwarded, userID, at),
		AchievementID: id,
		Category:      category,
		Milestone:     milestone,
		Description:   description,
	}
}

// AchievementSharedEvent is emitted when an attestation is issued.
type AchievementSharedEvent struct {
	BaseEvent
	AttestationID string `json:"attestation_id"`
	AchievementID uint64 `json:"achievement_id"`
	GroupID       uint64 `json:"group_id"`
}

// Payload implements Event interface.
func (e AchievementSharedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"attestation_id": e.AttestationID,
		"achievement_id": e.AchievementID,
		"group_id":       e.GroupID,
	}
}

// NewAchievementSharedEvent creates a new AchievementSharedEvent.
func NewAchievementSharedEvent(userID string, at time.Time, attestationID string, achievementID, groupID uint64) AchievementSharedEvent {
	return AchievementSharedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementShared, userID, at),
		AttestationID: attestationID,
		AchievementID: achievementID,
		GroupID:       groupID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Group Events
// ═══════════════════════════════════════════════════════════════════════════

// GroupMembershipEvent covers group creation, joins and leaves.
type GroupMembershipEvent struct {
	BaseEvent
	GroupID uint64 `json:"group_id"`
	UserID  string `json:"user_id"`
}

// Payload implements Event interface.
func (e GroupMembershipEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id": e.GroupID,
		"user_id":  e.UserID,
	}
}

// NewGroupMembershipEvent creates a membership event of the given type.
func NewGroupMembershipEvent(eventType EventType, groupID uint64, userID string, at time.Time) GroupMembershipEvent {
	return GroupMembershipEvent{
		BaseEvent: NewBaseEvent(eventType, userID, at),
		GroupID:   groupID,
		UserID:    userID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event's payload into an envelope.
func NewEventEnvelope(event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	env := EventEnvelope{
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if b, ok := event.(interface{ Correlation() string }); ok {
		env.CorrelationID = b.Correlation()
	}
	return env, nil
}

// Correlation returns the correlation ID.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
