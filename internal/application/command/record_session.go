// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/activity"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/idgen"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/timeutil"
)

var tracer = otel.Tracer("github.com/Gideonite22/zensync-meditation-assets/internal/application/command")

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SESSION COMMAND
// Records one completed meditation session and awards any milestones it reaches.
// The raw record, the aggregate and new ledger entries are written as one unit.
// ══════════════════════════════════════════════════════════════════════════════

// RecordSessionCommand contains the data to record a session.
type RecordSessionCommand struct {
	// UserID is the authenticated user.
	UserID shared.UserID

	// DurationMinutes is the session length.
	DurationMinutes uint32

	// Type is the meditation category.
	Type activity.Type

	// Notes is optional free text.
	Notes string

	// CorrelationID for tracing.
	CorrelationID string
}

// toEvent binds the command to the instant it is recorded at.
func (c RecordSessionCommand) toEvent(now time.Time) activity.SessionEvent {
	return activity.SessionEvent{
		UserID:          c.UserID,
		Timestamp:       now,
		DurationMinutes: c.DurationMinutes,
		Type:            c.Type,
		Notes:           c.Notes,
	}
}

// Validate validates the command.
func (c RecordSessionCommand) Validate() error {
	return c.toEvent(time.Time{}).Validate()
}

// RecordSessionResult contains the outcome of recording a session.
type RecordSessionResult struct {
	// RecordID is the id of the stored raw record.
	RecordID string

	// Timestamp is the instant the session was recorded at.
	Timestamp time.Time

	// DurationMinutes and Type echo the recorded session.
	DurationMinutes uint32
	Type            activity.Type

	// Day is the calendar day index of the session.
	Day uint32

	// Streak is the post-update streak.
	Streak uint32

	// PreviousStreak is the streak before this session.
	PreviousStreak uint32

	// StreakBroken indicates the previous streak was reset.
	StreakBroken bool

	// TotalSessions and TotalDuration are the post-update totals.
	TotalSessions uint64
	TotalDuration uint64

	// Awarded lists the achievements created by this session, in category order.
	Awarded []progress.Achievement
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordSessionHandler handles the RecordSessionCommand.
type RecordSessionHandler struct {
	uow       progress.UnitOfWork
	locker    progress.UserLocker
	engine    *progress.Engine
	clock     timeutil.Clock
	publisher shared.EventPublisher
	logger    *logger.Logger
	newID     func(time.Time) string
}

// RecordSessionOption customizes the handler.
type RecordSessionOption func(*RecordSessionHandler)

// WithUserLocker serializes each user across processes before the unit of work starts.
func WithUserLocker(l progress.UserLocker) RecordSessionOption {
	return func(h *RecordSessionHandler) { h.locker = l }
}

// WithRecordIDGenerator overrides the ULID record id generator.
func WithRecordIDGenerator(fn func(time.Time) string) RecordSessionOption {
	return func(h *RecordSessionHandler) { h.newID = fn }
}

// NewRecordSessionHandler creates a new RecordSessionHandler.
func NewRecordSessionHandler(
	uow progress.UnitOfWork,
	engine *progress.Engine,
	clock timeutil.Clock,
	publisher shared.EventPublisher,
	log *logger.Logger,
	opts ...RecordSessionOption,
) *RecordSessionHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	h := &RecordSessionHandler{
		uow:       uow,
		engine:    engine,
		clock:     clock,
		publisher: publisher,
		logger:    log.With(logger.Component("record_session")),
		newID:     idgen.NewFromTime,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle executes the record session command.
func (h *RecordSessionHandler) Handle(ctx context.Context, cmd RecordSessionCommand) (*RecordSessionResult, error) {
	ctx, span := tracer.Start(ctx, "command.RecordSession", trace.WithAttributes(
		attribute.String("user.id", cmd.UserID.String()),
		attribute.Int("session.duration_minutes", int(cmd.DurationMinutes)),
		attribute.String("session.type", cmd.Type.String()),
	))
	defer span.End()

	result, err := h.handle(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("session.streak", int(result.Streak)),
		attribute.Int("achievements.awarded", len(result.Awarded)),
	)
	return result, nil
}

func (h *RecordSessionHandler) handle(ctx context.Context, cmd RecordSessionCommand) (*RecordSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_session: validation failed: %w", err)
	}

	if h.locker != nil {
		release, err := h.locker.Lock(ctx, cmd.UserID)
		if err != nil {
			return nil, fmt.Errorf("record_session: failed to acquire user lock: %w", err)
		}
		defer release()
	}

	var (
		result *RecordSessionResult
		eval   progress.Evaluation
	)
	err := h.uow.Do(ctx, cmd.UserID, func(ctx context.Context, stores progress.Stores) error {
		// The clock is read with the user serialized so commits follow clock order.
		now := h.clock.Now()
		today := h.clock.DayIndex(now)
		event := cmd.toEvent(now)

		exists, err := stores.Events.Exists(ctx, cmd.UserID, now)
		if err != nil {
			return &stepError{step: "check_existing", err: err}
		}
		if exists {
			return shared.ErrSessionAlreadyRecorded
		}

		record := activity.NewSessionRecord(h.newID(now), event, today)
		if err := stores.Events.Put(ctx, record); err != nil {
			return &stepError{step: "put_record", err: err}
		}

		agg, err := stores.Aggregates.Get(ctx, cmd.UserID)
		if err != nil {
			return &stepError{step: "get_aggregate", err: err}
		}

		eval, err = h.engine.Apply(agg, event, now, today)
		if err != nil {
			return &stepError{step: "evaluate", err: err}
		}

		next := eval.Aggregate
		awarded := make([]progress.Achievement, 0, len(eval.Awards))
		for _, award := range eval.Awards {
			ach, err := stores.Ledger.Create(ctx, cmd.UserID, award)
			if err != nil {
				return &stepError{step: "create_achievement", err: err}
			}
			if err := next.Own(ach); err != nil {
				return &stepError{step: "own_achievement", err: err}
			}
			awarded = append(awarded, *ach)
		}

		if err := stores.Aggregates.Put(ctx, next); err != nil {
			return &stepError{step: "put_aggregate", err: err}
		}

		result = &RecordSessionResult{
			RecordID:        record.ID,
			Timestamp:       now,
			DurationMinutes: event.DurationMinutes,
			Type:            event.Type,
			Day:             today,
			Streak:          next.CurrentStreak,
			PreviousStreak:  eval.PreviousStreak,
			StreakBroken:    eval.StreakBroken,
			TotalSessions:   next.TotalSessions,
			TotalDuration:   next.TotalDuration,
			Awarded:         awarded,
		}
		return nil
	})
	if err != nil {
		h.logFailure(cmd, err)
		return nil, fmt.Errorf("record_session: %w", err)
	}

	h.publishEvents(cmd, result, eval)

	h.logger.Info("session recorded",
		logger.UserID(cmd.UserID.String()),
		logger.Streak(result.Streak),
		logger.Uint64("total_sessions", result.TotalSessions),
		logger.Int("awarded", len(result.Awarded)),
	)
	return result, nil
}

func (h *RecordSessionHandler) logFailure(cmd RecordSessionCommand, err error) {
	fields := []logger.Field{logger.UserID(cmd.UserID.String()), logger.Err(err)}
	var se *stepError
	if errors.As(err, &se) {
		fields = append(fields, logger.String("step", se.step))
	}
	if errors.Is(err, shared.ErrSessionAlreadyRecorded) {
		h.logger.Debug("duplicate session rejected", fields...)
		return
	}
	h.logger.Warn("session not recorded", fields...)
}

// publishEvents emits events after commit. Publish failures are logged, never returned.
func (h *RecordSessionHandler) publishEvents(cmd RecordSessionCommand, r *RecordSessionResult, eval progress.Evaluation) {
	user := cmd.UserID.String()
	events := make([]shared.Event, 0, 2+len(r.Awarded))

	recorded := shared.NewSessionRecordedEvent(user, r.RecordID, r.Timestamp, r.DurationMinutes,
		r.Type.String(), r.Day, r.TotalSessions, r.Streak)
	recorded.BaseEvent = recorded.WithCorrelationID(cmd.CorrelationID)
	events = append(events, recorded)

	if eval.StreakBroken {
		broken := shared.NewStreakBrokenEvent(user, r.Timestamp, eval.PreviousStreak, eval.DaysMissed)
		broken.BaseEvent = broken.WithCorrelationID(cmd.CorrelationID)
		events = append(events, broken)
	}
	for _, a := range r.Awarded {
		awarded := shared.NewAchievementAwardedEvent(user, a.AwardedAt, uint64(a.ID), a.Category.String(), a.Milestone, a.Description)
		awarded.BaseEvent = awarded.WithCorrelationID(cmd.CorrelationID)
		events = append(events, awarded)
	}

	for _, e := range events {
		if err := h.publisher.Publish(e); err != nil {
			h.logger.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.UserID(user),
				logger.Err(err),
			)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STEP ERROR
// ══════════════════════════════════════════════════════════════════════════════

// stepError names the unit-of-work step that failed.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string {
	return fmt.Sprintf("%s: %v", e.step, e.err)
}

func (e *stepError) Unwrap() error {
	return e.err
}
