package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/activity"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// EventRepository implements activity.EventStore on the session_events table.
type EventRepository struct {
	q Querier
}

// NewEventRepository creates a repository bound to a pool or a transaction.
func NewEventRepository(q Querier) *EventRepository {
	return &EventRepository{q: q}
}

// Exists reports whether a record is stored for user at ts.
func (r *EventRepository) Exists(ctx context.Context, user shared.UserID, ts time.Time) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM session_events WHERE user_id = $1 AND recorded_at = $2)`,
		string(user), ts.UTC().Truncate(time.Microsecond),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: session exists: %w", err)
	}
	return exists, nil
}

// Put inserts the raw record.
func (r *EventRepository) Put(ctx context.Context, record activity.SessionRecord) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO session_events (id, user_id, recorded_at, day_index, duration_minutes, activity_type, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID,
		string(record.UserID),
		record.Timestamp.UTC().Truncate(time.Microsecond),
		int32(record.Day),
		int64(record.DurationMinutes),
		int16(record.Type),
		record.Notes,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrSessionAlreadyRecorded
		}
		return fmt.Errorf("postgres: insert session: %w", err)
	}
	return nil
}

var _ activity.EventStore = (*EventRepository)(nil)
