package activity

import (
	"context"
	"time"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// EventStore is the durable store of raw session records keyed by (user, timestamp).
// Implementations participate in the unit of work that records a session.
type EventStore interface {
	// Exists reports whether a record is already stored for the user at ts.
	Exists(ctx context.Context, user shared.UserID, ts time.Time) (bool, error)

	// Put stores the record. A second record under the same key fails with
	// shared.ErrSessionAlreadyRecorded.
	Put(ctx context.Context, record SessionRecord) error
}
