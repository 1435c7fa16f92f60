// Package activity contains the raw meditation session model: the fixed universe of
// activity types, the incoming session event and the persisted session record.
package activity

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MaxNotesLength is the maximum number of runes accepted in session notes.
	MaxNotesLength = 500
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type identifies a meditation category. Values outside 1..5 are invalid.
type Type uint8

const (
	TypeMindfulness    Type = 1
	TypeBreathing      Type = 2
	TypeBodyScan       Type = 3
	TypeLovingKindness Type = 4
	TypeVisualization  Type = 5
)

// TypeCount is the size of the fixed category universe.
const TypeCount = 5

var typeNames = map[Type]string{
	TypeMindfulness:    "mindfulness",
	TypeBreathing:      "breathing",
	TypeBodyScan:       "body_scan",
	TypeLovingKindness: "loving_kindness",
	TypeVisualization:  "visualization",
}

// AllTypes returns every valid type in ascending order.
func AllTypes() []Type {
	return []Type{TypeMindfulness, TypeBreathing, TypeBodyScan, TypeLovingKindness, TypeVisualization}
}

// IsValid reports whether t is in the fixed universe.
func (t Type) IsValid() bool {
	return t >= TypeMindfulness && t <= TypeVisualization
}

// String returns the category name.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// ParseType accepts either a category name or its number.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && n >= 1 && n <= TypeCount {
		return Type(n), nil
	}
	return 0, shared.ErrInvalidCategory
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION EVENT
// ══════════════════════════════════════════════════════════════════════════════

// SessionEvent is one completed meditation session as submitted by a user.
type SessionEvent struct {
	UserID          shared.UserID
	Timestamp       time.Time
	DurationMinutes uint32
	Type            Type
	Notes           string
}

// Validate checks the event against the input rules. Duration is checked before category.
func (e SessionEvent) Validate() error {
	if !e.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if e.DurationMinutes == 0 {
		return shared.ErrInvalidDuration
	}
	if !e.Type.IsValid() {
		return shared.ErrInvalidCategory
	}
	if utf8.RuneCountInString(e.Notes) > MaxNotesLength {
		return shared.ErrNotesTooLong
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION RECORD
// ══════════════════════════════════════════════════════════════════════════════

// SessionRecord is the raw persisted form of a session, keyed by (UserID, Timestamp).
type SessionRecord struct {
	ID              string
	UserID          shared.UserID
	Timestamp       time.Time
	Day             uint32
	DurationMinutes uint32
	Type            Type
	Notes           string
}

// NewSessionRecord builds the raw record for an already validated event.
func NewSessionRecord(id string, event SessionEvent, day uint32) SessionRecord {
	return SessionRecord{
		ID:              id,
		UserID:          event.UserID,
		Timestamp:       event.Timestamp,
		Day:             day,
		DurationMinutes: event.DurationMinutes,
		Type:            event.Type,
		Notes:           event.Notes,
	}
}

// Key returns the deduplication key of the record.
func (r SessionRecord) Key() SessionKey {
	return NewSessionKey(r.UserID, r.Timestamp)
}

// SessionKey identifies a session by owner and instant.
type SessionKey struct {
	UserID shared.UserID
	Unix   int64 // microseconds, the resolution stored by Postgres
}

// NewSessionKey normalizes the timestamp to microsecond resolution.
func NewSessionKey(user shared.UserID, ts time.Time) SessionKey {
	return SessionKey{UserID: user, Unix: ts.UnixMicro()}
}
