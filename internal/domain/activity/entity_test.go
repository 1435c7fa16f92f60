package activity

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

func validEvent() SessionEvent {
	return SessionEvent{
		UserID:          "user-1",
		Timestamp:       time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Type:            TypeMindfulness,
	}
}

func TestSessionEvent_Validate(t *testing.T) {
	require.NoError(t, validEvent().Validate())

	e := validEvent()
	e.DurationMinutes = 0
	assert.ErrorIs(t, e.Validate(), shared.ErrInvalidDuration)

	// Long sessions have no upper bound.
	e = validEvent()
	e.DurationMinutes = math.MaxUint32
	require.NoError(t, e.Validate())

	e = validEvent()
	e.Type = 0
	assert.ErrorIs(t, e.Validate(), shared.ErrInvalidCategory)

	e = validEvent()
	e.Type = 6
	assert.ErrorIs(t, e.Validate(), shared.ErrInvalidCategory)

	e = validEvent()
	e.Notes = strings.Repeat("ä", MaxNotesLength+1)
	assert.ErrorIs(t, e.Validate(), shared.ErrNotesTooLong)

	e = validEvent()
	e.UserID = "  "
	assert.ErrorIs(t, e.Validate(), shared.ErrInvalidUserID)
}

func TestSessionEvent_DurationCheckedBeforeCategory(t *testing.T) {
	e := validEvent()
	e.DurationMinutes = 0
	e.Type = 42
	assert.ErrorIs(t, e.Validate(), shared.ErrInvalidDuration)
}

func TestParseType(t *testing.T) {
	got, err := ParseType("Body_Scan")
	require.NoError(t, err)
	assert.Equal(t, TypeBodyScan, got)

	got, err = ParseType("5")
	require.NoError(t, err)
	assert.Equal(t, TypeVisualization, got)

	_, err = ParseType("yoga")
	assert.ErrorIs(t, err, shared.ErrInvalidCategory)

	_, err = ParseType("6")
	assert.ErrorIs(t, err, shared.ErrInvalidCategory)
}

func TestAllTypesAreValidAndNamed(t *testing.T) {
	types := AllTypes()
	assert.Len(t, types, TypeCount)
	for _, typ := range types {
		assert.True(t, typ.IsValid())
		assert.NotContains(t, typ.String(), "unknown")
	}
	assert.Equal(t, "unknown(9)", Type(9).String())
}

func TestSessionKey_NormalizesToMicroseconds(t *testing.T) {
	base := time.Date(2025, 1, 1, 7, 0, 0, 1000, time.UTC)
	a := NewSessionKey("u", base)
	b := NewSessionKey("u", base.Add(500*time.Nanosecond))
	assert.Equal(t, a, b)

	rec := NewSessionRecord("id", validEvent(), 20000)
	assert.Equal(t, NewSessionKey("user-1", validEvent().Timestamp), rec.Key())
}
