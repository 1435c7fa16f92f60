// Package timeutil provides the clock and calendar-day helpers used for streak tracking.
// Day boundaries are computed in a configured zone so that "one day later" means the
// user's next calendar day, not the next 24 hours.
package timeutil

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // zone data for minimal container images
)

// DefaultZone is used when no zone is configured.
var DefaultZone = time.UTC

// LoadZone resolves an IANA zone name; empty means UTC.
func LoadZone(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: load zone %q: %w", name, err)
	}
	return loc, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock supplies the current time and the calendar-day index derived from it.
type Clock interface {
	Now() time.Time
	DayIndex(t time.Time) uint32
}

// SystemClock reads the wall clock.
type SystemClock struct {
	Zone *time.Location
}

// NewSystemClock returns a clock bound to the given zone.
func NewSystemClock(zone *time.Location) SystemClock {
	if zone == nil {
		zone = DefaultZone
	}
	return SystemClock{Zone: zone}
}

// Now returns the current time in the clock's zone.
func (c SystemClock) Now() time.Time {
	return time.Now().In(c.zone())
}

// DayIndex returns the calendar-day index of t in the clock's zone.
func (c SystemClock) DayIndex(t time.Time) uint32 {
	return DayIndex(t, c.zone())
}

func (c SystemClock) zone() *time.Location {
	if c.Zone == nil {
		return DefaultZone
	}
	return c.Zone
}

// FixedClock always reports the same instant. Set moves it.
type FixedClock struct {
	mu   sync.Mutex
	now  time.Time
	Zone *time.Location
}

// NewFixedClock returns a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t, Zone: time.UTC}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// DayIndex returns the calendar-day index of t.
func (c *FixedClock) DayIndex(t time.Time) uint32 {
	return DayIndex(t, c.Zone)
}

// StepClock returns a later instant on every call, starting at Start.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	Step time.Duration
	Zone *time.Location
}

// NewStepClock returns a clock that advances by step after each Now.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{next: start, Step: step, Zone: time.UTC}
}

// Now returns the current instant and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.Step)
	return now
}

// Jump moves the next instant forward by d.
func (c *StepClock) Jump(d time.Duration) {
	c.mu.Lock()
	c.next = c.next.Add(d)
	c.mu.Unlock()
}

// DayIndex returns the calendar-day index of t.
func (c *StepClock) DayIndex(t time.Time) uint32 {
	return DayIndex(t, c.Zone)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAY ARITHMETIC
// ══════════════════════════════════════════════════════════════════════════════

// DayIndex returns the number of calendar days between 1970-01-01 and t in zone, plus one.
// Day 0 is reserved for "never active", so every real date maps to at least 1.
func DayIndex(t time.Time, zone *time.Location) uint32 {
	if zone == nil {
		zone = DefaultZone
	}
	local := t.In(zone)
	// Re-anchor the local calendar date in UTC so DST shifts cannot skew the division.
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	days := midnight.Unix() / int64(24*time.Hour/time.Second)
	if days < 0 {
		return 0
	}
	return uint32(days) + 1
}

// StartOfDay returns local midnight of t in zone.
func StartOfDay(t time.Time, zone *time.Location) time.Time {
	if zone == nil {
		zone = DefaultZone
	}
	local := t.In(zone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
}

// DayStart converts a day index back to local midnight in zone.
func DayStart(day uint32, zone *time.Location) time.Time {
	if zone == nil {
		zone = DefaultZone
	}
	if day == 0 {
		return time.Time{}
	}
	utc := time.Unix(int64(day-1)*int64(24*time.Hour/time.Second), 0).UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, zone)
}

// IsSameDay returns true if both instants fall on the same calendar day in zone.
func IsSameDay(t1, t2 time.Time, zone *time.Location) bool {
	return DayIndex(t1, zone) == DayIndex(t2, zone)
}

// IsConsecutiveDay returns true if t2 falls on the calendar day right after t1.
func IsConsecutiveDay(t1, t2 time.Time, zone *time.Location) bool {
	return DayIndex(t1, zone)+1 == DayIndex(t2, zone)
}

// FormatDate formats t as YYYY-MM-DD in zone.
func FormatDate(t time.Time, zone *time.Location) string {
	if zone == nil {
		zone = DefaultZone
	}
	return t.In(zone).Format("2006-01-02")
}
