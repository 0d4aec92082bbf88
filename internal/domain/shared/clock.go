package shared

import "time"

// Clock is the single source of "now" for due-date math and lifecycle timestamps
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant. Used in tests and for replaying
// classifications as of a given date.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant
func (c FixedClock) Now() time.Time {
	return c.At
}

// ClockOrDefault returns c, or SystemClock when c is nil
func ClockOrDefault(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}
