package session

import (
	"fmt"
	"time"
)

// ClockFormat is the HH:MM layout used for session times.
const ClockFormat = "15:04"

// minutesPerDay bounds Clock values.
const minutesPerDay = 24 * 60

// Clock is a time of day with minute precision, counted from midnight.
type Clock int

// ParseClock parses an HH:MM string.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockFormat, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// MustClock parses s and panics on failure. Only for constants and tests.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hour returns the hour component.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c Clock) Minute() int { return int(c) % 60 }

// Sub shifts the clock back by d, wrapping around midnight.
// The result stays a time of day; the calendar day is not carried.
func (c Clock) Sub(d time.Duration) Clock {
	m := (int(c) - int(d/time.Minute)) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return Clock(m)
}

// String formats the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
