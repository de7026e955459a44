package session

import (
	"fmt"
	"time"
)

// Default recording policy values.
const (
	DefaultLookbackDays = 7
	DefaultLeadTime     = 2 * time.Hour
)

// Policy holds the tunables of the recording window.
type Policy struct {
	LookbackDays int           // past days recordable, counted back from today
	LeadTime     time.Duration // how early before start time recording opens today
}

// DefaultPolicy returns the standard 7-day lookback, 2-hour lead policy.
func DefaultPolicy() Policy {
	return Policy{LookbackDays: DefaultLookbackDays, LeadTime: DefaultLeadTime}
}

// Window is the span during which attendance for today's session is accepted.
// Bounds carry minute precision like session times.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, both ends inclusive at
// minute granularity: 17:00:59 is still "at 17:00".
func (w Window) Contains(t time.Time) bool {
	t = t.Truncate(time.Minute)
	return !t.Before(w.Start) && !t.After(w.End)
}

// TodayWindow returns the recording window for a session held on now's date.
// The lead time is applied as clock arithmetic: the start wraps within the day
// and remains anchored to today's date.
func (p Policy) TodayWindow(meta Meta, now time.Time) Window {
	today := DateOf(now)
	return Window{
		Start: today.At(meta.StartTime.Sub(p.LeadTime), now.Location()),
		End:   today.At(meta.EndTime, now.Location()),
	}
}

// Check decides whether a new attendance mark may be accepted at now.
// PRE: now is read once by the caller and not re-read during the decision
// POST: nil if recordable, ErrSessionLocked or ErrOutsideRecordingWindow otherwise
// INVARIANT: pure; no hidden state
func (p Policy) Check(key Key, meta Meta, now time.Time) error {
	today := DateOf(now)
	// Future days are refused whatever their state.
	if key.Date.After(today) {
		return fmt.Errorf("%w: %s is in the future", ErrOutsideRecordingWindow, key.Date)
	}
	if meta.Locked() {
		return fmt.Errorf("%w: %s is %s", ErrSessionLocked, key, meta.State())
	}
	switch {
	case key.Date.Before(today):
		if diff := today.DaysSince(key.Date); diff > p.LookbackDays {
			return fmt.Errorf("%w: %s is %d days ago, limit is %d", ErrOutsideRecordingWindow, key.Date, diff, p.LookbackDays)
		}
		return nil
	default:
		w := p.TodayWindow(meta, now)
		if !w.Contains(now) {
			return fmt.Errorf("%w: open %s-%s today", ErrOutsideRecordingWindow, w.Start.Format(ClockFormat), w.End.Format(ClockFormat))
		}
		return nil
	}
}

// CanRecordNow reports whether attendance may be recorded for key at now
// under the default policy.
func CanRecordNow(key Key, meta Meta, now time.Time) bool {
	return DefaultPolicy().Check(key, meta, now) == nil
}

// CheckRecordable is Check under the default policy.
func CheckRecordable(key Key, meta Meta, now time.Time) error {
	return DefaultPolicy().Check(key, meta, now)
}
