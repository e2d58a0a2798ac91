// Package clock supplies the current time and local day boundaries.
package clock

import "time"

// Clock is the time source used by the engine and the monitor.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in a fixed location.
type System struct {
	loc *time.Location
}

// NewSystem creates a wall clock. A nil location means time.Local.
func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.Local
	}
	return &System{loc: loc}
}

// Now returns the current time in the clock's location.
func (s *System) Now() time.Time { return time.Now().In(s.loc) }

// StartOfDay truncates t to local midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextDay returns the start of the day after t.
func NextDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// TodayStart is StartOfDay(c.Now()).
func TodayStart(c Clock) time.Time {
	return StartOfDay(c.Now())
}

// LoadLocation resolves a zone name; empty means time.Local.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
