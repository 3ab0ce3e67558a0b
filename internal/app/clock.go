package app

import (
	"fmt"
	"time"
)

// ClockTime is a time of day in whole minutes since midnight, 0..1439.
// It carries no timezone; it is the same naive "HH:MM" label the schedule
// rows store.
type ClockTime int

const minutesPerDay = 24 * 60

// ParseClockTime parses "HH:MM". Trailing seconds ("09:00:00") are ignored,
// matching what some drivers hand back for TIME columns.
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) < 5 {
		return 0, fmt.Errorf("invalid time string: %s", s)
	}
	t, err := time.Parse("15:04", s[:5])
	if err != nil {
		return 0, fmt.Errorf("invalid time string: %s", s)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) AddMinutes(n int) ClockTime {
	return c + ClockTime(n)
}

func (c ClockTime) Valid() bool {
	return c >= 0 && c < minutesPerDay
}

// ToAbsolute pins the clock time onto a calendar day. All absolute
// timestamps in the service are UTC; see DESIGN.md on the timezone decision.
func (c ClockTime) ToAbsolute(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, time.UTC)
}

// TimeWindow is a half-open interval [Start, End) within a single day.
type TimeWindow struct {
	Start ClockTime
	End   ClockTime
}

// Overlaps reports whether two half-open windows intersect. Windows that
// merely touch ([09:00,09:30) and [09:30,10:00)) do not overlap.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start < o.End && w.End > o.Start
}

func (w TimeWindow) Contains(c ClockTime) bool {
	return c >= w.Start && c < w.End
}

func (w TimeWindow) Minutes() int {
	return int(w.End - w.Start)
}
