package app

import (
	"fmt"
	"sort"
)

// ValidateSchedule enforces the invariants a weekly schedule must satisfy
// before it replaces the stored one: every day index within [0,6], every
// rule with start < end, and no two active rules on the same day
// overlapping. This runs at the replace boundary and is the single
// enforcement point for schedule shape.
func ValidateSchedule(schedule []WeeklyRule) error {
	byDay := make(map[int][]TimeWindow)

	for _, r := range schedule {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return &ScheduleError{Code: CodeInvalidDayOfWeek, Detail: fmt.Sprintf("day %d", r.DayOfWeek)}
		}
		start, err := ParseClockTime(r.StartTime)
		if err != nil {
			return &ScheduleError{Code: CodeInvalidTimeRange, Detail: err.Error()}
		}
		end, err := ParseClockTime(r.EndTime)
		if err != nil {
			return &ScheduleError{Code: CodeInvalidTimeRange, Detail: err.Error()}
		}
		if start >= end {
			return &ScheduleError{Code: CodeInvalidTimeRange, Detail: fmt.Sprintf("%s >= %s", start, end)}
		}
		if !r.IsActive {
			continue
		}
		byDay[r.DayOfWeek] = append(byDay[r.DayOfWeek], TimeWindow{Start: start, End: end})
	}

	for day, windows := range byDay {
		sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })
		for i := 1; i < len(windows); i++ {
			if windows[i].Start < windows[i-1].End {
				return &ScheduleError{Code: CodeOverlappingAvailability, Detail: fmt.Sprintf("day %d", day)}
			}
		}
	}
	return nil
}
