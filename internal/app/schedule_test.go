package app

import (
	"errors"
	"testing"
)

func scheduleCode(t *testing.T, err error) string {
	t.Helper()
	var serr *ScheduleError
	if !errors.As(err, &serr) {
		t.Fatalf("expected ScheduleError, got %v", err)
	}
	return serr.Code
}

func TestValidateScheduleOK(t *testing.T) {
	schedule := []WeeklyRule{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", IsActive: true},
		{DayOfWeek: 1, StartTime: "13:00", EndTime: "17:00", IsActive: true},
		{DayOfWeek: 2, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}
	if err := ValidateSchedule(schedule); err != nil {
		t.Fatalf("expected valid schedule, got %v", err)
	}
}

func TestValidateScheduleEmpty(t *testing.T) {
	if err := ValidateSchedule(nil); err != nil {
		t.Fatalf("expected empty schedule to be valid, got %v", err)
	}
}

func TestValidateScheduleInvalidDay(t *testing.T) {
	for _, day := range []int{-1, 7} {
		err := ValidateSchedule([]WeeklyRule{{DayOfWeek: day, StartTime: "09:00", EndTime: "17:00", IsActive: true}})
		if code := scheduleCode(t, err); code != CodeInvalidDayOfWeek {
			t.Fatalf("day %d: expected %s, got %s", day, CodeInvalidDayOfWeek, code)
		}
	}
}

func TestValidateScheduleInvalidRange(t *testing.T) {
	cases := [][2]string{
		{"17:00", "09:00"}, // inverted
		{"09:00", "09:00"}, // empty
	}
	for _, c := range cases {
		err := ValidateSchedule([]WeeklyRule{{DayOfWeek: 1, StartTime: c[0], EndTime: c[1], IsActive: true}})
		if code := scheduleCode(t, err); code != CodeInvalidTimeRange {
			t.Fatalf("%s-%s: expected %s, got %s", c[0], c[1], CodeInvalidTimeRange, code)
		}
	}
}

func TestValidateScheduleMalformedTime(t *testing.T) {
	err := ValidateSchedule([]WeeklyRule{{DayOfWeek: 1, StartTime: "nope", EndTime: "17:00", IsActive: true}})
	if code := scheduleCode(t, err); code != CodeInvalidTimeRange {
		t.Fatalf("expected %s, got %s", CodeInvalidTimeRange, code)
	}
}

func TestValidateScheduleOverlap(t *testing.T) {
	schedule := []WeeklyRule{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", IsActive: true},
		{DayOfWeek: 1, StartTime: "11:00", EndTime: "13:00", IsActive: true},
	}
	err := ValidateSchedule(schedule)
	if code := scheduleCode(t, err); code != CodeOverlappingAvailability {
		t.Fatalf("expected %s, got %s", CodeOverlappingAvailability, code)
	}
}

func TestValidateScheduleOverlapUnsortedInput(t *testing.T) {
	schedule := []WeeklyRule{
		{DayOfWeek: 3, StartTime: "11:00", EndTime: "13:00", IsActive: true},
		{DayOfWeek: 3, StartTime: "09:00", EndTime: "12:00", IsActive: true},
	}
	err := ValidateSchedule(schedule)
	if code := scheduleCode(t, err); code != CodeOverlappingAvailability {
		t.Fatalf("expected %s, got %s", CodeOverlappingAvailability, code)
	}
}

func TestValidateScheduleTouchingWindows(t *testing.T) {
	// [09:00,12:00) then [12:00,17:00) share an endpoint but do not overlap.
	schedule := []WeeklyRule{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", IsActive: true},
		{DayOfWeek: 1, StartTime: "12:00", EndTime: "17:00", IsActive: true},
	}
	if err := ValidateSchedule(schedule); err != nil {
		t.Fatalf("expected touching windows to be valid, got %v", err)
	}
}

func TestValidateScheduleInactiveOverlapAllowed(t *testing.T) {
	// Inactive rules must still be well formed but do not collide.
	schedule := []WeeklyRule{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", IsActive: true},
		{DayOfWeek: 1, StartTime: "10:00", EndTime: "14:00", IsActive: false},
	}
	if err := ValidateSchedule(schedule); err != nil {
		t.Fatalf("expected inactive overlap to be valid, got %v", err)
	}
}

func TestValidateScheduleSameWindowDifferentDays(t *testing.T) {
	schedule := []WeeklyRule{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true},
		{DayOfWeek: 2, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}
	if err := ValidateSchedule(schedule); err != nil {
		t.Fatalf("expected identical windows on different days to be valid, got %v", err)
	}
}
