package app

import (
	"context"
	"sort"
	"time"
)

// GenerateSlots expands one calendar day into bookable start times.
//
// Resolution order: a blocked override wins outright; override hours replace
// the weekly windows for that date; otherwise every active weekly rule for
// the date's weekday contributes its window (the validator guarantees those
// never overlap). Slots advance by duration+buffer, and a start is emitted
// only while the whole stride still fits inside the window; a window ending
// exactly on a stride boundary includes that last slot.
//
// Pure function of its inputs: no clock, no store, deterministic order.
func GenerateSlots(date time.Time, rules []WeeklyRule, override *DateOverride, durationMins, bufferMins int) ([]ClockTime, error) {
	if durationMins < 1 {
		durationMins = 1
	}
	if bufferMins < 0 {
		bufferMins = 0
	}

	var windows []TimeWindow
	switch {
	case override != nil && override.IsBlocked:
		return nil, nil
	case override != nil && override.StartTime != nil && override.EndTime != nil:
		start, err := ParseClockTime(*override.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := ParseClockTime(*override.EndTime)
		if err != nil {
			return nil, err
		}
		if start < end {
			windows = append(windows, TimeWindow{Start: start, End: end})
		}
	default:
		weekday := int(date.Weekday())
		for _, r := range rules {
			if !r.IsActive || r.DayOfWeek != weekday {
				continue
			}
			start, err := ParseClockTime(r.StartTime)
			if err != nil {
				return nil, err
			}
			end, err := ParseClockTime(r.EndTime)
			if err != nil {
				return nil, err
			}
			if start < end {
				windows = append(windows, TimeWindow{Start: start, End: end})
			}
		}
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })

	step := durationMins + bufferMins
	var slots []ClockTime
	for _, w := range windows {
		for cur := w.Start; int(cur)+step <= int(w.End); cur = cur.AddMinutes(step) {
			slots = append(slots, cur)
		}
	}
	return slots, nil
}

// candidateSlots resolves the host's rules and override for the date and
// generates the day's candidate starts, ignoring existing bookings.
func (a *App) candidateSlots(ctx context.Context, et *EventType, date time.Time) ([]ClockTime, error) {
	rules, err := a.GetWeeklyRules(ctx, et.UserID)
	if err != nil {
		return nil, err
	}
	override, err := a.GetDateOverride(ctx, et.UserID, date.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	return GenerateSlots(date, rules, override, et.DurationMins, et.BufferMins)
}

// SlotsForDate generates the day's candidates and drops any whose buffered
// window already collides with a confirmed booking on the event type.
func (a *App) SlotsForDate(ctx context.Context, et *EventType, date time.Time) ([]ClockTime, error) {
	candidates, err := a.candidateSlots(ctx, et, date)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// One range query covers the whole day including buffer spill-over.
	dayStart := ClockTime(0).ToAbsolute(date).Add(-time.Duration(et.BufferMins) * time.Minute)
	dayEnd := ClockTime(0).ToAbsolute(date).Add(24*time.Hour + time.Duration(et.BufferMins)*time.Minute)
	booked, err := a.ListConfirmedOverlaps(ctx, et.ID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(et.DurationMins) * time.Minute
	var open []ClockTime
	for _, c := range candidates {
		start := c.ToAbsolute(date)
		bufStart, bufEnd := BufferedWindow(start, start.Add(duration), et.BufferMins)
		conflict := false
		for _, b := range booked {
			if WindowsOverlap(bufStart, bufEnd, b.StartTime, b.EndTime) {
				conflict = true
				break
			}
		}
		if !conflict {
			open = append(open, c)
		}
	}
	return open, nil
}
