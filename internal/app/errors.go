package app

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Reason codes carried by ScheduleError, surfaced verbatim to clients.
const (
	CodeInvalidDayOfWeek        = "INVALID_DAY_OF_WEEK"
	CodeInvalidTimeRange        = "INVALID_TIME_RANGE"
	CodeOverlappingAvailability = "OVERLAPPING_AVAILABILITY"
)

// ScheduleError is a weekly-schedule validation failure. It always maps to
// a 400 at the boundary and is never retried.
type ScheduleError struct {
	Code   string
	Detail string
}

func (e *ScheduleError) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}

// Message is the human-facing text for a reason code.
func (e *ScheduleError) Message() string {
	switch e.Code {
	case CodeInvalidDayOfWeek:
		return "Invalid day of week"
	case CodeInvalidTimeRange:
		return "Start time must be before end time"
	case CodeOverlappingAvailability:
		return "Availability slots cannot overlap"
	}
	return e.Code
}

var (
	// ErrSlotTaken means the candidate window collides with a confirmed
	// booking on the same event type. Recoverable: the guest picks another
	// slot. Maps to 409.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrNotFound covers unknown users, event types and bookings. Maps to 404.
	ErrNotFound = errors.New("not found")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
