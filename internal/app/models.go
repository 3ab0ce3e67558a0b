package app

import "time"

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Bio      string `json:"bio,omitempty"`
	Timezone string `json:"timezone"`
}

type EventType struct {
	ID           int    `json:"id"`
	UserID       int    `json:"user_id"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	Description  string `json:"description,omitempty"`
	DurationMins int    `json:"duration_minutes"`
	BufferMins   int    `json:"buffer_minutes"`
	IsHidden     bool   `json:"is_hidden"`
}

// WeeklyRule is one recurring availability window. Times are naive local
// "HH:MM" strings; the set of rules for a user is replaced wholesale on
// every edit, so rule IDs do not survive updates.
type WeeklyRule struct {
	ID        int    `json:"id"`
	UserID    int    `json:"user_id"`
	DayOfWeek int    `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsActive  bool   `json:"is_active"`
}

// DateOverride is a one-off exception for a single calendar date. A blocked
// date has no slots at all; explicit hours replace the weekly rule's window
// for that date only.
type DateOverride struct {
	ID        int     `json:"id"`
	UserID    int     `json:"user_id"`
	Date      string  `json:"date"` // "YYYY-MM-DD"
	IsBlocked bool    `json:"is_blocked"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
}

type Booking struct {
	ID          string     `json:"id"`
	EventTypeID int        `json:"event_type_id"`
	UserID      int        `json:"user_id"`
	GuestName   string     `json:"guest_name"`
	GuestEmail  string     `json:"guest_email"`
	GuestNotes  string     `json:"guest_notes,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	EventType   *EventType `json:"event_type,omitempty"`
}

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)
