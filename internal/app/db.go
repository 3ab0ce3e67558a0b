package app

import (
	"context"
	_ "embed"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// Bootstrap applies the embedded DDL. Every statement is IF NOT EXISTS, so
// running it on every start is safe.
func (a *App) Bootstrap(ctx context.Context) error {
	_, err := a.DB.Exec(ctx, schemaSQL)
	return err
}

// --- users ---

func (a *App) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	q := `SELECT id, username, name, email, COALESCE(bio,''), timezone FROM users WHERE username=$1`
	var u User
	err := a.DB.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.Bio, &u.Timezone)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (a *App) UpdateUserTimezone(ctx context.Context, userID int, timezone string) (*User, error) {
	q := `UPDATE users SET timezone=$1 WHERE id=$2
	      RETURNING id, username, name, email, COALESCE(bio,''), timezone`
	var u User
	err := a.DB.QueryRow(ctx, q, timezone, userID).Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.Bio, &u.Timezone)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// --- event types ---

const eventTypeCols = `id, user_id, title, slug, COALESCE(description,''), duration_minutes, buffer_minutes, is_hidden`

func scanEventType(row pgx.Row) (*EventType, error) {
	var et EventType
	err := row.Scan(&et.ID, &et.UserID, &et.Title, &et.Slug, &et.Description,
		&et.DurationMins, &et.BufferMins, &et.IsHidden)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &et, nil
}

// ListEventTypes returns the host's visible event types; hidden ones stay
// out of the public listing.
func (a *App) ListEventTypes(ctx context.Context, userID int) ([]EventType, error) {
	q := `SELECT ` + eventTypeCols + ` FROM event_types WHERE user_id=$1 AND is_hidden=FALSE ORDER BY id`
	rows, err := a.DB.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventType
	for rows.Next() {
		et, err := scanEventType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *et)
	}
	return out, rows.Err()
}

func (a *App) GetEventType(ctx context.Context, id int) (*EventType, error) {
	q := `SELECT ` + eventTypeCols + ` FROM event_types WHERE id=$1`
	return scanEventType(a.DB.QueryRow(ctx, q, id))
}

func (a *App) GetEventTypeBySlug(ctx context.Context, username, slug string) (*EventType, error) {
	q := `SELECT et.id, et.user_id, et.title, et.slug, COALESCE(et.description,''),
	             et.duration_minutes, et.buffer_minutes, et.is_hidden
	      FROM event_types et
	      JOIN users u ON u.id = et.user_id
	      WHERE u.username=$1 AND et.slug=$2`
	return scanEventType(a.DB.QueryRow(ctx, q, username, slug))
}

func (a *App) CreateEventType(ctx context.Context, et *EventType) error {
	q := `INSERT INTO event_types (user_id, title, slug, description, duration_minutes, buffer_minutes, is_hidden)
	      VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`
	return a.DB.QueryRow(ctx, q, et.UserID, et.Title, et.Slug, et.Description,
		et.DurationMins, et.BufferMins, et.IsHidden).Scan(&et.ID)
}

func (a *App) UpdateEventType(ctx context.Context, et *EventType) (*EventType, error) {
	q := `UPDATE event_types
	      SET title=$1, slug=$2, description=$3, duration_minutes=$4, buffer_minutes=$5, is_hidden=$6
	      WHERE id=$7
	      RETURNING ` + eventTypeCols
	return scanEventType(a.DB.QueryRow(ctx, q, et.Title, et.Slug, et.Description,
		et.DurationMins, et.BufferMins, et.IsHidden, et.ID))
}

// HideEventType is the delete operation: soft, so bookings made against the
// type keep a valid reference.
func (a *App) HideEventType(ctx context.Context, id int) error {
	res, err := a.DB.Exec(ctx, `UPDATE event_types SET is_hidden=TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- weekly rules ---

func (a *App) GetWeeklyRules(ctx context.Context, userID int) ([]WeeklyRule, error) {
	q := `SELECT id, user_id, day_of_week, start_time, end_time, is_active
	      FROM weekly_rules WHERE user_id=$1 ORDER BY day_of_week, start_time`
	rows, err := a.DB.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WeeklyRule
	for rows.Next() {
		var r WeeklyRule
		if err := rows.Scan(&r.ID, &r.UserID, &r.DayOfWeek, &r.StartTime, &r.EndTime, &r.IsActive); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceWeeklyRules validates the schedule and swaps it in wholesale:
// delete-all-then-insert-all inside one transaction, so a reader never
// observes a half-replaced (or empty mid-update) schedule and a failed
// insert leaves the prior schedule intact.
func (a *App) ReplaceWeeklyRules(ctx context.Context, userID int, schedule []WeeklyRule) ([]WeeklyRule, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}

	tx, err := a.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_rules WHERE user_id=$1`, userID); err != nil {
		return nil, err
	}

	saved := make([]WeeklyRule, 0, len(schedule))
	for _, r := range schedule {
		r.UserID = userID
		err := tx.QueryRow(ctx,
			`INSERT INTO weekly_rules (user_id, day_of_week, start_time, end_time, is_active)
			 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			r.UserID, r.DayOfWeek, r.StartTime, r.EndTime, r.IsActive,
		).Scan(&r.ID)
		if err != nil {
			return nil, err
		}
		saved = append(saved, r)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	a.Log.Info("weekly schedule replaced", zap.Int("user_id", userID), zap.Int("rules", len(saved)))
	return saved, nil
}

// --- date overrides ---

// GetDateOverride returns (nil, nil) when the date has no override; absence
// means "defer to the weekly rule" and is not an error.
func (a *App) GetDateOverride(ctx context.Context, userID int, date string) (*DateOverride, error) {
	q := `SELECT id, user_id, date, is_blocked, start_time, end_time
	      FROM date_overrides WHERE user_id=$1 AND date=$2`
	var o DateOverride
	err := a.DB.QueryRow(ctx, q, userID, date).Scan(&o.ID, &o.UserID, &o.Date, &o.IsBlocked, &o.StartTime, &o.EndTime)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpsertDateOverride creates or replaces the single override a (host, date)
// pair may carry.
func (a *App) UpsertDateOverride(ctx context.Context, o *DateOverride) error {
	q := `INSERT INTO date_overrides (user_id, date, is_blocked, start_time, end_time)
	      VALUES ($1,$2,$3,$4,$5)
	      ON CONFLICT (user_id, date)
	      DO UPDATE SET is_blocked=EXCLUDED.is_blocked, start_time=EXCLUDED.start_time, end_time=EXCLUDED.end_time
	      RETURNING id`
	return a.DB.QueryRow(ctx, q, o.UserID, o.Date, o.IsBlocked, o.StartTime, o.EndTime).Scan(&o.ID)
}

func (a *App) DeleteDateOverride(ctx context.Context, userID int, date string) error {
	res, err := a.DB.Exec(ctx, `DELETE FROM date_overrides WHERE user_id=$1 AND date=$2`, userID, date)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- bookings ---

const bookingCols = `id, event_type_id, user_id, guest_name, guest_email, COALESCE(guest_notes,''), start_time, end_time, status, created_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.EventTypeID, &b.UserID, &b.GuestName, &b.GuestEmail,
		&b.GuestNotes, &b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBookings returns the host's bookings joined with their event type,
// ordered by start time, for the dashboard.
func (a *App) ListBookings(ctx context.Context, userID int) ([]Booking, error) {
	q := `SELECT b.id, b.event_type_id, b.user_id, b.guest_name, b.guest_email, COALESCE(b.guest_notes,''),
	             b.start_time, b.end_time, b.status, b.created_at,
	             et.id, et.user_id, et.title, et.slug, COALESCE(et.description,''),
	             et.duration_minutes, et.buffer_minutes, et.is_hidden
	      FROM bookings b
	      JOIN event_types et ON et.id = b.event_type_id
	      WHERE b.user_id=$1
	      ORDER BY b.start_time`
	rows, err := a.DB.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		var et EventType
		if err := rows.Scan(&b.ID, &b.EventTypeID, &b.UserID, &b.GuestName, &b.GuestEmail, &b.GuestNotes,
			&b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt,
			&et.ID, &et.UserID, &et.Title, &et.Slug, &et.Description,
			&et.DurationMins, &et.BufferMins, &et.IsHidden); err != nil {
			return nil, err
		}
		b.EventType = &et
		out = append(out, b)
	}
	return out, rows.Err()
}

func (a *App) GetBooking(ctx context.Context, id string) (*Booking, error) {
	return scanBooking(a.DB.QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id=$1`, id))
}

// CancelBooking flips a booking to cancelled. Idempotent: re-cancelling
// returns the row unchanged, and bookings are never deleted (audit trail).
func (a *App) CancelBooking(ctx context.Context, id string) (*Booking, error) {
	q := `UPDATE bookings SET status=$1 WHERE id=$2 RETURNING ` + bookingCols
	b, err := scanBooking(a.DB.QueryRow(ctx, q, StatusCancelled, id))
	if err != nil {
		return nil, err
	}
	a.Cache.Invalidate(ctx, slotCacheKey(b.EventTypeID, b.StartTime.UTC().Format(dateLayout)))
	return b, nil
}

// ListConfirmedOverlaps returns confirmed bookings on the event type whose
// stored window overlaps [winStart, winEnd) under the half-open rule.
func (a *App) ListConfirmedOverlaps(ctx context.Context, eventTypeID int, winStart, winEnd time.Time) ([]Booking, error) {
	q := `SELECT ` + bookingCols + ` FROM bookings
	      WHERE event_type_id=$1 AND status=$2 AND start_time < $3 AND end_time > $4
	      ORDER BY start_time`
	rows, err := a.DB.Query(ctx, q, eventTypeID, StatusConfirmed, winEnd, winStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.EventTypeID, &b.UserID, &b.GuestName, &b.GuestEmail,
			&b.GuestNotes, &b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- transactional pieces of Reserve ---

// getEventTypeForUpdate locks the event-type row, serializing concurrent
// reservation attempts on the same event type for the life of the tx.
func (a *App) getEventTypeForUpdate(ctx context.Context, tx pgx.Tx, id int) (*EventType, error) {
	q := `SELECT ` + eventTypeCols + ` FROM event_types WHERE id=$1 FOR UPDATE`
	return scanEventType(tx.QueryRow(ctx, q, id))
}

func (a *App) hasConfirmedOverlap(ctx context.Context, tx pgx.Tx, eventTypeID int, winStart, winEnd time.Time) (bool, error) {
	q := `SELECT EXISTS (
	        SELECT 1 FROM bookings
	        WHERE event_type_id=$1 AND status=$2 AND start_time < $3 AND end_time > $4)`
	var exists bool
	err := tx.QueryRow(ctx, q, eventTypeID, StatusConfirmed, winEnd, winStart).Scan(&exists)
	return exists, err
}

func (a *App) insertBooking(ctx context.Context, tx pgx.Tx, b *Booking) error {
	q := `INSERT INTO bookings (id, event_type_id, user_id, guest_name, guest_email, guest_notes, start_time, end_time, status, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
	      RETURNING created_at`
	return tx.QueryRow(ctx, q, b.ID, b.EventTypeID, b.UserID, b.GuestName, b.GuestEmail,
		b.GuestNotes, b.StartTime, b.EndTime, b.Status).Scan(&b.CreatedAt)
}

// --- demo seed ---

// SeedDemo provisions the demo host with two event types and a Mon-Fri
// 09:00-17:00 schedule. No-op when the host already exists.
func (a *App) SeedDemo(ctx context.Context) error {
	if _, err := a.GetUserByUsername(ctx, "demo"); err == nil {
		return nil
	} else if err != ErrNotFound {
		return err
	}

	var userID int
	err := a.DB.QueryRow(ctx,
		`INSERT INTO users (username, name, email, bio, timezone)
		 VALUES ('demo', 'Demo User', 'demo@example.com', 'I love scheduling things.', 'America/New_York')
		 RETURNING id`).Scan(&userID)
	if err != nil {
		return err
	}

	seedTypes := []EventType{
		{UserID: userID, Title: "15 Min Meeting", Slug: "15min", Description: "A quick catch-up.", DurationMins: 15},
		{UserID: userID, Title: "30 Min Meeting", Slug: "30min", Description: "Standard meeting duration.", DurationMins: 30},
	}
	for i := range seedTypes {
		if err := a.CreateEventType(ctx, &seedTypes[i]); err != nil {
			return err
		}
	}

	var schedule []WeeklyRule
	for day := 1; day <= 5; day++ {
		schedule = append(schedule, WeeklyRule{DayOfWeek: day, StartTime: "09:00", EndTime: "17:00", IsActive: true})
	}
	_, err = a.ReplaceWeeklyRules(ctx, userID, schedule)
	if err != nil {
		return err
	}

	a.Log.Info("demo data seeded", zap.Int("user_id", userID))
	return nil
}
