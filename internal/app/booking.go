package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BufferedWindow expands a booking window by the event type's buffer on both
// sides. Conflict checks always operate on the buffered window; the stored
// row keeps the unbuffered times.
func BufferedWindow(start, end time.Time, bufferMins int) (time.Time, time.Time) {
	pad := time.Duration(bufferMins) * time.Minute
	return start.Add(-pad), end.Add(pad)
}

// WindowsOverlap is the half-open overlap rule on absolute timestamps:
// [aStart,aEnd) and [bStart,bEnd) overlap iff aStart < bEnd && aEnd > bStart.
func WindowsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

type ReserveRequest struct {
	EventTypeID int
	GuestName   string
	GuestEmail  string
	GuestNotes  string
	Start       time.Time
}

// Reserve books a slot, refusing any candidate whose buffered window
// overlaps an existing confirmed booking on the same event type.
//
// The existence check and the insert run inside one transaction. The event
// type row is locked FOR UPDATE first, so two guests racing for the same
// event type serialize on that lock and at most one passes the overlap
// check. A partial unique index on (event_type_id, start_time) is the
// coarser backstop; its violation comes back as the same ErrSlotTaken, not
// as a storage failure. Requests on different event types never contend.
func (a *App) Reserve(ctx context.Context, req ReserveRequest) (*Booking, error) {
	tx, err := a.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	et, err := a.getEventTypeForUpdate(ctx, tx, req.EventTypeID)
	if err != nil {
		return nil, err
	}

	start := req.Start.UTC().Truncate(time.Minute)
	end := start.Add(time.Duration(et.DurationMins) * time.Minute)
	bufStart, bufEnd := BufferedWindow(start, end, et.BufferMins)

	taken, err := a.hasConfirmedOverlap(ctx, tx, et.ID, bufStart, bufEnd)
	if err != nil {
		return nil, err
	}
	if taken {
		a.Log.Info("booking rejected: conflict",
			zap.Int("event_type_id", et.ID), zap.Time("start", start))
		return nil, ErrSlotTaken
	}

	b := &Booking{
		ID:          uuid.NewString(),
		EventTypeID: et.ID,
		UserID:      et.UserID,
		GuestName:   req.GuestName,
		GuestEmail:  req.GuestEmail,
		GuestNotes:  req.GuestNotes,
		StartTime:   start,
		EndTime:     end,
		Status:      StatusConfirmed,
	}
	if err := a.insertBooking(ctx, tx, b); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	a.Log.Info("booking confirmed",
		zap.String("booking_id", b.ID),
		zap.Int("event_type_id", et.ID),
		zap.Time("start", start))
	a.Cache.Invalidate(ctx, slotCacheKey(et.ID, start.Format(dateLayout)))
	return b, nil
}
