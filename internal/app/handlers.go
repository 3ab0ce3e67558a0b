package app

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fail maps domain errors to HTTP statuses: validation 400, conflict 409,
// not found 404, anything else a generic 500 with the detail logged only.
func (a *App) fail(c *gin.Context, err error) {
	var serr *ScheduleError
	switch {
	case errors.As(err, &serr):
		c.JSON(http.StatusBadRequest, gin.H{"error": serr.Message(), "code": serr.Code})
	case errors.Is(err, ErrSlotTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "This time slot is already booked."})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		a.Log.Error("internal error", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (a *App) userFromPath(c *gin.Context) (*User, bool) {
	u, err := a.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		a.fail(c, err)
		return nil, false
	}
	return u, true
}

// --- users ---

// GET /api/users/:username
func (a *App) GetUserHandler(c *gin.Context) {
	if u, ok := a.userFromPath(c); ok {
		c.JSON(http.StatusOK, u)
	}
}

type updateTimezoneReq struct {
	Timezone string `json:"timezone" binding:"required"`
}

// PATCH /api/users/:username/timezone
func (a *App) UpdateTimezoneHandler(c *gin.Context) {
	u, ok := a.userFromPath(c)
	if !ok {
		return
	}
	var req updateTimezoneReq
	if err := c.BindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	updated, err := a.UpdateUserTimezone(c.Request.Context(), u.ID, req.Timezone)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// --- availability ---

// GET /api/users/:username/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	u, ok := a.userFromPath(c)
	if !ok {
		return
	}
	rules, err := a.GetWeeklyRules(c.Request.Context(), u.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if rules == nil {
		rules = []WeeklyRule{}
	}
	c.JSON(http.StatusOK, rules)
}

type scheduleItem struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	IsActive  bool   `json:"is_active"`
}

type setAvailabilityReq struct {
	Schedule []scheduleItem `json:"schedule" binding:"required"`
}

// PUT /api/users/:username/availability
// The whole schedule is replaced atomically; validation failures carry a
// reason code and leave the stored schedule untouched.
func (a *App) SetAvailabilityHandler(c *gin.Context) {
	u, ok := a.userFromPath(c)
	if !ok {
		return
	}
	var req setAvailabilityReq
	if err := c.BindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	schedule := make([]WeeklyRule, 0, len(req.Schedule))
	for _, s := range req.Schedule {
		schedule = append(schedule, WeeklyRule{
			UserID:    u.ID,
			DayOfWeek: s.DayOfWeek,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			IsActive:  s.IsActive,
		})
	}

	saved, err := a.ReplaceWeeklyRules(c.Request.Context(), u.ID, schedule)
	if err != nil {
		a.fail(c, err)
		return
	}
	if saved == nil {
		saved = []WeeklyRule{}
	}
	c.JSON(http.StatusOK, saved)
}

// --- date overrides ---

// GET /api/users/:username/overrides?date=YYYY-MM-DD
// Responds with the override or a JSON null; "no override" is a normal
// answer, not a 404.
func (a *App) GetOverrideHandler(c *gin.Context) {
	u, ok := a.userFromPath(c)
	if !ok {
		return
	}
	date := c.Query("date")
	if _, err := time.Parse(dateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (YYYY-MM-DD)"})
		return
	}
	override, err := a.GetDateOverride(c.Request.Context(), u.ID, date)
	if err != nil {
		a.fail(c, err)
		return
	}
	if override == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, override)
}

type putOverrideReq struct {
	Date      string  `json:"date" binding:"required"`
	IsBlocked bool    `json:"is_blocked"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
}

// PUT /api/users/:username/overrides
func (a *App) PutOverrideHandler(c *gin.Context) {
	u, ok := a.userFromPath(c)
	if !ok {
		return
	}
	var req putOverrideReq
	if err := c.BindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if _, err := time.Parse(dateLayout, req.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date (YYYY-MM-DD)"})
		return
	}
	if !req.IsBlocked {
		if req.StartTime == nil || req.EndTime == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_time and end_time required unless blocked"})
			return
		}
		start, err := ParseClockTime(*req.StartTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		end, err := ParseClockTime(*req.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if start >= end {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be before end_time"})
			return
		}
	}

	override := &DateOverride{
		UserID:    u.ID,
		Date:      req.Date,
		IsBlocked: req.IsBlocked,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := a.UpsertDateOverride(c.Request.Context(), override); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, override)
}

// DELETE /api/users/:username/overrides?date=YYYY-MM-DD
func (a *App) DeleteOverrideHandler(c *gin.Context) {
	u, ok := a.userFromPath(c)
	if !ok {
		return
	}
	date := c.Query("date")
	if _, err := time.Parse(dateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (YYYY-MM-DD)"})
		return
	}
	if err := a.DeleteDateOverride(c.Request.Context(), u.ID, date); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- event types ---

// GET /api/users/:username/event-types
func (a *App) ListEventTypesHandler(c *gin.Context) {
	u, ok := a.userFromPath(c)
	if !ok {
		return
	}
	types, err := a.ListEventTypes(c.Request.Context(), u.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if types == nil {
		types = []EventType{}
	}
	c.JSON(http.StatusOK, types)
}

// GET /api/users/:username/event-types/:slug
// Hidden event types are indistinguishable from missing ones here.
func (a *App) GetEventTypeBySlugHandler(c *gin.Context) {
	et, err := a.GetEventTypeBySlug(c.Request.Context(), c.Param("username"), c.Param("slug"))
	if err != nil {
		a.fail(c, err)
		return
	}
	if et.IsHidden {
		a.fail(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, et)
}

type createEventTypeReq struct {
	Title        string `json:"title" binding:"required"`
	Slug         string `json:"slug" binding:"required"`
	Description  string `json:"description"`
	DurationMins int    `json:"duration_minutes" binding:"required,gt=0"`
	BufferMins   int    `json:"buffer_minutes" binding:"gte=0"`
	IsHidden     bool   `json:"is_hidden"`
}

// POST /api/users/:username/event-types
func (a *App) CreateEventTypeHandler(c *gin.Context) {
	u, ok := a.userFromPath(c)
	if !ok {
		return
	}
	var req createEventTypeReq
	if err := c.BindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	et := &EventType{
		UserID:       u.ID,
		Title:        req.Title,
		Slug:         req.Slug,
		Description:  req.Description,
		DurationMins: req.DurationMins,
		BufferMins:   req.BufferMins,
		IsHidden:     req.IsHidden,
	}
	if err := a.CreateEventType(c.Request.Context(), et); err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "slug already in use"})
			return
		}
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, et)
}

type updateEventTypeReq struct {
	Title        *string `json:"title"`
	Slug         *string `json:"slug"`
	Description  *string `json:"description"`
	DurationMins *int    `json:"duration_minutes" binding:"omitempty,gt=0"`
	BufferMins   *int    `json:"buffer_minutes" binding:"omitempty,gte=0"`
	IsHidden     *bool   `json:"is_hidden"`
}

// PUT /api/event-types/:id
func (a *App) UpdateEventTypeHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req updateEventTypeReq
	if err := c.BindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	et, err := a.GetEventType(ctx, id)
	if err != nil {
		a.fail(c, err)
		return
	}
	if req.Title != nil {
		et.Title = *req.Title
	}
	if req.Slug != nil {
		et.Slug = *req.Slug
	}
	if req.Description != nil {
		et.Description = *req.Description
	}
	if req.DurationMins != nil {
		et.DurationMins = *req.DurationMins
	}
	if req.BufferMins != nil {
		et.BufferMins = *req.BufferMins
	}
	if req.IsHidden != nil {
		et.IsHidden = *req.IsHidden
	}

	updated, err := a.UpdateEventType(ctx, et)
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "slug already in use"})
			return
		}
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DELETE /api/event-types/:id (soft)
func (a *App) DeleteEventTypeHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := a.HideEventType(c.Request.Context(), id); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- slots ---

// GET /api/users/:username/slots?event_type=slug&date=YYYY-MM-DD
func (a *App) GetSlotsHandler(c *gin.Context) {
	slug := c.Query("event_type")
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_type required"})
		return
	}
	dateStr := c.Query("date")
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (YYYY-MM-DD)"})
		return
	}

	ctx := c.Request.Context()
	et, err := a.GetEventTypeBySlug(ctx, c.Param("username"), slug)
	if err != nil {
		a.fail(c, err)
		return
	}
	if et.IsHidden {
		a.fail(c, ErrNotFound)
		return
	}

	key := slotCacheKey(et.ID, dateStr)
	if cached, ok := a.Cache.Get(ctx, key); ok {
		c.JSON(http.StatusOK, gin.H{"date": dateStr, "slots": cached})
		return
	}

	slots, err := a.SlotsForDate(ctx, et, date)
	if err != nil {
		a.fail(c, err)
		return
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}
	a.Cache.Set(ctx, key, out)
	c.JSON(http.StatusOK, gin.H{"date": dateStr, "slots": out})
}

// --- bookings ---

type createBookingReq struct {
	EventTypeID int    `json:"event_type_id" binding:"required"`
	GuestName   string `json:"guest_name" binding:"required"`
	GuestEmail  string `json:"guest_email" binding:"required,email"`
	GuestNotes  string `json:"guest_notes"`
	StartTime   string `json:"start_time" binding:"required"` // RFC3339
}

// POST /api/bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	var req createBookingReq
	if err := c.BindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_time"})
		return
	}
	start = start.UTC()

	ctx := c.Request.Context()
	et, err := a.GetEventType(ctx, req.EventTypeID)
	if err != nil {
		a.fail(c, err)
		return
	}

	// The requested start must be one of the day's generated candidates.
	// Occupied candidates are left in: a taken slot is a 409 from Reserve,
	// not a 400.
	candidates, err := a.candidateSlots(ctx, et, start)
	if err != nil {
		a.fail(c, err)
		return
	}
	requested := ClockTime(start.Hour()*60 + start.Minute())
	ok := start.Second() == 0 && start.Nanosecond() == 0
	if ok {
		ok = false
		for _, s := range candidates {
			if s == requested {
				ok = true
				break
			}
		}
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot not available"})
		return
	}

	booking, err := a.Reserve(ctx, ReserveRequest{
		EventTypeID: et.ID,
		GuestName:   req.GuestName,
		GuestEmail:  req.GuestEmail,
		GuestNotes:  req.GuestNotes,
		Start:       start,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GET /api/users/:username/bookings
func (a *App) ListBookingsHandler(c *gin.Context) {
	u, ok := a.userFromPath(c)
	if !ok {
		return
	}
	bookings, err := a.ListBookings(c.Request.Context(), u.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	c.JSON(http.StatusOK, bookings)
}

// PATCH /api/bookings/:id/cancel
func (a *App) CancelBookingHandler(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		a.fail(c, ErrNotFound)
		return
	}
	booking, err := a.CancelBooking(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
