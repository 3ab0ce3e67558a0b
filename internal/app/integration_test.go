package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// These tests need a real postgres; set TEST_DATABASE_URL to run them.

func newTestApp(t *testing.T) *App {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	a := &App{DB: pool, Log: zap.NewNop()}
	if err := a.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return a
}

func createTestHost(t *testing.T, a *App) *User {
	t.Helper()
	ctx := context.Background()
	username := fmt.Sprintf("it-%d", time.Now().UnixNano())
	var u User
	err := a.DB.QueryRow(ctx,
		`INSERT INTO users (username, name, email) VALUES ($1, 'Test Host', $1 || '@example.com')
		 RETURNING id, username, name, email, COALESCE(bio,''), timezone`,
		username,
	).Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.Bio, &u.Timezone)
	if err != nil {
		t.Fatalf("create host: %v", err)
	}
	return &u
}

func createTestEventType(t *testing.T, a *App, userID, duration, buffer int) *EventType {
	t.Helper()
	et := &EventType{
		UserID:       userID,
		Title:        "Test Meeting",
		Slug:         fmt.Sprintf("slot-%d", time.Now().UnixNano()),
		DurationMins: duration,
		BufferMins:   buffer,
	}
	if err := a.CreateEventType(context.Background(), et); err != nil {
		t.Fatalf("create event type: %v", err)
	}
	return et
}

func TestReplaceWeeklyRulesRoundTrip(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	host := createTestHost(t, a)

	first := []WeeklyRule{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true},
		{DayOfWeek: 2, StartTime: "10:00", EndTime: "16:00", IsActive: true},
	}
	saved, err := a.ReplaceWeeklyRules(ctx, host.ID, first)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(saved))
	}

	// A second replace swaps the set wholesale.
	second := []WeeklyRule{{DayOfWeek: 3, StartTime: "08:00", EndTime: "12:00", IsActive: true}}
	if _, err := a.ReplaceWeeklyRules(ctx, host.ID, second); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	rules, err := a.GetWeeklyRules(ctx, host.ID)
	if err != nil {
		t.Fatalf("get rules: %v", err)
	}
	if len(rules) != 1 || rules[0].DayOfWeek != 3 {
		t.Fatalf("expected the replacement schedule, got %+v", rules)
	}

	// An invalid replace leaves the stored schedule untouched.
	bad := []WeeklyRule{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", IsActive: true},
		{DayOfWeek: 1, StartTime: "11:00", EndTime: "13:00", IsActive: true},
	}
	if _, err := a.ReplaceWeeklyRules(ctx, host.ID, bad); err == nil {
		t.Fatal("expected overlapping schedule to be rejected")
	}
	rules, err = a.GetWeeklyRules(ctx, host.ID)
	if err != nil {
		t.Fatalf("get rules: %v", err)
	}
	if len(rules) != 1 || rules[0].DayOfWeek != 3 {
		t.Fatalf("expected prior schedule to survive the failed replace, got %+v", rules)
	}
}

func TestReserveRejectsOverlap(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	host := createTestHost(t, a)
	et := createTestEventType(t, a, host.ID, 30, 0)

	start := time.Date(2026, 1, 26, 9, 15, 0, 0, time.UTC)
	if _, err := a.Reserve(ctx, ReserveRequest{
		EventTypeID: et.ID, GuestName: "A", GuestEmail: "a@example.com", Start: start,
	}); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	// 09:00-09:30 overlaps the existing 09:15-09:45.
	_, err := a.Reserve(ctx, ReserveRequest{
		EventTypeID: et.ID, GuestName: "B", GuestEmail: "b@example.com",
		Start: time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// A touching window is fine.
	if _, err := a.Reserve(ctx, ReserveRequest{
		EventTypeID: et.ID, GuestName: "C", GuestEmail: "c@example.com",
		Start: time.Date(2026, 1, 26, 9, 45, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("touching reserve: %v", err)
	}
}

func TestReserveBufferEnforced(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	host := createTestHost(t, a)
	et := createTestEventType(t, a, host.ID, 30, 15)

	if _, err := a.Reserve(ctx, ReserveRequest{
		EventTypeID: et.ID, GuestName: "A", GuestEmail: "a@example.com",
		Start: time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	// 09:35 is clear of the raw window but inside the 15-minute buffer.
	_, err := a.Reserve(ctx, ReserveRequest{
		EventTypeID: et.ID, GuestName: "B", GuestEmail: "b@example.com",
		Start: time.Date(2026, 1, 26, 9, 35, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected buffer conflict, got %v", err)
	}

	// 09:45 leaves exactly the buffer gap.
	if _, err := a.Reserve(ctx, ReserveRequest{
		EventTypeID: et.ID, GuestName: "C", GuestEmail: "c@example.com",
		Start: time.Date(2026, 1, 26, 9, 45, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("stride-aligned reserve: %v", err)
	}
}

func TestReserveConcurrentRace(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	host := createTestHost(t, a)
	et := createTestEventType(t, a, host.ID, 30, 0)

	start := time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := a.Reserve(ctx, ReserveRequest{
				EventTypeID: et.ID,
				GuestName:   fmt.Sprintf("Guest %d", i),
				GuestEmail:  fmt.Sprintf("g%d@example.com", i),
				Start:       start,
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	won, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotTaken):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != attempts-1 {
		t.Fatalf("expected exactly one winner, got %d winners and %d conflicts", won, lost)
	}
}

func TestCancelBookingIdempotent(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	host := createTestHost(t, a)
	et := createTestEventType(t, a, host.ID, 30, 0)

	b, err := a.Reserve(ctx, ReserveRequest{
		EventTypeID: et.ID, GuestName: "A", GuestEmail: "a@example.com",
		Start: time.Date(2026, 1, 26, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	first, err := a.CancelBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if first.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", first.Status)
	}

	second, err := a.CancelBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if second.Status != StatusCancelled || !second.StartTime.Equal(first.StartTime) || !second.EndTime.Equal(first.EndTime) {
		t.Fatal("expected second cancel to leave the booking unchanged")
	}

	// The cancelled slot is bookable again.
	if _, err := a.Reserve(ctx, ReserveRequest{
		EventTypeID: et.ID, GuestName: "B", GuestEmail: "b@example.com",
		Start: time.Date(2026, 1, 26, 11, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
}

func TestSlotsForDateFiltersBooked(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	host := createTestHost(t, a)
	et := createTestEventType(t, a, host.ID, 30, 0)

	if _, err := a.ReplaceWeeklyRules(ctx, host.ID, []WeeklyRule{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "11:00", IsActive: true},
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	day := time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC) // Monday
	slots, err := a.SlotsForDate(ctx, et, day)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}

	if _, err := a.Reserve(ctx, ReserveRequest{
		EventTypeID: et.ID, GuestName: "A", GuestEmail: "a@example.com",
		Start: time.Date(2026, 1, 26, 9, 30, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	slots, err = a.SlotsForDate(ctx, et, day)
	if err != nil {
		t.Fatalf("slots after booking: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 open slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.String() == "09:30" {
			t.Fatal("expected the booked slot to be filtered out")
		}
	}
}
