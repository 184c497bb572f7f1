package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/slotwise/slotwise/services/booking-service/internal/availability"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

var testDay = model.Date{Year: 2025, Month: time.June, Day: 19} // a Thursday

type fakeWindowStore struct {
	mu      sync.Mutex
	windows []model.AvailabilityWindow
}

func (s *fakeWindowStore) ListByStaff(_ context.Context, staffID string) ([]model.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AvailabilityWindow
	for _, w := range s.windows {
		if w.StaffID == staffID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *fakeWindowStore) Create(_ context.Context, w model.AvailabilityWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, w)
	return nil
}

func (s *fakeWindowStore) Update(_ context.Context, w model.AvailabilityWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.windows {
		if s.windows[i].ID == w.ID {
			s.windows[i] = w
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeWindowStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.windows {
		if s.windows[i].ID == id {
			s.windows = append(s.windows[:i], s.windows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type fakeCatalog struct {
	durations map[string]time.Duration
}

func (c fakeCatalog) Duration(_ context.Context, serviceID string) (time.Duration, error) {
	d, ok := c.durations[serviceID]
	if !ok {
		return 0, ErrNotFound
	}
	return d, nil
}

// fakeApptStore mirrors the real store's guarantee: the overlap check and the
// write happen under one lock, so concurrent inserts serialize.
type fakeApptStore struct {
	mu      sync.Mutex
	appts   map[string]model.Appointment
	catalog fakeCatalog
}

func newFakeApptStore(catalog fakeCatalog) *fakeApptStore {
	return &fakeApptStore{appts: map[string]model.Appointment{}, catalog: catalog}
}

func (s *fakeApptStore) intervalLocked(a model.Appointment) availability.Interval {
	dur := s.catalog.durations[a.ServiceID]
	return availability.Interval{Start: a.ScheduledAt, End: a.ScheduledAt.Add(dur)}
}

func (s *fakeApptStore) occupiedLocked(staffID string, from, to time.Time, excludeID string) []availability.Interval {
	query := availability.Interval{Start: from, End: to}
	var out []availability.Interval
	for _, a := range s.appts {
		if a.StaffID != staffID || !a.Status.Occupies() || a.ID == excludeID {
			continue
		}
		if iv := s.intervalLocked(a); iv.Overlaps(query) {
			out = append(out, iv)
		}
	}
	return out
}

func (s *fakeApptStore) OccupiedIntervals(_ context.Context, staffID string, from, to time.Time, excludeID string) ([]availability.Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occupiedLocked(staffID, from, to, excludeID), nil
}

func (s *fakeApptStore) Insert(_ context.Context, appt model.Appointment, duration time.Duration) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.occupiedLocked(appt.StaffID, appt.ScheduledAt, appt.ScheduledAt.Add(duration), "")) > 0 {
		return model.Appointment{}, fmt.Errorf("slot taken: %w", ErrConflict)
	}
	s.appts[appt.ID] = appt
	return appt, nil
}

func (s *fakeApptStore) Reschedule(_ context.Context, id string, newStart time.Time, duration time.Duration) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	if len(s.occupiedLocked(appt.StaffID, newStart, newStart.Add(duration), id)) > 0 {
		return model.Appointment{}, fmt.Errorf("slot taken: %w", ErrConflict)
	}
	appt.ScheduledAt = newStart
	s.appts[id] = appt
	return appt, nil
}

func (s *fakeApptStore) Transition(_ context.Context, id string, to model.AppointmentStatus) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	if appt.Status == to {
		return appt, nil
	}
	if !appt.Status.CanTransition(to) {
		return model.Appointment{}, fmt.Errorf("cannot move %s appointment to %s: %w", appt.Status, to, ErrConflict)
	}
	appt.Status = to
	s.appts[id] = appt
	return appt, nil
}

func (s *fakeApptStore) Get(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (s *fakeApptStore) ListByStaff(_ context.Context, staffID string, from, to time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.StaffID == staffID && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

type testEnv struct {
	engine  *Engine
	windows *fakeWindowStore
	appts   *fakeApptStore
}

func newTestEnv() testEnv {
	catalog := fakeCatalog{durations: map[string]time.Duration{
		"svc-30": 30 * time.Minute,
		"svc-60": 60 * time.Minute,
	}}
	windows := &fakeWindowStore{windows: []model.AvailabilityWindow{{
		ID:          "win-1",
		StaffID:     "staff-1",
		Recurrence:  model.Weekly{Weekday: time.Thursday},
		StartMinute: 9 * 60,
		EndMinute:   11 * 60,
	}}}
	appts := newFakeApptStore(catalog)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return testEnv{engine: New(windows, appts, catalog, logger), windows: windows, appts: appts}
}

func TestResolveWindows(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	active, err := env.engine.ResolveWindows(ctx, "staff-1", testDay)
	if err != nil {
		t.Fatalf("ResolveWindows: %v", err)
	}
	if len(active) != 1 || active[0].ID != "win-1" {
		t.Fatalf("active windows = %+v", active)
	}

	active, err = env.engine.ResolveWindows(ctx, "staff-1", testDay.Next())
	if err != nil {
		t.Fatalf("ResolveWindows off-day: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no windows on an off day, got %+v", active)
	}
}

func TestEnumerateSlots(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	slots, err := env.engine.EnumerateSlots(ctx, "staff-1", "svc-30", testDay, testDay)
	if err != nil {
		t.Fatalf("EnumerateSlots: %v", err)
	}
	if len(slots) != 7 {
		t.Fatalf("expected 7 slots in a two-hour window, got %d", len(slots))
	}
	if first := slots[0]; first.Hour() != 9 || first.Minute() != 0 {
		t.Fatalf("first slot = %s", first)
	}
	if last := slots[len(slots)-1]; last.Hour() != 10 || last.Minute() != 30 {
		t.Fatalf("last slot = %s", last)
	}

	// Same inputs, same answer: enumeration must not mutate anything.
	again, err := env.engine.EnumerateSlots(ctx, "staff-1", "svc-30", testDay, testDay)
	if err != nil {
		t.Fatalf("second EnumerateSlots: %v", err)
	}
	if len(again) != len(slots) {
		t.Fatalf("enumeration not repeatable: %d then %d", len(slots), len(again))
	}
	for i := range slots {
		if !slots[i].Equal(again[i]) {
			t.Fatalf("slot %d changed between calls", i)
		}
	}
}

func TestEnumerateSlotsSkipsBookedOverlaps(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.engine.Book(ctx, BookRequest{
		ClientID: "client-1", ServiceID: "svc-30", StaffID: "staff-1", StartAt: testDay.At(9*60 + 30),
	}); err != nil {
		t.Fatalf("Book: %v", err)
	}

	slots, err := env.engine.EnumerateSlots(ctx, "staff-1", "svc-30", testDay, testDay)
	if err != nil {
		t.Fatalf("EnumerateSlots: %v", err)
	}
	want := []int{540, 600, 615, 630}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d: %v", len(slots), len(want), slots)
	}
	for i, s := range slots {
		if got := s.Hour()*60 + s.Minute(); got != want[i] {
			t.Errorf("slot %d at minute %d, want %d", i, got, want[i])
		}
	}
}

func TestEnumerateSlotsMultiDay(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// Thursday through the following Thursday covers the weekly window twice.
	slots, err := env.engine.EnumerateSlots(ctx, "staff-1", "svc-30", testDay, testDay.AddDays(7))
	if err != nil {
		t.Fatalf("EnumerateSlots: %v", err)
	}
	if len(slots) != 14 {
		t.Fatalf("expected 7 slots per Thursday across two Thursdays, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].Before(slots[i-1]) {
			t.Fatalf("slots out of order at %d: %v", i, slots)
		}
	}
}

func TestEnumerateSlotsErrors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	t.Run("unknown service", func(t *testing.T) {
		_, err := env.engine.EnumerateSlots(ctx, "staff-1", "svc-missing", testDay, testDay)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := env.engine.EnumerateSlots(ctx, "staff-1", "svc-30", testDay, testDay.AddDays(-1))
		var verr *model.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("range over cap", func(t *testing.T) {
		_, err := env.engine.EnumerateSlots(ctx, "staff-1", "svc-30", testDay, testDay.AddDays(availability.MaxRangeDays))
		var verr *model.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("no windows", func(t *testing.T) {
		slots, err := env.engine.EnumerateSlots(ctx, "staff-unknown", "svc-30", testDay, testDay)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(slots) != 0 {
			t.Fatalf("staff with no windows has no slots, got %v", slots)
		}
	})
}

func TestIsAvailable(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	booked, err := env.engine.Book(ctx, BookRequest{
		ClientID: "client-1", ServiceID: "svc-30", StaffID: "staff-1", StartAt: testDay.At(9 * 60),
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	tests := []struct {
		name      string
		start     time.Time
		minutes   int
		excludeID string
		want      bool
	}{
		{name: "free slot inside window", start: testDay.At(10 * 60), minutes: 30, want: true},
		{name: "outside any window", start: testDay.At(13 * 60), minutes: 30, want: false},
		{name: "wrong weekday", start: testDay.Next().At(9 * 60), minutes: 30, want: false},
		{name: "spills past window end", start: testDay.At(10*60 + 45), minutes: 30, want: false},
		{name: "overlaps booking", start: testDay.At(9*60 + 15), minutes: 30, want: false},
		{name: "adjacent to booking", start: testDay.At(9*60 + 30), minutes: 30, want: true},
		{name: "own slot excluded", start: testDay.At(9 * 60), minutes: 30, excludeID: booked.ID, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.engine.IsAvailable(ctx, "staff-1", tt.start, tt.minutes, tt.excludeID)
			if err != nil {
				t.Fatalf("IsAvailable: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAvailable = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("non-positive duration", func(t *testing.T) {
		_, err := env.engine.IsAvailable(ctx, "staff-1", testDay.At(10*60), 0, "")
		var verr *model.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestBook(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	appt, err := env.engine.Book(ctx, BookRequest{
		ClientID: "client-1", ServiceID: "svc-30", StaffID: "staff-1", StartAt: testDay.At(9 * 60),
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if appt.ID == "" {
		t.Fatal("booked appointment needs an id")
	}
	if appt.Status != model.StatusPending {
		t.Fatalf("new appointment status = %s, want pending", appt.Status)
	}

	t.Run("outside window conflicts", func(t *testing.T) {
		_, err := env.engine.Book(ctx, BookRequest{
			ClientID: "client-2", ServiceID: "svc-30", StaffID: "staff-1", StartAt: testDay.At(12 * 60),
		})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("longer service must fit", func(t *testing.T) {
		// 60 minutes starting 10:30 spills past the 11:00 close.
		_, err := env.engine.Book(ctx, BookRequest{
			ClientID: "client-2", ServiceID: "svc-60", StaffID: "staff-1", StartAt: testDay.At(10*60 + 30),
		})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := env.engine.Book(ctx, BookRequest{ServiceID: "svc-30", StaffID: "staff-1", StartAt: testDay.At(10 * 60)})
		var verr *model.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("unknown service", func(t *testing.T) {
		_, err := env.engine.Book(ctx, BookRequest{
			ClientID: "client-2", ServiceID: "svc-missing", StaffID: "staff-1", StartAt: testDay.At(10 * 60),
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBookConcurrentSameSlot(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	start := testDay.At(9 * 60)

	// Both goroutines see the slot as free, then race to insert.
	for _, clientID := range []string{"client-a", "client-b"} {
		ok, err := env.engine.IsAvailable(ctx, "staff-1", start, 30, "")
		if err != nil || !ok {
			t.Fatalf("pre-check for %s: ok=%v err=%v", clientID, ok, err)
		}
	}

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, clientID := range []string{"client-a", "client-b"} {
		wg.Add(1)
		go func(clientID string) {
			defer wg.Done()
			_, err := env.engine.Book(ctx, BookRequest{
				ClientID: clientID, ServiceID: "svc-30", StaffID: "staff-1", StartAt: start,
			})
			results <- err
		}(clientID)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("want exactly one success and one conflict, got %d/%d", successes, conflicts)
	}
}

func TestConfirmAndCancel(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	appt, err := env.engine.Book(ctx, BookRequest{
		ClientID: "client-1", ServiceID: "svc-30", StaffID: "staff-1", StartAt: testDay.At(9 * 60),
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	confirmed, err := env.engine.Confirm(ctx, appt.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", confirmed.Status)
	}

	// Repeating a transition is a no-op, not an error.
	if _, err := env.engine.Confirm(ctx, appt.ID); err != nil {
		t.Fatalf("repeated Confirm: %v", err)
	}

	cancelled, err := env.engine.Cancel(ctx, appt.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	if _, err := env.engine.Confirm(ctx, appt.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("confirming a cancelled appointment should conflict, got %v", err)
	}

	t.Run("cancelled slot frees up", func(t *testing.T) {
		ok, err := env.engine.IsAvailable(ctx, "staff-1", testDay.At(9*60), 30, "")
		if err != nil {
			t.Fatalf("IsAvailable: %v", err)
		}
		if !ok {
			t.Fatal("slot of a cancelled appointment should be available again")
		}
	})

	t.Run("unknown appointment", func(t *testing.T) {
		if _, err := env.engine.Confirm(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestReschedule(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first, err := env.engine.Book(ctx, BookRequest{
		ClientID: "client-1", ServiceID: "svc-30", StaffID: "staff-1", StartAt: testDay.At(9 * 60),
	})
	if err != nil {
		t.Fatalf("Book first: %v", err)
	}
	second, err := env.engine.Book(ctx, BookRequest{
		ClientID: "client-2", ServiceID: "svc-30", StaffID: "staff-1", StartAt: testDay.At(10 * 60),
	})
	if err != nil {
		t.Fatalf("Book second: %v", err)
	}

	t.Run("to a free slot", func(t *testing.T) {
		moved, err := env.engine.Reschedule(ctx, first.ID, testDay.At(9*60+30))
		if err != nil {
			t.Fatalf("Reschedule: %v", err)
		}
		if moved.ScheduledAt.Minute() != 30 {
			t.Fatalf("moved to %s", moved.ScheduledAt)
		}
	})

	t.Run("overlapping itself is fine", func(t *testing.T) {
		// First sits at [09:30, 10:00); [09:15, 09:45) overlaps only itself.
		if _, err := env.engine.Reschedule(ctx, first.ID, testDay.At(9*60+15)); err != nil {
			t.Fatalf("Reschedule over own old slot: %v", err)
		}
	})

	t.Run("onto another appointment conflicts", func(t *testing.T) {
		if _, err := env.engine.Reschedule(ctx, first.ID, testDay.At(10*60)); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("outside windows conflicts", func(t *testing.T) {
		if _, err := env.engine.Reschedule(ctx, first.ID, testDay.At(15*60)); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("cancelled appointments stay put", func(t *testing.T) {
		if _, err := env.engine.Cancel(ctx, second.ID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if _, err := env.engine.Reschedule(ctx, second.ID, testDay.At(10*60+30)); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("unknown appointment", func(t *testing.T) {
		if _, err := env.engine.Reschedule(ctx, "nope", testDay.At(10*60)); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestWindowCRUD(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	created, err := env.engine.CreateWindow(ctx, model.AvailabilityWindow{
		StaffID:     "staff-2",
		Recurrence:  model.OnDate{Date: testDay},
		StartMinute: 14 * 60,
		EndMinute:   16 * 60,
	})
	if err != nil {
		t.Fatalf("CreateWindow: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created window needs an id")
	}

	if _, err := env.engine.CreateWindow(ctx, model.AvailabilityWindow{
		StaffID:     "staff-2",
		Recurrence:  model.Weekly{Weekday: time.Monday},
		StartMinute: 16 * 60,
		EndMinute:   14 * 60,
	}); err == nil {
		t.Fatal("inverted window must be rejected")
	}

	created.EndMinute = 17 * 60
	if err := env.engine.UpdateWindow(ctx, created); err != nil {
		t.Fatalf("UpdateWindow: %v", err)
	}
	listed, err := env.engine.ListWindows(ctx, "staff-2")
	if err != nil {
		t.Fatalf("ListWindows: %v", err)
	}
	if len(listed) != 1 || listed[0].EndMinute != 17*60 {
		t.Fatalf("update not visible: %+v", listed)
	}

	if err := env.engine.DeleteWindow(ctx, created.ID); err != nil {
		t.Fatalf("DeleteWindow: %v", err)
	}
	listed, err = env.engine.ListWindows(ctx, "staff-2")
	if err != nil {
		t.Fatalf("ListWindows after delete: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("window not deleted: %+v", listed)
	}
}
