package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/slotwise/slotwise/services/booking-service/internal/availability"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

// WindowStore persists availability windows for one tenant.
type WindowStore interface {
	ListByStaff(ctx context.Context, staffID string) ([]model.AvailabilityWindow, error)
	Create(ctx context.Context, w model.AvailabilityWindow) error
	Update(ctx context.Context, w model.AvailabilityWindow) error
	Delete(ctx context.Context, id string) error
}

// AppointmentStore persists appointments and owns the write-side locking
// discipline: Insert and Reschedule re-validate overlap inside the same
// transaction that performs the write, serialized per staff member.
type AppointmentStore interface {
	// OccupiedIntervals returns the [scheduledAt, scheduledAt+duration)
	// spans of pending/confirmed appointments that overlap [from, to),
	// with durations resolved against the current service catalog.
	// excludeID skips one appointment (the reschedule case); pass ""
	// otherwise.
	OccupiedIntervals(ctx context.Context, staffID string, from, to time.Time, excludeID string) ([]availability.Interval, error)
	Insert(ctx context.Context, appt model.Appointment, duration time.Duration) (model.Appointment, error)
	Reschedule(ctx context.Context, id string, newStart time.Time, duration time.Duration) (model.Appointment, error)
	Transition(ctx context.Context, id string, to model.AppointmentStatus) (model.Appointment, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	ListByStaff(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error)
}

// ServiceCatalog resolves a service id to its booked length.
type ServiceCatalog interface {
	// Duration returns ErrNotFound (possibly wrapped) for unknown ids.
	Duration(ctx context.Context, serviceID string) (time.Duration, error)
}

// Engine is the availability and booking conflict engine. It is pure logic
// over the three collaborators; it owns no persistent state of its own.
type Engine struct {
	windows  WindowStore
	appts    AppointmentStore
	services ServiceCatalog
	logger   *slog.Logger
}

func New(windows WindowStore, appts AppointmentStore, services ServiceCatalog, logger *slog.Logger) *Engine {
	return &Engine{windows: windows, appts: appts, services: services, logger: logger}
}

// ResolveWindows returns the availability windows active for a staff member
// on one calendar date. Zero windows is an empty result, not an error.
func (e *Engine) ResolveWindows(ctx context.Context, staffID string, d model.Date) ([]model.AvailabilityWindow, error) {
	all, err := e.windows.ListByStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	return availability.Resolve(all, d), nil
}

// EnumerateSlots walks [from, to] inclusive and returns every bookable start
// time for the service at the fixed slot step, ascending. The occupying
// appointments for the whole range are fetched once, not per candidate.
func (e *Engine) EnumerateSlots(ctx context.Context, staffID, serviceID string, from, to model.Date) ([]time.Time, error) {
	if to.At(0).Before(from.At(0)) {
		return nil, &model.ValidationError{Field: "end_date", Reason: "must not precede start_date"}
	}
	days := from.DaysUntil(to) + 1
	if days > availability.MaxRangeDays {
		return nil, &model.ValidationError{Field: "end_date", Reason: fmt.Sprintf("range exceeds %d days", availability.MaxRangeDays)}
	}

	duration, err := e.services.Duration(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", serviceID, err)
	}

	windows, err := e.windows.ListByStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	busy, err := e.appts.OccupiedIntervals(ctx, staffID, from.At(0), to.Next().At(0), "")
	if err != nil {
		return nil, err
	}

	var slots []time.Time
	d := from
	for i := 0; i < days; i++ {
		slots = append(slots, availability.DaySlots(windows, d, duration, busy)...)
		d = d.Next()
	}
	availability.SortAscending(slots)
	return slots, nil
}

// IsAvailable is the synchronous read-path check: the requested interval
// must be fully contained in a window active on its date, and must overlap
// no occupying appointment. An unavailable slot is a computed false, never
// an error. excludeID carries the update-in-place case.
func (e *Engine) IsAvailable(ctx context.Context, staffID string, start time.Time, durationMinutes int, excludeID string) (bool, error) {
	if durationMinutes <= 0 {
		return false, &model.ValidationError{Field: "duration_minutes", Reason: "must be positive"}
	}
	iv := availability.Interval{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}

	windows, err := e.windows.ListByStaff(ctx, staffID)
	if err != nil {
		return false, err
	}
	if !availability.Contained(windows, model.DateOf(start), iv) {
		// No containing window: no appointment round-trip needed.
		return false, nil
	}

	busy, err := e.appts.OccupiedIntervals(ctx, staffID, iv.Start, iv.End, excludeID)
	if err != nil {
		return false, err
	}
	return len(busy) == 0, nil
}

type BookRequest struct {
	ClientID  string
	ServiceID string
	StaffID   string
	StartAt   time.Time
}

// Book creates a pending appointment. The window containment check runs
// here; the overlap check runs again inside the store's transaction under a
// per-staff lock, so two concurrent Book calls for overlapping intervals
// resolve to one success and one ErrConflict.
func (e *Engine) Book(ctx context.Context, req BookRequest) (model.Appointment, error) {
	if req.ClientID == "" {
		return model.Appointment{}, &model.ValidationError{Field: "client_id", Reason: "required"}
	}
	if req.StaffID == "" {
		return model.Appointment{}, &model.ValidationError{Field: "staff_id", Reason: "required"}
	}
	duration, err := e.services.Duration(ctx, req.ServiceID)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("service %s: %w", req.ServiceID, err)
	}

	iv := availability.Interval{Start: req.StartAt, End: req.StartAt.Add(duration)}
	windows, err := e.windows.ListByStaff(ctx, req.StaffID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !availability.Contained(windows, model.DateOf(req.StartAt), iv) {
		return model.Appointment{}, fmt.Errorf("no availability window contains %s: %w", req.StartAt.Format("2006-01-02T15:04"), ErrConflict)
	}

	appt := model.Appointment{
		ID:          uuid.NewString(),
		ClientID:    req.ClientID,
		ServiceID:   req.ServiceID,
		StaffID:     req.StaffID,
		ScheduledAt: req.StartAt,
		Status:      model.StatusPending,
		CreatedAt:   time.Now(),
	}
	created, err := e.appts.Insert(ctx, appt, duration)
	if err != nil {
		return model.Appointment{}, err
	}
	e.logger.Info("appointment booked",
		"appointment_id", created.ID,
		"staff_id", created.StaffID,
		"scheduled_at", created.ScheduledAt.Format("2006-01-02T15:04"),
	)
	return created, nil
}

// Reschedule moves an existing appointment to a new start. The old slot is
// released and the new one claimed in one store transaction; the moved
// appointment never conflicts with itself.
func (e *Engine) Reschedule(ctx context.Context, appointmentID string, newStart time.Time) (model.Appointment, error) {
	appt, err := e.appts.Get(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !appt.Status.Occupies() {
		return model.Appointment{}, fmt.Errorf("appointment %s is %s: %w", appointmentID, appt.Status, ErrConflict)
	}
	duration, err := e.services.Duration(ctx, appt.ServiceID)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("service %s: %w", appt.ServiceID, err)
	}

	iv := availability.Interval{Start: newStart, End: newStart.Add(duration)}
	windows, err := e.windows.ListByStaff(ctx, appt.StaffID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !availability.Contained(windows, model.DateOf(newStart), iv) {
		return model.Appointment{}, fmt.Errorf("no availability window contains %s: %w", newStart.Format("2006-01-02T15:04"), ErrConflict)
	}
	return e.appts.Reschedule(ctx, appointmentID, newStart, duration)
}

func (e *Engine) Confirm(ctx context.Context, appointmentID string) (model.Appointment, error) {
	return e.appts.Transition(ctx, appointmentID, model.StatusConfirmed)
}

func (e *Engine) Cancel(ctx context.Context, appointmentID string) (model.Appointment, error) {
	return e.appts.Transition(ctx, appointmentID, model.StatusCancelled)
}

func (e *Engine) ListAppointments(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error) {
	return e.appts.ListByStaff(ctx, staffID, from, to)
}

// CreateWindow validates and stores a new availability window. Malformed
// windows are rejected here and never reach the store.
func (e *Engine) CreateWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error) {
	w.ID = uuid.NewString()
	w.CreatedAt = time.Now()
	if err := w.Validate(); err != nil {
		return model.AvailabilityWindow{}, err
	}
	if err := e.windows.Create(ctx, w); err != nil {
		return model.AvailabilityWindow{}, err
	}
	return w, nil
}

// UpdateWindow replaces a window's mutable fields in full. Existing
// appointments are left alone; shrinking a window does not cancel bookings
// already inside it.
func (e *Engine) UpdateWindow(ctx context.Context, w model.AvailabilityWindow) error {
	if w.ID == "" {
		return &model.ValidationError{Field: "id", Reason: "required"}
	}
	if err := w.Validate(); err != nil {
		return err
	}
	return e.windows.Update(ctx, w)
}

func (e *Engine) DeleteWindow(ctx context.Context, id string) error {
	return e.windows.Delete(ctx, id)
}

func (e *Engine) ListWindows(ctx context.Context, staffID string) ([]model.AvailabilityWindow, error) {
	return e.windows.ListByStaff(ctx, staffID)
}
