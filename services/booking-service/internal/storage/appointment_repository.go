package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/services/booking-service/internal/availability"
	"github.com/slotwise/slotwise/services/booking-service/internal/engine"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
	"github.com/slotwise/slotwise/services/booking-service/internal/outbox"
)

// AppointmentRepository owns the write-side race: every insert or move runs
// in one transaction that takes a per-staff advisory lock, re-validates
// overlap against current service durations, then writes. A concurrent
// writer for the same staff member blocks on the lock and re-validates
// against the committed state.
type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, ob *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: ob}
}

const appointmentColumns = `id::text, client_id, service_id::text, staff_id, scheduled_at, status, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.ClientID, &a.ServiceID, &a.StaffID, &a.ScheduledAt, &a.Status, &a.CreatedAt)
	return a, err
}

// OccupiedIntervals computes [scheduled_at, scheduled_at + duration) spans
// of pending/confirmed appointments overlapping [from, to). Durations come
// from the services table at query time, so an edited service duration
// shifts historical intervals too.
func (r *AppointmentRepository) OccupiedIntervals(ctx context.Context, staffID string, from, to time.Time, excludeID string) ([]availability.Interval, error) {
	return occupiedIntervals(ctx, r.pool, staffID, from, to, excludeID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func occupiedIntervals(ctx context.Context, q querier, staffID string, from, to time.Time, excludeID string) ([]availability.Interval, error) {
	rows, err := q.Query(ctx, `
		SELECT a.scheduled_at, a.scheduled_at + make_interval(mins => s.duration_minutes)
		FROM appointments a
		JOIN services s ON s.id = a.service_id
		WHERE a.staff_id = $1
			AND a.status IN ('pending', 'confirmed')
			AND a.scheduled_at < $3
			AND a.scheduled_at + make_interval(mins => s.duration_minutes) > $2
			AND ($4 = '' OR a.id::text <> $4)
		ORDER BY a.scheduled_at ASC
	`, staffID, from, to, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// lockStaff serializes writers for one staff member. Writers for different
// staff never contend; the lock is transaction-scoped and released at
// commit/rollback.
func lockStaff(ctx context.Context, tx pgx.Tx, staffID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, staffID)
	return err
}

// inTxWithRetry runs fn in a transaction, retrying exactly once on a
// serialization or deadlock failure before surfacing the error.
func (r *AppointmentRepository) inTxWithRetry(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = r.inTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return err
}

func (r *AppointmentRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) Insert(ctx context.Context, appt model.Appointment, duration time.Duration) (model.Appointment, error) {
	var created model.Appointment
	err := r.inTxWithRetry(ctx, func(tx pgx.Tx) error {
		if err := lockStaff(ctx, tx, appt.StaffID); err != nil {
			return err
		}
		busy, err := occupiedIntervals(ctx, tx, appt.StaffID, appt.ScheduledAt, appt.ScheduledAt.Add(duration), "")
		if err != nil {
			return err
		}
		if len(busy) > 0 {
			return fmt.Errorf("overlaps existing appointment: %w", engine.ErrConflict)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, client_id, service_id, staff_id, scheduled_at, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+appointmentColumns+`
		`, appt.ID, appt.ClientID, appt.ServiceID, appt.StaffID, appt.ScheduledAt, appt.Status)
		created, err = scanAppointment(row)
		if err != nil {
			if isConstraintConflict(err) {
				return fmt.Errorf("slot already taken: %w", engine.ErrConflict)
			}
			return err
		}
		return r.insertEvent(ctx, tx, outbox.EventAppointmentBooked, created, duration)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return created, nil
}

func (r *AppointmentRepository) Reschedule(ctx context.Context, id string, newStart time.Time, duration time.Duration) (model.Appointment, error) {
	var moved model.Appointment
	err := r.inTxWithRetry(ctx, func(tx pgx.Tx) error {
		var staffID string
		err := tx.QueryRow(ctx, `SELECT staff_id FROM appointments WHERE id = $1`, id).Scan(&staffID)
		if err != nil {
			if isNoRows(err) {
				return fmt.Errorf("appointment %s: %w", id, engine.ErrNotFound)
			}
			return err
		}
		// Advisory lock before the row lock, same order as Insert.
		if err := lockStaff(ctx, tx, staffID); err != nil {
			return err
		}

		current, err := scanAppointment(tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE
		`, id))
		if err != nil {
			return err
		}
		if !current.Status.Occupies() {
			return fmt.Errorf("appointment %s is %s: %w", id, current.Status, engine.ErrConflict)
		}

		busy, err := occupiedIntervals(ctx, tx, staffID, newStart, newStart.Add(duration), id)
		if err != nil {
			return err
		}
		if len(busy) > 0 {
			return fmt.Errorf("overlaps existing appointment: %w", engine.ErrConflict)
		}

		row := tx.QueryRow(ctx, `
			UPDATE appointments SET scheduled_at = $2 WHERE id = $1
			RETURNING `+appointmentColumns+`
		`, id, newStart)
		moved, err = scanAppointment(row)
		if err != nil {
			if isConstraintConflict(err) {
				return fmt.Errorf("slot already taken: %w", engine.ErrConflict)
			}
			return err
		}
		return r.insertEvent(ctx, tx, outbox.EventAppointmentRescheduled, moved, duration)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return moved, nil
}

// Transition moves an appointment through its lifecycle. Repeating the
// current status is idempotent; any other disallowed move is a conflict.
func (r *AppointmentRepository) Transition(ctx context.Context, id string, to model.AppointmentStatus) (model.Appointment, error) {
	var out model.Appointment
	err := r.inTxWithRetry(ctx, func(tx pgx.Tx) error {
		current, err := scanAppointment(tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE
		`, id))
		if err != nil {
			if isNoRows(err) {
				return fmt.Errorf("appointment %s: %w", id, engine.ErrNotFound)
			}
			return err
		}
		if current.Status == to {
			out = current
			return nil
		}
		if !current.Status.CanTransition(to) {
			return fmt.Errorf("cannot move %s appointment to %s: %w", current.Status, to, engine.ErrConflict)
		}

		row := tx.QueryRow(ctx, `
			UPDATE appointments SET status = $2 WHERE id = $1
			RETURNING `+appointmentColumns+`
		`, id, to)
		out, err = scanAppointment(row)
		if err != nil {
			return err
		}

		eventType := outbox.EventAppointmentConfirmed
		if to == model.StatusCancelled {
			eventType = outbox.EventAppointmentCancelled
		}
		return r.insertEvent(ctx, tx, eventType, out, 0)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments WHERE id = $1
	`, id))
	if err != nil {
		if isNoRows(err) {
			return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, engine.ErrNotFound)
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) ListByStaff(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
			AND scheduled_at >= $2
			AND scheduled_at < $3
		ORDER BY scheduled_at ASC
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *AppointmentRepository) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment, duration time.Duration) error {
	payload := map[string]any{
		"appointment_id": appt.ID,
		"client_id":      appt.ClientID,
		"service_id":     appt.ServiceID,
		"staff_id":       appt.StaffID,
		"scheduled_at":   appt.ScheduledAt.Format("2006-01-02T15:04:05"),
		"status":         string(appt.Status),
	}
	if duration > 0 {
		payload["duration_minutes"] = int(duration / time.Minute)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       body,
	})
}
