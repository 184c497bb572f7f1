package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/services/booking-service/internal/engine"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

type WindowRepository struct {
	pool *db.Pool
}

func NewWindowRepository(pool *db.Pool) *WindowRepository {
	return &WindowRepository{pool: pool}
}

// recurrenceColumns flattens the tagged variant into the nullable weekday /
// specific_date pair the table stores; the CHECK constraint keeps exactly
// one of them set.
func recurrenceColumns(rec model.Recurrence) (weekday *int, specificDate *time.Time) {
	switch r := rec.(type) {
	case model.Weekly:
		wd := int(r.Weekday)
		return &wd, nil
	case model.OnDate:
		d := r.Date.At(0)
		return nil, &d
	}
	return nil, nil
}

func recurrenceFromColumns(weekday *int, specificDate *time.Time) model.Recurrence {
	if weekday != nil {
		return model.Weekly{Weekday: time.Weekday(*weekday)}
	}
	if specificDate != nil {
		return model.OnDate{Date: model.DateOf(*specificDate)}
	}
	return nil
}

func (r *WindowRepository) Create(ctx context.Context, w model.AvailabilityWindow) error {
	weekday, specificDate := recurrenceColumns(w.Recurrence)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_windows (id, staff_id, weekday, specific_date, start_minute, end_minute, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, w.ID, w.StaffID, weekday, specificDate, w.StartMinute, w.EndMinute, w.CreatedAt)
	return err
}

func (r *WindowRepository) Update(ctx context.Context, w model.AvailabilityWindow) error {
	weekday, specificDate := recurrenceColumns(w.Recurrence)
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_windows
		SET staff_id = $2,
			weekday = $3,
			specific_date = $4,
			start_minute = $5,
			end_minute = $6
		WHERE id = $1
	`, w.ID, w.StaffID, weekday, specificDate, w.StartMinute, w.EndMinute)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("window %s: %w", w.ID, engine.ErrNotFound)
	}
	return nil
}

// Delete removes a window by id. Appointments already booked inside it are
// untouched.
func (r *WindowRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_windows WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("window %s: %w", id, engine.ErrNotFound)
	}
	return nil
}

func (r *WindowRepository) ListByStaff(ctx context.Context, staffID string) ([]model.AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, staff_id, weekday, specific_date, start_minute, end_minute, created_at
		FROM availability_windows
		WHERE staff_id = $1
		ORDER BY created_at ASC, id ASC
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityWindow
	for rows.Next() {
		var w model.AvailabilityWindow
		var weekday *int
		var specificDate *time.Time
		if err := rows.Scan(&w.ID, &w.StaffID, &weekday, &specificDate, &w.StartMinute, &w.EndMinute, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.Recurrence = recurrenceFromColumns(weekday, specificDate)
		out = append(out, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
