package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/services/booking-service/internal/engine"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

type ServiceRepository struct {
	pool *db.Pool
}

func NewServiceRepository(pool *db.Pool) *ServiceRepository {
	return &ServiceRepository{pool: pool}
}

type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	PriceCents      int64
	CreatedAt       time.Time
}

// Duration resolves a service id to its booked length. This is the lookup
// every occupied-interval computation goes through; durations are never
// snapshotted onto appointments.
func (r *ServiceRepository) Duration(ctx context.Context, serviceID string) (time.Duration, error) {
	var mins int
	err := r.pool.QueryRow(ctx, `
		SELECT duration_minutes FROM services WHERE id = $1
	`, serviceID).Scan(&mins)
	if err != nil {
		if isNoRows(err) {
			return 0, engine.ErrNotFound
		}
		return 0, err
	}
	return time.Duration(mins) * time.Minute, nil
}

func (r *ServiceRepository) Create(ctx context.Context, name string, durationMinutes int, priceCents int64) (Service, error) {
	if name == "" {
		return Service{}, &model.ValidationError{Field: "name", Reason: "required"}
	}
	if durationMinutes <= 0 {
		return Service{}, &model.ValidationError{Field: "duration_minutes", Reason: "must be positive"}
	}
	svc := Service{
		ID:              uuid.NewString(),
		Name:            name,
		DurationMinutes: durationMinutes,
		PriceCents:      priceCents,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO services (id, name, duration_minutes, price_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, svc.ID, svc.Name, svc.DurationMinutes, svc.PriceCents).Scan(&svc.CreatedAt)
	if err != nil {
		return Service{}, err
	}
	return svc, nil
}

func (r *ServiceRepository) Get(ctx context.Context, serviceID string) (Service, error) {
	var svc Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes, price_cents, created_at
		FROM services
		WHERE id = $1
	`, serviceID).Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &svc.PriceCents, &svc.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return Service{}, fmt.Errorf("service %s: %w", serviceID, engine.ErrNotFound)
		}
		return Service{}, err
	}
	return svc, nil
}

func (r *ServiceRepository) List(ctx context.Context, limit int) ([]Service, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, duration_minutes, price_cents, created_at
		FROM services
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &svc.PriceCents, &svc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
