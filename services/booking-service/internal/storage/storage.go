package storage

import (
	"context"

	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/services/booking-service/internal/outbox"
)

// Store bundles the repositories for one tenant's schema. Repositories share
// the tenant's pool; the outbox repository runs on whatever transaction the
// caller supplies.
type Store struct {
	Pool         *db.Pool
	Windows      *WindowRepository
	Appointments *AppointmentRepository
	Services     *ServiceRepository
	Outbox       *outbox.Repository
}

func NewStore(pool *db.Pool) *Store {
	ob := outbox.NewRepository()
	return &Store{
		Pool:         pool,
		Windows:      NewWindowRepository(pool),
		Appointments: NewAppointmentRepository(pool, ob),
		Services:     NewServiceRepository(pool),
		Outbox:       ob,
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS services (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	duration_minutes INT NOT NULL CHECK (duration_minutes > 0),
	price_cents BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS availability_windows (
	id UUID PRIMARY KEY,
	staff_id TEXT NOT NULL,
	weekday INT CHECK (weekday BETWEEN 0 AND 6),
	specific_date DATE,
	start_minute INT NOT NULL,
	end_minute INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (start_minute >= 0 AND start_minute < end_minute AND end_minute <= 1440),
	CHECK ((weekday IS NOT NULL) <> (specific_date IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_windows_staff ON availability_windows(staff_id);

CREATE TABLE IF NOT EXISTS appointments (
	id UUID PRIMARY KEY,
	client_id TEXT NOT NULL,
	service_id UUID NOT NULL REFERENCES services(id),
	staff_id TEXT NOT NULL,
	scheduled_at TIMESTAMP NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'confirmed', 'cancelled')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_appointments_staff_time ON appointments(staff_id, scheduled_at);

-- Backstop for the advisory-lock discipline: two live appointments can never
-- share the exact same start for one staff member.
CREATE UNIQUE INDEX IF NOT EXISTS uq_appointments_staff_start_live
	ON appointments(staff_id, scheduled_at) WHERE status <> 'cancelled';

CREATE TABLE IF NOT EXISTS outbox_events (
	id BIGSERIAL PRIMARY KEY,
	event_id UUID NOT NULL DEFAULT gen_random_uuid(),
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	traceparent TEXT NOT NULL DEFAULT '',
	tracestate TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_outbox_unpublished ON outbox_events(id) WHERE published_at IS NULL;
`

// Migrate applies the tenant schema. Statements are idempotent; the registry
// runs this once per pool open.
func Migrate(ctx context.Context, pool *db.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}
