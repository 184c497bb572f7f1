package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/services/booking-service/internal/engine"
	"github.com/slotwise/slotwise/services/booking-service/internal/storage"
)

// Registry hands out per-tenant store handles. Each tenant lives in its own
// Postgres schema; the registry opens a pool with that schema on the search
// path, migrates it once, and caches the handle with a TTL. This replaces
// any process-global client cache: lifecycle is explicit and idle handles
// are closed by the janitor.
type Registry struct {
	control     *db.Pool
	databaseURL string
	ttl         time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	pool     *db.Pool
	store    *storage.Store
	lastUsed time.Time
}

type Info struct {
	ID         string
	Name       string
	SchemaName string
	APIKeyHash []byte
}

func NewRegistry(control *db.Pool, databaseURL string, ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Registry{
		control:     control,
		databaseURL: databaseURL,
		ttl:         ttl,
		logger:      logger,
		entries:     map[string]*entry{},
	}
}

const controlSchemaSQL = `
CREATE TABLE IF NOT EXISTS tenants (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	schema_name TEXT NOT NULL UNIQUE,
	api_key_hash BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// MigrateControl creates the tenant directory table in the control schema.
func MigrateControl(ctx context.Context, control *db.Pool) error {
	_, err := control.Exec(ctx, controlSchemaSQL)
	return err
}

func (r *Registry) lookup(ctx context.Context, tenantID string) (Info, error) {
	var info Info
	err := r.control.QueryRow(ctx, `
		SELECT id, name, schema_name, api_key_hash
		FROM tenants
		WHERE id = $1
	`, tenantID).Scan(&info.ID, &info.Name, &info.SchemaName, &info.APIKeyHash)
	if err != nil {
		return Info{}, fmt.Errorf("tenant %s: %w", tenantID, engine.ErrNotFound)
	}
	return info, nil
}

// StoreFor returns the tenant's repositories, opening and migrating the
// schema pool on first use.
func (r *Registry) StoreFor(ctx context.Context, tenantID string) (*storage.Store, error) {
	r.mu.Lock()
	if e, ok := r.entries[tenantID]; ok {
		e.lastUsed = time.Now()
		r.mu.Unlock()
		return e.store, nil
	}
	r.mu.Unlock()

	info, err := r.lookup(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	pool, err := db.Open(ctx, r.databaseURL, db.Options{SearchPath: info.SchemaName})
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, info.SchemaName)); err != nil {
		pool.Close()
		return nil, err
	}
	if err := storage.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[tenantID]; ok {
		// Lost the race to another request; keep the first pool.
		pool.Close()
		e.lastUsed = time.Now()
		return e.store, nil
	}
	e := &entry{pool: pool, store: storage.NewStore(pool), lastUsed: time.Now()}
	r.entries[tenantID] = e
	r.logger.Info("tenant pool opened", "tenant_id", tenantID, "schema", info.SchemaName)
	return e.store, nil
}

// EngineFor builds the availability engine over a tenant's store.
func (r *Registry) EngineFor(ctx context.Context, tenantID string) (*engine.Engine, error) {
	store, err := r.StoreFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return engine.New(store.Windows, store.Appointments, store.Services, r.logger), nil
}

// PoolFor implements outbox.PoolSource.
func (r *Registry) PoolFor(ctx context.Context, tenantID string) (*db.Pool, error) {
	store, err := r.StoreFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return store.Pool, nil
}

// TenantIDs implements outbox.PoolSource: every registered tenant, whether
// or not its pool is currently open.
func (r *Registry) TenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.control.Query(ctx, `SELECT id FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RunJanitor closes pools idle past the TTL until ctx is cancelled, then
// closes everything.
func (r *Registry) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

func (r *Registry) evictIdle() {
	cutoff := time.Now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			e.pool.Close()
			delete(r.entries, id)
			r.logger.Info("tenant pool evicted", "tenant_id", id)
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		e.pool.Close()
		delete(r.entries, id)
	}
}
