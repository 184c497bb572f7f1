package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/slotwise/slotwise/services/booking-service/internal/engine"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
	"github.com/slotwise/slotwise/services/booking-service/internal/storage"
	"github.com/slotwise/slotwise/services/booking-service/internal/tenant"
)

// Source hands out per-tenant engines and stores; implemented by
// tenant.Registry.
type Source interface {
	EngineFor(ctx context.Context, tenantID string) (*engine.Engine, error)
	StoreFor(ctx context.Context, tenantID string) (*storage.Store, error)
}

type Handler struct {
	source Source
	logger *slog.Logger
}

func New(source Source, logger *slog.Logger) *Handler {
	return &Handler{source: source, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/availability/windows", h.Windows)
	mux.HandleFunc("/api/v1/availability/windows/update", h.UpdateWindow)
	mux.HandleFunc("/api/v1/availability/windows/delete", h.DeleteWindow)
	mux.HandleFunc("/api/v1/availability/slots", h.Slots)
	mux.HandleFunc("/api/v1/availability/check", h.Check)
	mux.HandleFunc("/api/v1/appointments", h.ListAppointments)
	mux.HandleFunc("/api/v1/appointments/book", h.Book)
	mux.HandleFunc("/api/v1/appointments/confirm", h.Confirm)
	mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
	mux.HandleFunc("/api/v1/appointments/reschedule", h.Reschedule)
	mux.HandleFunc("/api/v1/services", h.Services)
}

func (h *Handler) engineFor(r *http.Request) (*engine.Engine, error) {
	return h.source.EngineFor(r.Context(), tenant.FromContext(r.Context()))
}

// naiveTimeLayouts accept local wall-clock timestamps only; offsets are
// rejected because the engine never converts timezones.
var naiveTimeLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

func parseNaiveTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range naiveTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func formatNaiveTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeEngineError maps the engine taxonomy onto HTTP. Conflicts read as
// "pick another time", not as a generic failure.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
	case errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, engine.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "this time is no longer available, please pick another"})
	default:
		h.logger.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}
