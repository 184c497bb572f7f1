package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/slotwise/slotwise/services/booking-service/internal/storage"
	"github.com/slotwise/slotwise/services/booking-service/internal/tenant"
)

type serviceItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	CreatedAt       string `json:"created_at"`
}

func serviceToItem(s storage.Service) serviceItem {
	return serviceItem{
		ID:              s.ID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		PriceCents:      s.PriceCents,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Services manages the catalog the engine resolves durations against.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	store, err := h.source.StoreFor(r.Context(), tenant.FromContext(r.Context()))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req struct {
			Name            string `json:"name"`
			DurationMinutes int    `json:"duration_minutes"`
			PriceCents      int64  `json:"price_cents"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		svc, err := store.Services.Create(r.Context(), strings.TrimSpace(req.Name), req.DurationMinutes, req.PriceCents)
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, serviceToItem(svc))
	case http.MethodGet:
		services, err := store.Services.List(r.Context(), 100)
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		items := make([]serviceItem, 0, len(services))
		for _, s := range services {
			items = append(items, serviceToItem(s))
		}
		writeJSON(w, http.StatusOK, items)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
