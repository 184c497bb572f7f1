package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

// Slots enumerates bookable start times for a staff member and service over
// an inclusive date range.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	staffID := strings.TrimSpace(q.Get("staff_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	if staffID == "" || serviceID == "" {
		http.Error(w, "staff_id and service_id required", http.StatusBadRequest)
		return
	}
	from, err := model.ParseDate(strings.TrimSpace(q.Get("start_date")))
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	to, err := model.ParseDate(strings.TrimSpace(q.Get("end_date")))
	if err != nil {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}

	eng, err := h.engineFor(r)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	slots, err := eng.EnumerateSlots(r.Context(), staffID, serviceID, from, to)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	items := make([]string, 0, len(slots))
	for _, s := range slots {
		items = append(items, formatNaiveTime(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": items})
}

// Check is the read-path availability predicate: false is a normal answer,
// never an error.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	staffID := strings.TrimSpace(q.Get("staff_id"))
	if staffID == "" {
		http.Error(w, "staff_id required", http.StatusBadRequest)
		return
	}
	start, err := parseNaiveTime(strings.TrimSpace(q.Get("start_time")))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	durationMinutes, err := strconv.Atoi(strings.TrimSpace(q.Get("duration_minutes")))
	if err != nil {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return
	}
	excludeID := strings.TrimSpace(q.Get("exclude_appointment_id"))

	eng, err := h.engineFor(r)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	available, err := eng.IsAvailable(r.Context(), staffID, start, durationMinutes, excludeID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}
