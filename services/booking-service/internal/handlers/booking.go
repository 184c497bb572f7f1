package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/slotwise/slotwise/services/booking-service/internal/engine"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	ClientID      string `json:"client_id"`
	ServiceID     string `json:"service_id"`
	StaffID       string `json:"staff_id"`
	ScheduledAt   string `json:"scheduled_at"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

func appointmentToItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		AppointmentID: a.ID,
		ClientID:      a.ClientID,
		ServiceID:     a.ServiceID,
		StaffID:       a.StaffID,
		ScheduledAt:   formatNaiveTime(a.ScheduledAt),
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		ClientID  string `json:"client_id"`
		ServiceID string `json:"service_id"`
		StaffID   string `json:"staff_id"`
		StartTime string `json:"start_time"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := parseNaiveTime(strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	eng, err := h.engineFor(r)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	appt, err := eng.Book(r.Context(), engine.BookRequest{
		ClientID:  strings.TrimSpace(req.ClientID),
		ServiceID: strings.TrimSpace(req.ServiceID),
		StaffID:   strings.TrimSpace(req.StaffID),
		StartAt:   start,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentToItem(appt))
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*engine.Engine).Confirm)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*engine.Engine).Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(*engine.Engine, context.Context, string) (model.Appointment, error)) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		AppointmentID string `json:"appointment_id"`
	}
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	eng, err := h.engineFor(r)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	appt, err := op(eng, r.Context(), strings.TrimSpace(req.AppointmentID))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToItem(appt))
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		AppointmentID string `json:"appointment_id"`
		StartTime     string `json:"start_time"`
	}
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	start, err := parseNaiveTime(strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	eng, err := h.engineFor(r)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	appt, err := eng.Reschedule(r.Context(), strings.TrimSpace(req.AppointmentID), start)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToItem(appt))
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	staffID := strings.TrimSpace(q.Get("staff_id"))
	if staffID == "" {
		http.Error(w, "staff_id required", http.StatusBadRequest)
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
	appts, err := eng.ListAppointments(r.Context(), staffID, from.At(0), to.Next().At(0))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, appointmentToItem(a))
	}
	writeJSON(w, http.StatusOK, items)
}
