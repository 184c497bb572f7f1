package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

type windowRequest struct {
	ID           string `json:"id,omitempty"`
	StaffID      string `json:"staff_id"`
	IsRecurring  *bool  `json:"is_recurring,omitempty"` // defaults to true
	DayOfWeek    *int   `json:"day_of_week,omitempty"`
	SpecificDate string `json:"specific_date,omitempty"`
	StartTime    string `json:"start_time"` // "09:00"
	EndTime      string `json:"end_time"`   // "17:00"
}

type windowItem struct {
	ID           string `json:"id"`
	StaffID      string `json:"staff_id"`
	IsRecurring  bool   `json:"is_recurring"`
	DayOfWeek    *int   `json:"day_of_week,omitempty"`
	SpecificDate string `json:"specific_date,omitempty"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	CreatedAt    string `json:"created_at"`
}

func parseClockMinute(field, s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, &model.ValidationError{Field: field, Reason: "must be HH:MM"}
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (req windowRequest) toModel() (model.AvailabilityWindow, error) {
	w := model.AvailabilityWindow{
		ID:      req.ID,
		StaffID: strings.TrimSpace(req.StaffID),
	}

	recurring := req.IsRecurring == nil || *req.IsRecurring
	if recurring {
		weekday := -1
		if req.DayOfWeek != nil {
			weekday = *req.DayOfWeek
		}
		w.Recurrence = model.Weekly{Weekday: time.Weekday(weekday)}
	} else {
		var d model.Date
		if s := strings.TrimSpace(req.SpecificDate); s != "" {
			var err error
			d, err = model.ParseDate(s)
			if err != nil {
				return model.AvailabilityWindow{}, &model.ValidationError{Field: "specific_date", Reason: "must be YYYY-MM-DD"}
			}
		}
		// A zero date is rejected by Validate: one-off windows need a date.
		w.Recurrence = model.OnDate{Date: d}
	}

	var err error
	if w.StartMinute, err = parseClockMinute("start_time", req.StartTime); err != nil {
		return model.AvailabilityWindow{}, err
	}
	if w.EndMinute, err = parseClockMinute("end_time", req.EndTime); err != nil {
		return model.AvailabilityWindow{}, err
	}
	return w, nil
}

func windowToItem(w model.AvailabilityWindow) windowItem {
	item := windowItem{
		ID:        w.ID,
		StaffID:   w.StaffID,
		StartTime: fmt.Sprintf("%02d:%02d", w.StartMinute/60, w.StartMinute%60),
		EndTime:   fmt.Sprintf("%02d:%02d", w.EndMinute/60, w.EndMinute%60),
		CreatedAt: w.CreatedAt.UTC().Format(time.RFC3339),
	}
	switch r := w.Recurrence.(type) {
	case model.Weekly:
		item.IsRecurring = true
		wd := int(r.Weekday)
		item.DayOfWeek = &wd
	case model.OnDate:
		item.SpecificDate = r.Date.String()
	}
	return item
}

// Windows creates (POST) or lists (GET) availability windows.
func (h *Handler) Windows(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createWindow(w, r)
	case http.MethodGet:
		h.listWindows(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	win, err := req.toModel()
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	eng, err := h.engineFor(r)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	created, err := eng.CreateWindow(r.Context(), win)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, windowToItem(created))
}

func (h *Handler) listWindows(w http.ResponseWriter, r *http.Request) {
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	if staffID == "" {
		http.Error(w, "staff_id required", http.StatusBadRequest)
		return
	}
	eng, err := h.engineFor(r)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	windows, err := eng.ListWindows(r.Context(), staffID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	items := make([]windowItem, 0, len(windows))
	for _, win := range windows {
		items = append(items, windowToItem(win))
	}
	writeJSON(w, http.StatusOK, items)
}

// UpdateWindow replaces a window's mutable fields in full.
func (h *Handler) UpdateWindow(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req windowRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	win, err := req.toModel()
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	eng, err := h.engineFor(r)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if err := eng.UpdateWindow(r.Context(), win); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, windowToItem(win))
}

func (h *Handler) DeleteWindow(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.ID) == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	eng, err := h.engineFor(r)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if err := eng.DeleteWindow(r.Context(), req.ID); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
