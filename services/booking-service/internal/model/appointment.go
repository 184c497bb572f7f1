package model

import "time"

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Occupies reports whether an appointment in this status blocks staff time.
// Cancelled appointments never conflict with anything.
func (s AppointmentStatus) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransition enforces the lifecycle: pending -> confirmed, and
// pending/confirmed -> cancelled. Nothing leaves cancelled, and nothing
// returns to pending.
func (s AppointmentStatus) CanTransition(to AppointmentStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled
	}
	return false
}

// Appointment references its service by id only; the occupied interval is
// [ScheduledAt, ScheduledAt + service duration) computed against the
// service's current duration at query time.
type Appointment struct {
	ID          string
	ClientID    string
	ServiceID   string
	StaffID     string
	ScheduledAt time.Time // naive wall-clock start
	Status      AppointmentStatus
	CreatedAt   time.Time
}
