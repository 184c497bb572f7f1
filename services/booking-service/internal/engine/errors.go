package engine

import "errors"

var (
	// ErrNotFound covers unknown service ids during enumeration and unknown
	// appointment ids on confirm/cancel/reschedule. A staff member with no
	// windows is not an error; that is an empty result.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the requested staff time is not bookable: no
	// availability window contains it, an occupying appointment overlaps it,
	// or the appointment status does not admit the requested transition.
	// On the read path the same condition is a computed false, not an error.
	ErrConflict = errors.New("time no longer available")
)
