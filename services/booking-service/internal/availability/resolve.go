package availability

import (
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

// Resolve returns the windows active on a date: weekly windows matching the
// date's weekday plus one-off windows pinned to that date. Overlapping or
// duplicate windows are all returned; merging is not this layer's job, since
// booking still checks one real appointment per slot.
func Resolve(windows []model.AvailabilityWindow, d model.Date) []model.AvailabilityWindow {
	var active []model.AvailabilityWindow
	for _, w := range windows {
		if w.Recurrence != nil && w.Recurrence.AppliesOn(d) {
			active = append(active, w)
		}
	}
	return active
}

// Contained reports whether at least one window active on d fully contains
// iv. A booking must fit inside a single window; spanning two adjacent
// windows does not count.
func Contained(windows []model.AvailabilityWindow, d model.Date, iv Interval) bool {
	for _, w := range Resolve(windows, d) {
		start, end := w.Span(d)
		if (Interval{Start: start, End: end}).Contains(iv) {
			return true
		}
	}
	return false
}
