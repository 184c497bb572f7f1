package availability

import (
	"sort"
	"time"

	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

// SlotStepMinutes is the enumeration granularity. This is policy, not a
// tuning knob: slot starts are aligned to 15-minute steps from each window's
// start.
const SlotStepMinutes = 15

// MaxRangeDays caps a single enumeration request. The occupied-interval set
// for the whole range is fetched once and held in memory for the call, so
// the range has to be bounded.
const MaxRangeDays = 31

// DaySlots emits candidate start times on one date: for every window active
// on d, candidates step from the window start by SlotStepMinutes, keeping
// those whose [candidate, candidate+duration) fits inside the window and
// overlaps none of the busy intervals.
func DaySlots(windows []model.AvailabilityWindow, d model.Date, duration time.Duration, busy []Interval) []time.Time {
	if duration <= 0 {
		return nil
	}
	step := SlotStepMinutes * time.Minute
	var slots []time.Time
	for _, w := range Resolve(windows, d) {
		start, end := w.Span(d)
		for t := start; !t.Add(duration).After(end); t = t.Add(step) {
			if !overlapsAny(Interval{Start: t, End: t.Add(duration)}, busy) {
				slots = append(slots, t)
			}
		}
	}
	return slots
}

// SortAscending orders slot starts by timestamp. Enumeration output is a
// stable total order regardless of window iteration order.
func SortAscending(slots []time.Time) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
}
