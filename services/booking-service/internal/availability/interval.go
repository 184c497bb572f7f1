package availability

import "time"

// Interval is a half-open time span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals share an instant:
// s1 < e2 && s2 < e1. Adjacent intervals do not overlap, and zero-length
// intervals overlap nothing, including intervals that contain their start.
func (iv Interval) Overlaps(o Interval) bool {
	if !iv.Start.Before(iv.End) || !o.Start.Before(o.End) {
		return false
	}
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// Contains reports whether o lies entirely inside iv.
func (iv Interval) Contains(o Interval) bool {
	return !o.Start.Before(iv.Start) && !o.End.After(iv.End)
}

func overlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}
