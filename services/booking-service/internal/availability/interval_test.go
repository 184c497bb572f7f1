package availability

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2025, time.June, 19, h, m, 0, 0, time.UTC)
}

func TestIntervalOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", Interval{at(9, 0), at(10, 0)}, Interval{at(9, 0), at(10, 0)}, true},
		{"partial", Interval{at(9, 0), at(10, 0)}, Interval{at(9, 30), at(10, 30)}, true},
		{"contained", Interval{at(9, 0), at(12, 0)}, Interval{at(10, 0), at(11, 0)}, true},
		{"adjacent", Interval{at(9, 0), at(10, 0)}, Interval{at(10, 0), at(11, 0)}, false},
		{"disjoint", Interval{at(9, 0), at(10, 0)}, Interval{at(11, 0), at(12, 0)}, false},
		{"zero length inside", Interval{at(9, 30), at(9, 30)}, Interval{at(9, 0), at(10, 0)}, false},
		{"zero length at same instant", Interval{at(9, 30), at(9, 30)}, Interval{at(9, 30), at(9, 30)}, false},
		{"inverted", Interval{at(10, 0), at(9, 0)}, Interval{at(9, 0), at(10, 0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps not symmetric: reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntervalContains(t *testing.T) {
	outer := Interval{at(9, 0), at(12, 0)}
	tests := []struct {
		name  string
		inner Interval
		want  bool
	}{
		{"strictly inside", Interval{at(10, 0), at(11, 0)}, true},
		{"equal", outer, true},
		{"touching start", Interval{at(9, 0), at(9, 30)}, true},
		{"touching end", Interval{at(11, 30), at(12, 0)}, true},
		{"spills before", Interval{at(8, 30), at(9, 30)}, false},
		{"spills after", Interval{at(11, 30), at(12, 30)}, false},
		{"disjoint", Interval{at(13, 0), at(14, 0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outer.Contains(tt.inner); got != tt.want {
				t.Errorf("Contains = %v, want %v", got, tt.want)
			}
		})
	}
}
