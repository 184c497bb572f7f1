package availability

import (
	"testing"
	"time"

	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

var thursday = model.Date{Year: 2025, Month: time.June, Day: 19}

func window(rec model.Recurrence, startMin, endMin int) model.AvailabilityWindow {
	return model.AvailabilityWindow{
		ID:          "w1",
		StaffID:     "staff-1",
		Recurrence:  rec,
		StartMinute: startMin,
		EndMinute:   endMin,
	}
}

func TestResolve(t *testing.T) {
	windows := []model.AvailabilityWindow{
		window(model.Weekly{Weekday: time.Thursday}, 9*60, 17*60),
		window(model.Weekly{Weekday: time.Friday}, 9*60, 17*60),
		window(model.OnDate{Date: thursday}, 18*60, 20*60),
		window(model.OnDate{Date: thursday.Next()}, 18*60, 20*60),
	}

	active := Resolve(windows, thursday)
	if len(active) != 2 {
		t.Fatalf("expected weekly Thursday plus one-off, got %d windows", len(active))
	}
	if active[0].StartMinute != 9*60 || active[1].StartMinute != 18*60 {
		t.Fatalf("unexpected active windows: %+v", active)
	}

	if got := Resolve(windows, thursday.Next()); len(got) != 2 {
		t.Fatalf("Friday should match weekly Friday plus its one-off, got %d", len(got))
	}
	if got := Resolve(nil, thursday); len(got) != 0 {
		t.Fatal("no windows should resolve to nothing")
	}
}

func TestContained(t *testing.T) {
	windows := []model.AvailabilityWindow{
		window(model.Weekly{Weekday: time.Thursday}, 9*60, 11*60),
		window(model.Weekly{Weekday: time.Thursday}, 11*60, 13*60),
	}
	day := func(h, m int) time.Time { return thursday.At(h*60 + m) }

	tests := []struct {
		name string
		iv   Interval
		want bool
	}{
		{"inside first", Interval{day(9, 0), day(9, 30)}, true},
		{"inside second", Interval{day(11, 0), day(12, 0)}, true},
		{"spans adjacent windows", Interval{day(10, 30), day(11, 30)}, false},
		{"before open", Interval{day(8, 0), day(8, 30)}, false},
		{"past close", Interval{day(12, 45), day(13, 15)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Contained(windows, thursday, tt.iv); got != tt.want {
				t.Errorf("Contained = %v, want %v", got, tt.want)
			}
		})
	}

	if Contained(windows, thursday.Next(), Interval{day(9, 0), day(9, 30)}) {
		t.Fatal("windows for Thursday must not contain a Friday interval")
	}
}

func TestDaySlots(t *testing.T) {
	windows := []model.AvailabilityWindow{
		window(model.Weekly{Weekday: time.Thursday}, 9*60, 11*60),
	}
	dur := 30 * time.Minute

	t.Run("open morning", func(t *testing.T) {
		slots := DaySlots(windows, thursday, dur, nil)
		want := []int{540, 555, 570, 585, 600, 615, 630}
		if len(slots) != len(want) {
			t.Fatalf("got %d slots, want %d", len(slots), len(want))
		}
		for i, s := range slots {
			if got := s.Hour()*60 + s.Minute(); got != want[i] {
				t.Errorf("slot %d at minute %d, want %d", i, got, want[i])
			}
		}
	})

	t.Run("skips busy overlap", func(t *testing.T) {
		busy := []Interval{{thursday.At(9*60 + 30), thursday.At(10 * 60)}}
		slots := DaySlots(windows, thursday, dur, busy)
		want := []int{540, 600, 615, 630}
		if len(slots) != len(want) {
			t.Fatalf("got %d slots, want %d: %v", len(slots), len(want), slots)
		}
		for i, s := range slots {
			if got := s.Hour()*60 + s.Minute(); got != want[i] {
				t.Errorf("slot %d at minute %d, want %d", i, got, want[i])
			}
		}
	})

	t.Run("duration longer than window", func(t *testing.T) {
		if slots := DaySlots(windows, thursday, 3*time.Hour, nil); len(slots) != 0 {
			t.Fatalf("expected no slots, got %v", slots)
		}
	})

	t.Run("non-positive duration", func(t *testing.T) {
		if slots := DaySlots(windows, thursday, 0, nil); slots != nil {
			t.Fatalf("expected nil, got %v", slots)
		}
	})

	t.Run("wrong weekday", func(t *testing.T) {
		if slots := DaySlots(windows, thursday.Next(), dur, nil); len(slots) != 0 {
			t.Fatalf("expected no slots off-schedule, got %v", slots)
		}
	})
}

func TestSortAscending(t *testing.T) {
	slots := []time.Time{thursday.At(600), thursday.At(540), thursday.At(570)}
	SortAscending(slots)
	for i := 1; i < len(slots); i++ {
		if slots[i].Before(slots[i-1]) {
			t.Fatalf("slots out of order: %v", slots)
		}
	}
}
