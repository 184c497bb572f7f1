package model

import (
	"time"
)

// MinutesPerDay bounds window times-of-day; a window is a wall-clock
// interval within a single calendar day.
const MinutesPerDay = 24 * 60

// Date is a naive calendar date. The engine deals in local wall-clock time
// throughout, so a bare year/month/day triple is the key for availability
// matching; attaching a timezone would change weekday resolution.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// At materializes a wall-clock timestamp on this date at the given
// minutes-from-midnight offset. Naive timestamps are carried in the UTC
// location as a neutral placeholder; they are never converted.
func (d Date) At(minute int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, minute/60, minute%60, 0, 0, time.UTC)
}

func (d Date) Next() Date { return d.AddDays(1) }

func (d Date) AddDays(n int) Date { return DateOf(d.At(0).AddDate(0, 0, n)) }

func (d Date) After(o Date) bool { return d.At(0).After(o.At(0)) }

// DaysUntil returns the number of whole days from d to o (negative when o
// precedes d).
func (d Date) DaysUntil(o Date) int {
	return int(o.At(0).Sub(d.At(0)) / (24 * time.Hour))
}

func (d Date) String() string { return d.At(0).Format("2006-01-02") }

// Recurrence says which calendar dates a window is active on. It is a closed
// tagged variant: a window either repeats weekly or is pinned to one date,
// never neither. The "non-recurring window without a date" state is
// unrepresentable rather than checked at runtime.
type Recurrence interface {
	AppliesOn(d Date) bool
	validate() error
}

// Weekly repeats every week on one weekday (Sunday = 0).
type Weekly struct {
	Weekday time.Weekday
}

func (w Weekly) AppliesOn(d Date) bool { return d.Weekday() == w.Weekday }

func (w Weekly) validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return &ValidationError{Field: "weekday", Reason: "must be between 0 and 6"}
	}
	return nil
}

// OnDate applies to exactly one calendar date.
type OnDate struct {
	Date Date
}

func (o OnDate) AppliesOn(d Date) bool { return o.Date == d }

func (o OnDate) validate() error {
	if o.Date.IsZero() {
		return &ValidationError{Field: "specific_date", Reason: "required for one-off windows"}
	}
	return nil
}

// AvailabilityWindow is a span of bookable staff time, either weekly
// recurring or pinned to a single date. Deleting a window does not touch
// appointments already booked inside it.
type AvailabilityWindow struct {
	ID          string
	StaffID     string
	Recurrence  Recurrence
	StartMinute int // minutes from midnight, inclusive
	EndMinute   int // minutes from midnight, exclusive
	CreatedAt   time.Time
}

func (w AvailabilityWindow) Validate() error {
	if w.StaffID == "" {
		return &ValidationError{Field: "staff_id", Reason: "required"}
	}
	if w.Recurrence == nil {
		return &ValidationError{Field: "recurrence", Reason: "required"}
	}
	if err := w.Recurrence.validate(); err != nil {
		return err
	}
	if w.StartMinute < 0 || w.EndMinute > MinutesPerDay || w.StartMinute >= w.EndMinute {
		return &ValidationError{Field: "start_minute", Reason: "must satisfy 0 <= start < end <= 1440"}
	}
	return nil
}

// Span materializes the window's concrete interval on a date. Callers check
// Recurrence.AppliesOn first.
func (w AvailabilityWindow) Span(d Date) (start, end time.Time) {
	return d.At(w.StartMinute), d.At(w.EndMinute)
}
