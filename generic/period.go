package generic

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// DATE RANGE - Inclusive calendar span used by filters and plans
// =============================================================================

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("invalid range: end before start")

// DateRange is the inclusive span [Start, End] of calendar days.
//
// Examples:
//   - A single day: {2026-02-02, 2026-02-02}
//   - Spring term: {2026-02-02, 2026-06-30}
type DateRange struct {
	Start Date
	End   Date
}

// ParseDateRange parses "YYYY-MM-DD,YYYY-MM-DD".
func ParseDateRange(s string) (DateRange, error) {
	parts := SplitList(s)
	if len(parts) != 2 {
		return DateRange{}, fmt.Errorf("invalid date range %q: want start,end", s)
	}
	start, err := ParseDate(parts[0])
	if err != nil {
		return DateRange{}, err
	}
	end, err := ParseDate(parts[1])
	if err != nil {
		return DateRange{}, err
	}
	r := DateRange{Start: start, End: end}
	return r, r.Validate()
}

// Validate rejects ranges whose End precedes Start.
func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	return nil
}

// Contains reports whether the calendar day of t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns every day in the range, ascending.
func (r DateRange) Days() []Date {
	var days []Date
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Window converts the range to the half-open instant span
// [Start 00:00, End+1 00:00) for storage queries.
func (r DateRange) Window() Interval {
	return Interval{Start: r.Start.Time, End: r.End.AddDays(1).Time}
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// ParseClockRange parses "HH:MM,HH:MM" into a daily span with start < end.
func ParseClockRange(s string) (ClockRange, error) {
	parts := SplitList(s)
	if len(parts) != 2 {
		return ClockRange{}, fmt.Errorf("invalid time range %q: want start,end", s)
	}
	start, err := ParseClock(parts[0])
	if err != nil {
		return ClockRange{}, err
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return ClockRange{}, err
	}
	r := ClockRange{Start: start, End: end}
	if !r.Valid() {
		return ClockRange{}, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	return r, nil
}
