package generic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Accepted literal layouts. All values are naive wall-clock times.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
	ClockLayout    = "15:04"
	MonthLayout    = "2006-01"
)

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// =============================================================================
// DATE - Calendar day without time or zone
// =============================================================================

// Date is a calendar day. Time is always midnight UTC.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t (wall clock).
func DateOf(t time.Time) Date { return NewDate(t.Year(), t.Month(), t.Day()) }

// Naive relabels the wall clock of t as time.UTC, dropping sub-second
// precision. Stored times are naive, so every "now" must pass through here
// before it is compared with them.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// Today returns the current local calendar day.
func Today() Date { return DateOf(time.Now()) }

// ParseDate parses YYYY-MM-DD. A full date-time is accepted and truncated.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(DateLayout, s, time.UTC); err == nil {
		return DateOf(t), nil
	}
	if t, err := ParseDateTime(s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
}

// Comparison
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool  { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool  { return d.Time.Equal(other.Time) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Weekday() Weekday { return WeekdayOf(d.Time) }
func (d Date) Month() string    { return d.Time.Format(MonthLayout) }
func (d Date) String() string   { return d.Time.Format(DateLayout) }

// At combines the day with a clock time.
func (d Date) At(c Clock) time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), c.Hour, c.Minute, c.Second, 0, time.UTC)
}

// Span returns the whole day as [00:00, next 00:00).
func (d Date) Span() Interval {
	return Interval{Start: d.Time, End: d.Time.AddDate(0, 0, 1)}
}

// ParseDateTime parses an ISO-8601 date-time without zone, e.g.
// 2026-02-02T15:00:00 or 2026-02-02 15:00.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q: want YYYY-MM-DDTHH:MM[:SS]", s)
}

// =============================================================================
// CLOCK - Time of day
// =============================================================================

type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock parses HH:MM or HH:MM:SS.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Clock{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	var vals [3]int
	limits := [3]int{23, 59, 59}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] || len(p) == 0 || len(p) > 2 {
			return Clock{}, fmt.Errorf("invalid time %q: want HH:MM", s)
		}
		vals[i] = n
	}
	return Clock{Hour: vals[0], Minute: vals[1], Second: vals[2]}, nil
}

// ClockOf returns the time-of-day part of t.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func (c Clock) seconds() int           { return c.Hour*3600 + c.Minute*60 + c.Second }
func (c Clock) Before(other Clock) bool { return c.seconds() < other.seconds() }
func (c Clock) Equal(other Clock) bool  { return c.seconds() == other.seconds() }

func (c Clock) String() string {
	if c.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ClockRange is a daily [Start, End) time-of-day span.
type ClockRange struct {
	Start Clock
	End   Clock
}

// Valid reports whether Start is strictly before End.
func (r ClockRange) Valid() bool { return r.Start.Before(r.End) }

// On places the range on a calendar day.
func (r ClockRange) On(d Date) Interval {
	return Interval{Start: d.At(r.Start), End: d.At(r.End)}
}

func (r ClockRange) String() string { return r.Start.String() + "-" + r.End.String() }

// =============================================================================
// WEEKDAY - ISO weekday index, Monday = 0 ... Sunday = 6
// =============================================================================

type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ChineseWeekdayNames are the day names used in the roster UI, Monday first.
var ChineseWeekdayNames = [7]string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

var weekdayTokens = map[string]Weekday{}

func init() {
	for i := 0; i < 7; i++ {
		wd := Weekday(i)
		weekdayTokens[ChineseWeekdayNames[i]] = wd
		weekdayTokens[strconv.Itoa(i)] = wd
		weekdayTokens[strings.ToLower(weekdayNames[i])] = wd
	}
}

// WeekdayOf converts Go's Sunday-first weekday into the ISO index.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// Time returns the matching time.Weekday.
func (w Weekday) Time() time.Weekday { return time.Weekday((int(w) + 1) % 7) }

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// ParseWeekday accepts a Chinese day name (周一), a digit 0-6 with Monday = 0,
// or an English day name in any case.
func ParseWeekday(token string) (Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(token))
	if wd, ok := weekdayTokens[key]; ok {
		return wd, nil
	}
	return 0, fmt.Errorf("unknown weekday %q: use 周一..周日, 0-6 (Monday=0) or monday..sunday", token)
}

// ParseWeekdaySet parses every token and returns the distinct weekdays in
// ascending order. Any unknown token, or no token at all, is an error.
func ParseWeekdaySet(tokens []string) ([]Weekday, error) {
	seen := make(map[Weekday]bool)
	for _, tok := range tokens {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		wd, err := ParseWeekday(tok)
		if err != nil {
			return nil, err
		}
		seen[wd] = true
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("weekday set is empty")
	}
	set := make([]Weekday, 0, len(seen))
	for wd := range seen {
		set = append(set, wd)
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return set, nil
}

// SplitList splits a comma-joined literal ("周一,周三", "a, b") into trimmed,
// non-empty items. Full-width commas are accepted.
func SplitList(s string) []string {
	s = strings.ReplaceAll(s, "，", ",")
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
