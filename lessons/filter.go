package lessons

import (
	"strings"

	"github.com/warp/lesson-engine/generic"
)

// =============================================================================
// FILTER SPEC - Optional-field query descriptor
// =============================================================================

// FilterSpec describes which sessions a query, batch update or batch delete
// targets. Every field is optional; set fields are combined with AND.
type FilterSpec struct {
	TitleSubstring string             // case-preserving substring of Title
	PersonName     string             // exact match on the joined PersonName
	DateRange      *generic.DateRange // inclusive, on the calendar date of Start
	Weekday        string             // weekday token of Start, e.g. "周六", "5", "saturday"
}

// IsEmpty reports whether the spec matches every session.
func (f FilterSpec) IsEmpty() bool {
	return f.TitleSubstring == "" && f.PersonName == "" && f.DateRange == nil && f.Weekday == ""
}

// Filter is a compiled FilterSpec. The same value drives query, batch update,
// batch delete and export so a reported "matched" count is exactly the set
// that gets mutated.
type Filter struct {
	spec    FilterSpec
	weekday *generic.Weekday
}

// CompileFilter validates spec and returns its predicate.
func CompileFilter(spec FilterSpec) (*Filter, error) {
	f := &Filter{spec: spec}
	if spec.DateRange != nil {
		if err := spec.DateRange.Validate(); err != nil {
			return nil, generic.Invalid("date_range", err)
		}
	}
	if spec.Weekday != "" {
		wd, err := generic.ParseWeekday(spec.Weekday)
		if err != nil {
			return nil, generic.Invalid("weekday", err)
		}
		f.weekday = &wd
	}
	return f, nil
}

// MatchAll is the filter with no constraints.
func MatchAll() *Filter { return &Filter{} }

// Spec returns the descriptor the filter was compiled from.
func (f *Filter) Spec() FilterSpec { return f.spec }

// Match applies every active constraint to s.
func (f *Filter) Match(s Session) bool {
	if f.spec.TitleSubstring != "" && !strings.Contains(s.Title, f.spec.TitleSubstring) {
		return false
	}
	if f.spec.PersonName != "" && s.PersonName != f.spec.PersonName {
		return false
	}
	if f.spec.DateRange != nil && !f.spec.DateRange.Contains(s.Start) {
		return false
	}
	if f.weekday != nil && generic.WeekdayOf(s.Start) != *f.weekday {
		return false
	}
	return true
}

// Query converts the filter into a store query. The date range becomes a
// storage window hint; Match stays authoritative.
func (f *Filter) Query() SessionQuery {
	q := SessionQuery{Match: f.Match}
	if f.spec.DateRange != nil {
		w := f.spec.DateRange.Window()
		q.From, q.To = w.Start, w.End
	}
	return q
}
