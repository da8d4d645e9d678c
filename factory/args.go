/*
Package factory converts flat tool-call arguments into engine values.

PURPOSE:
  Callers (HTTP handlers, the CLI, an assistant issuing tool calls) speak in
  flat strings and numbers: "2026-02-02,2026-02-15", "周一,周三",
  "14:00,15:30". The factory parses those literals into the typed values the
  lessons package works with. Every malformed literal comes back as a
  *generic.ValidationError naming the argument it was read from.

LITERAL FORMATS:
  date        2026-02-02
  date-time   2026-02-02T15:00[:00]   (a space separator is accepted)
  clock       15:00[:00]
  weekday     周一..周日, 0..6 (Monday = 0), monday..sunday
  lists       comma separated, full-width comma accepted
  ranges      "start,end" for date ranges and time-of-day overrides
  money       JSON number or numeric string, never negative

JSON SHAPE (recurring plan):
  {
    "title": "Maths",
    "person_name": "Ann",
    "start_date": "2026-02-02",
    "end_date": "2026-02-15",
    "weekdays": "周一,周三",
    "start_time": "15:00",
    "end_time": "16:00",
    "price": 200,
    "grade": "G5"
  }

USAGE:
  plan, err := factory.ParseRecurringJSON(body)
  res, err := scheduler.CreateRecurring(ctx, plan)

SEE ALSO:
  - generic/time.go, generic/period.go: literal parsers
  - api/handlers.go: request bodies and query strings decoded into these args
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lesson-engine/generic"
	"github.com/warp/lesson-engine/lessons"
)

// =============================================================================
// ARGUMENT SHAPES
// =============================================================================

// PersonArgs is the roster create/update payload.
type PersonArgs struct {
	Name          string `json:"name"`
	Grade         string `json:"grade,omitempty"`
	Phone         string `json:"phone,omitempty"`
	ParentContact string `json:"parent_contact,omitempty"`
	Progress      int    `json:"progress,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// BookingArgs books one session.
type BookingArgs struct {
	Title       string          `json:"title"`
	PersonName  string          `json:"person_name"`
	StartTime   string          `json:"start_time"` // date-time
	EndTime     string          `json:"end_time"`   // date-time
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	Color       string          `json:"color,omitempty"`
}

// PatchArgs edits one session. Absent fields are kept.
type PatchArgs struct {
	Title       *string             `json:"title,omitempty"`
	PersonName  *string             `json:"person_name,omitempty"`
	StartTime   *string             `json:"start_time,omitempty"`
	EndTime     *string             `json:"end_time,omitempty"`
	Price       decimal.NullDecimal `json:"price"`
	Description *string             `json:"description,omitempty"`
	Location    *string             `json:"location,omitempty"`
	Color       *string             `json:"color,omitempty"`
}

// RecurringArgs is the flat form of lessons.RecurrencePlan.
type RecurringArgs struct {
	Title       string          `json:"title"`
	PersonName  string          `json:"person_name"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	Weekdays    string          `json:"weekdays"`   // "周一,周三"
	StartTime   string          `json:"start_time"` // clock
	EndTime     string          `json:"end_time"`   // clock
	Price       decimal.Decimal `json:"price"`
	Grade       string          `json:"grade,omitempty"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	Color       string          `json:"color,omitempty"`
}

// FilterArgs selects sessions for query, batch update, batch delete and export.
type FilterArgs struct {
	TitlePattern string `json:"title_pattern,omitempty"`
	PersonName   string `json:"person_name,omitempty"`
	DateRange    string `json:"date_range,omitempty"` // "2026-02-01,2026-02-28"
	Weekday      string `json:"weekday,omitempty"`
}

// BatchUpdateArgs is a filter plus the overrides to apply.
type BatchUpdateArgs struct {
	FilterArgs
	NewTime     string              `json:"new_time,omitempty"` // "14:00,15:30"
	NewPrice    decimal.NullDecimal `json:"new_price"`
	NewLocation *string             `json:"new_location,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// Person maps roster args one to one; validation happens in the engine.
func Person(a PersonArgs) lessons.PersonFields {
	return lessons.PersonFields{
		Name:          a.Name,
		Grade:         a.Grade,
		Phone:         a.Phone,
		ParentContact: a.ParentContact,
		Progress:      a.Progress,
		Notes:         a.Notes,
	}
}

// Booking parses the date-times of a booking request.
func Booking(a BookingArgs) (lessons.SessionDraft, error) {
	start, err := dateTime("start_time", a.StartTime)
	if err != nil {
		return lessons.SessionDraft{}, err
	}
	end, err := dateTime("end_time", a.EndTime)
	if err != nil {
		return lessons.SessionDraft{}, err
	}
	return lessons.SessionDraft{
		Title:       a.Title,
		PersonName:  a.PersonName,
		Start:       start,
		End:         end,
		Price:       a.Price,
		Location:    a.Location,
		Description: a.Description,
		Color:       a.Color,
	}, nil
}

// Patch parses a single-session edit.
func Patch(a PatchArgs) (lessons.SessionPatch, error) {
	p := lessons.SessionPatch{
		Title:       a.Title,
		PersonName:  a.PersonName,
		Location:    a.Location,
		Description: a.Description,
		Color:       a.Color,
	}
	if a.StartTime != nil {
		t, err := dateTime("start_time", *a.StartTime)
		if err != nil {
			return lessons.SessionPatch{}, err
		}
		p.Start = &t
	}
	if a.EndTime != nil {
		t, err := dateTime("end_time", *a.EndTime)
		if err != nil {
			return lessons.SessionPatch{}, err
		}
		p.End = &t
	}
	if a.Price.Valid {
		price := a.Price.Decimal
		p.Price = &price
	}
	return p, nil
}

// Recurring parses a flat recurrence request. Weekday tokens are split here
// but validated by the engine together with the rest of the plan.
func Recurring(a RecurringArgs) (lessons.RecurrencePlan, error) {
	start, err := date("start_date", a.StartDate)
	if err != nil {
		return lessons.RecurrencePlan{}, err
	}
	end, err := date("end_date", a.EndDate)
	if err != nil {
		return lessons.RecurrencePlan{}, err
	}
	from, err := clock("start_time", a.StartTime)
	if err != nil {
		return lessons.RecurrencePlan{}, err
	}
	to, err := clock("end_time", a.EndTime)
	if err != nil {
		return lessons.RecurrencePlan{}, err
	}
	return lessons.RecurrencePlan{
		Title:       a.Title,
		PersonName:  a.PersonName,
		StartDate:   start,
		EndDate:     end,
		Weekdays:    generic.SplitList(a.Weekdays),
		DailyStart:  from,
		DailyEnd:    to,
		Price:       a.Price,
		Grade:       a.Grade,
		Location:    a.Location,
		Description: a.Description,
		Color:       a.Color,
	}, nil
}

// ParseRecurringJSON decodes and converts a recurrence plan document.
func ParseRecurringJSON(data []byte) (lessons.RecurrencePlan, error) {
	var a RecurringArgs
	if err := json.Unmarshal(data, &a); err != nil {
		return lessons.RecurrencePlan{}, fmt.Errorf("failed to parse recurring plan JSON: %w", err)
	}
	return Recurring(a)
}

// Filter parses the date range literal. The weekday token is left to
// lessons.CompileFilter so both paths report the same error.
func Filter(a FilterArgs) (lessons.FilterSpec, error) {
	spec := lessons.FilterSpec{
		TitleSubstring: a.TitlePattern,
		PersonName:     a.PersonName,
		Weekday:        a.Weekday,
	}
	if a.DateRange != "" {
		r, err := generic.ParseDateRange(a.DateRange)
		if err != nil {
			return lessons.FilterSpec{}, generic.Invalid("date_range", err)
		}
		spec.DateRange = &r
	}
	return spec, nil
}

// BatchUpdate parses the filter and the overrides of a batch update.
func BatchUpdate(a BatchUpdateArgs) (lessons.FilterSpec, lessons.UpdateOverrides, error) {
	spec, err := Filter(a.FilterArgs)
	if err != nil {
		return lessons.FilterSpec{}, lessons.UpdateOverrides{}, err
	}
	var o lessons.UpdateOverrides
	if a.NewTime != "" {
		r, err := generic.ParseClockRange(a.NewTime)
		if err != nil {
			return lessons.FilterSpec{}, lessons.UpdateOverrides{}, generic.Invalid("new_time", err)
		}
		o.TimeOfDay = &r
	}
	if a.NewPrice.Valid {
		price := a.NewPrice.Decimal
		o.Price = &price
	}
	o.Location = a.NewLocation
	return spec, o, nil
}

// =============================================================================
// LITERAL HELPERS
// =============================================================================

// Names splits a comma-joined list of person names.
func Names(s string) []string { return generic.SplitList(s) }

// Date parses a required YYYY-MM-DD argument.
func Date(field, s string) (generic.Date, error) { return date(field, s) }

// DateTime parses a required date-time argument.
func DateTime(field, s string) (time.Time, error) { return dateTime(field, s) }

func date(field, s string) (generic.Date, error) {
	if s == "" {
		return generic.Date{}, generic.Invalid(field, "is required")
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.Date{}, generic.Invalid(field, err)
	}
	return d, nil
}

func dateTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, generic.Invalid(field, "is required")
	}
	t, err := generic.ParseDateTime(s)
	if err != nil {
		return time.Time{}, generic.Invalid(field, err)
	}
	return t, nil
}

func clock(field, s string) (generic.Clock, error) {
	if s == "" {
		return generic.Clock{}, generic.Invalid(field, "is required")
	}
	c, err := generic.ParseClock(s)
	if err != nil {
		return generic.Clock{}, generic.Invalid(field, err)
	}
	return c, nil
}
