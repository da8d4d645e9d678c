/*
recurring.go - Expansion of a recurrence plan into concrete sessions

PURPOSE:
  A RecurrencePlan says "Maths with Ann, Mondays and Wednesdays 15:00-16:00,
  Feb 2 to Feb 15". CreateRecurring turns that into sessions, skipping every
  date that would collide with the existing timeline instead of failing.

ALGORITHM:
  1. Validate dates, clock range, price and weekday tokens (no writes yet)
  2. Enumerate matching dates with a weekly RRULE bounded by the plan
  3. Inside one transaction:
     a. resolve-or-create the person by name
     b. load stored sessions overlapping [first start, last end)
     c. per date, DetectConflicts against stored + accepted-so-far
     d. write every accepted session in one batch

RESULT:
  Counts per month, skipped dates and expected income (price x created).

SEE ALSO:
  - generic/interval.go: DetectConflicts
  - roster.go: ResolveOrCreatePerson
*/
package lessons

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"
	"github.com/warp/lesson-engine/generic"
)

// RecurrencePlan is the template expanded by CreateRecurring.
type RecurrencePlan struct {
	Title      string
	PersonName string
	StartDate  generic.Date
	EndDate    generic.Date
	Weekdays   []string // weekday tokens, see generic.ParseWeekday
	DailyStart generic.Clock
	DailyEnd   generic.Clock
	Price      decimal.Decimal

	// Optional
	Grade       string // used only when the person is auto-provisioned
	Location    string
	Description string
	Color       string
}

// RecurringResult reports what a plan produced.
type RecurringResult struct {
	PersonID       int64
	PersonName     string
	PersonCreated  bool
	PersonGrade    string
	Created        []Session
	CreatedCount   int
	SkippedDates   []string       // YYYY-MM-DD, ascending
	CreatedByMonth map[string]int // "YYYY-MM" -> count
	ExpectedIncome decimal.Decimal
}

var rruleWeekdays = [7]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// validate checks everything that can be checked without the store.
func (p RecurrencePlan) validate() ([]generic.Weekday, error) {
	if p.Title == "" {
		return nil, generic.Invalid("title", "must not be empty")
	}
	if p.PersonName == "" {
		return nil, generic.Invalid("person_name", "must not be empty")
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return nil, generic.Invalid("date_range", "start and end dates are required")
	}
	if p.EndDate.Before(p.StartDate) {
		return nil, generic.Invalid("date_range", fmt.Sprintf("end %s before start %s", p.EndDate, p.StartDate))
	}
	daily := generic.ClockRange{Start: p.DailyStart, End: p.DailyEnd}
	if !daily.Valid() {
		return nil, generic.Invalid("time_range", fmt.Sprintf("%s: start must be before end", daily))
	}
	if p.Price.IsNegative() {
		return nil, generic.Invalid("price", "must not be negative")
	}
	days, err := generic.ParseWeekdaySet(p.Weekdays)
	if err != nil {
		return nil, generic.Invalid("weekdays", err)
	}
	return days, nil
}

// PlanDates enumerates the dates in [StartDate, EndDate] falling on one of
// days, ascending.
func PlanDates(start, end generic.Date, days []generic.Weekday) ([]generic.Date, error) {
	byweekday := make([]rrule.Weekday, len(days))
	for i, d := range days {
		byweekday[i] = rruleWeekdays[d]
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start.Time,
		Until:     end.Time,
		Byweekday: byweekday,
		Wkst:      rrule.MO,
	})
	if err != nil {
		return nil, fmt.Errorf("expand weekly rule: %w", err)
	}
	occurrences := rule.All()
	dates := make([]generic.Date, len(occurrences))
	for i, t := range occurrences {
		dates[i] = generic.DateOf(t)
	}
	return dates, nil
}

// CreateRecurring expands plan into sessions. Dates that overlap anything on
// the timeline, including sessions accepted earlier in the same pass, are
// skipped and reported. Nothing is written unless validation passes.
func (s *Scheduler) CreateRecurring(ctx context.Context, plan RecurrencePlan) (*RecurringResult, error) {
	days, err := plan.validate()
	if err != nil {
		return nil, err
	}
	dates, err := PlanDates(plan.StartDate, plan.EndDate, days)
	if err != nil {
		return nil, err
	}

	result := &RecurringResult{
		PersonName:     plan.PersonName,
		CreatedByMonth: map[string]int{},
		ExpectedIncome: decimal.Zero,
	}
	if len(dates) == 0 {
		return result, nil
	}

	daily := generic.ClockRange{Start: plan.DailyStart, End: plan.DailyEnd}
	span := generic.Interval{
		Start: daily.On(dates[0]).Start,
		End:   daily.On(dates[len(dates)-1]).End,
	}
	color := s.color(plan.Color)

	err = s.Store.WithTx(ctx, func(tx Store) error {
		person, created, err := ResolveOrCreatePerson(ctx, tx, plan.PersonName, plan.Grade)
		if err != nil {
			return err
		}

		stored, err := tx.QuerySessions(ctx, SessionQuery{From: span.Start, To: span.End})
		if err != nil {
			return err
		}
		timeline := Intervals(stored)

		var accepted []Session
		var skipped []string
		for _, d := range dates {
			candidate := daily.On(d)
			if generic.HasConflict(candidate, timeline, "") {
				skipped = append(skipped, d.String())
				s.Logger.Debug("recurring date skipped", "date", d.String(), "person", person.Name)
				continue
			}
			sess := Session{
				ID:          newSessionID(),
				Title:       plan.Title,
				Start:       candidate.Start,
				End:         candidate.End,
				PersonID:    person.ID,
				Price:       plan.Price,
				Location:    plan.Location,
				Description: plan.Description,
				Color:       color,
				PersonName:  person.Name,
				PersonGrade: person.Grade,
			}
			accepted = append(accepted, sess)
			timeline = append(timeline, sess.Interval())
		}

		if len(accepted) > 0 {
			if err := tx.CreateSessions(ctx, accepted); err != nil {
				return err
			}
		}

		result.PersonID = person.ID
		result.PersonName = person.Name
		result.PersonCreated = created
		result.PersonGrade = person.Grade
		result.Created = accepted
		result.SkippedDates = skipped
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.CreatedCount = len(result.Created)
	for _, sess := range result.Created {
		result.CreatedByMonth[sess.Start.Format(generic.MonthLayout)]++
	}
	result.ExpectedIncome = plan.Price.Mul(decimal.NewFromInt(int64(result.CreatedCount)))

	s.Logger.Info("recurring plan applied",
		"person", result.PersonName,
		"person_created", result.PersonCreated,
		"created", result.CreatedCount,
		"skipped", len(result.SkippedDates),
		"expected_income", result.ExpectedIncome.String())
	return result, nil
}

// Months returns the CreatedByMonth keys in ascending order.
func (r *RecurringResult) Months() []string {
	months := make([]string, 0, len(r.CreatedByMonth))
	for m := range r.CreatedByMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}
