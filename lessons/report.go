package lessons

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lesson-engine/generic"
)

// =============================================================================
// REPORTER - Read-only summaries over the timeline
// =============================================================================

// Reporter computes income and attendance summaries. It never writes.
type Reporter struct {
	store Store
	now   func() time.Time
}

func NewReporter(s *Scheduler) *Reporter {
	return &Reporter{store: s.Store, now: s.now}
}

// PersonIncome is one row of the per-person breakdown.
type PersonIncome struct {
	PersonName string
	Income     decimal.Decimal
	Count      int
}

// FinancialReport totals prices over a period.
type FinancialReport struct {
	Year         int // 0 = all years
	Month        int // 0 = whole year
	TotalIncome  decimal.Decimal
	SessionCount int
	AveragePrice decimal.Decimal
	ByPerson     []PersonIncome // income descending, then name
}

// Financial totals every session in the given year and month. Zero values
// widen the period: month 0 covers the whole year, year 0 all time.
func (r *Reporter) Financial(ctx context.Context, year, month int) (*FinancialReport, error) {
	if month < 0 || month > 12 {
		return nil, generic.Invalid("month", "must be within 1..12")
	}
	if month > 0 && year == 0 {
		year = r.now().Year()
	}

	q := SessionQuery{}
	switch {
	case month > 0:
		q.From = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		q.To = q.From.AddDate(0, 1, 0)
	case year > 0:
		q.From = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		q.To = q.From.AddDate(1, 0, 0)
	}
	if !q.From.IsZero() {
		from := q.From
		q.Match = func(s Session) bool { return !s.Start.Before(from) }
	}

	sessions, err := r.store.QuerySessions(ctx, q)
	if err != nil {
		return nil, err
	}

	report := &FinancialReport{Year: year, Month: month, TotalIncome: decimal.Zero, AveragePrice: decimal.Zero}
	byPerson := map[string]*PersonIncome{}
	for _, s := range sessions {
		report.TotalIncome = report.TotalIncome.Add(s.Price)
		report.SessionCount++

		name := s.PersonName
		row, ok := byPerson[name]
		if !ok {
			row = &PersonIncome{PersonName: name, Income: decimal.Zero}
			byPerson[name] = row
		}
		row.Income = row.Income.Add(s.Price)
		row.Count++
	}
	if report.SessionCount > 0 {
		report.AveragePrice = report.TotalIncome.Div(decimal.NewFromInt(int64(report.SessionCount))).Round(2)
	}
	for _, row := range byPerson {
		report.ByPerson = append(report.ByPerson, *row)
	}
	sort.Slice(report.ByPerson, func(i, j int) bool {
		a, b := report.ByPerson[i], report.ByPerson[j]
		if c := a.Income.Cmp(b.Income); c != 0 {
			return c > 0
		}
		return a.PersonName < b.PersonName
	})
	return report, nil
}

// Upcoming returns the sessions starting within the next hours, by start.
func (r *Reporter) Upcoming(ctx context.Context, hours int) ([]Session, error) {
	if hours <= 0 {
		return nil, generic.Invalid("hours", "must be positive")
	}
	now := r.now()
	horizon := now.Add(time.Duration(hours) * time.Hour)
	return r.store.QuerySessions(ctx, SessionQuery{
		From: now,
		To:   horizon.Add(time.Nanosecond),
		Match: func(s Session) bool {
			return !s.Start.Before(now) && !s.Start.After(horizon)
		},
	})
}

// AbsentPerson is a roster entry with no lesson in the lookback window.
// LastSession is nil when the person never had one.
type AbsentPerson struct {
	Person      Person
	LastSession *time.Time
	DaysSince   int
}

// Absent lists persons whose latest session started more than days ago,
// including those never scheduled. Ordered by DaysSince, never-scheduled last.
func (r *Reporter) Absent(ctx context.Context, days int) ([]AbsentPerson, error) {
	if days <= 0 {
		return nil, generic.Invalid("days", "must be positive")
	}
	persons, err := r.store.ListPersons(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := r.store.QuerySessions(ctx, SessionQuery{})
	if err != nil {
		return nil, err
	}

	last := map[int64]time.Time{}
	for _, s := range sessions {
		if t, ok := last[s.PersonID]; !ok || s.Start.After(t) {
			last[s.PersonID] = s.Start
		}
	}

	now := r.now()
	cutoff := now.AddDate(0, 0, -days)
	var absent []AbsentPerson
	for _, p := range persons {
		t, ok := last[p.ID]
		if !ok {
			absent = append(absent, AbsentPerson{Person: p})
			continue
		}
		if t.Before(cutoff) {
			t := t
			absent = append(absent, AbsentPerson{Person: p, LastSession: &t, DaysSince: int(now.Sub(t).Hours() / 24)})
		}
	}
	sort.SliceStable(absent, func(i, j int) bool {
		a, b := absent[i], absent[j]
		if (a.LastSession == nil) != (b.LastSession == nil) {
			return b.LastSession == nil
		}
		return a.DaysSince < b.DaysSince
	})
	return absent, nil
}

// DailySchedule is one calendar day of lessons.
type DailySchedule struct {
	Date     generic.Date
	Sessions []Session
	Income   decimal.Decimal
	Minutes  int
}

// Daily returns every session starting on date.
func (r *Reporter) Daily(ctx context.Context, date generic.Date) (*DailySchedule, error) {
	span := date.Span()
	sessions, err := r.store.QuerySessions(ctx, SessionQuery{
		From:  span.Start,
		To:    span.End,
		Match: func(s Session) bool { return generic.DateOf(s.Start).Equal(date) },
	})
	if err != nil {
		return nil, err
	}
	day := &DailySchedule{Date: date, Sessions: sessions, Income: decimal.Zero}
	for _, s := range sessions {
		day.Income = day.Income.Add(s.Price)
		day.Minutes += s.Interval().Minutes()
	}
	return day, nil
}
