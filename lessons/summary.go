package lessons

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lesson-engine/generic"
)

// =============================================================================
// TEACHING SUMMARIES - Period and per-person aggregations
// =============================================================================

// Summary periods accepted by TeachingSummary.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodAll   = "all"
)

// RecentDays is the lookback of ProgressReport.RecentCount.
const RecentDays = 30

// Totals aggregates a set of sessions.
type Totals struct {
	SessionCount int
	Minutes      int
	PersonCount  int // distinct persons
	Income       decimal.Decimal
}

// Hours is Minutes in hours, rounded to 2 places.
func (t Totals) Hours() decimal.Decimal {
	return decimal.NewFromInt(int64(t.Minutes)).Div(decimal.NewFromInt(60)).Round(2)
}

// HourlyRate is income per taught hour, zero when nothing was taught.
func (t Totals) HourlyRate() decimal.Decimal {
	if t.Minutes == 0 {
		return decimal.Zero
	}
	return t.Income.Mul(decimal.NewFromInt(60)).Div(decimal.NewFromInt(int64(t.Minutes))).Round(2)
}

// AveragePrice is income per session, zero for an empty set.
func (t Totals) AveragePrice() decimal.Decimal {
	if t.SessionCount == 0 {
		return decimal.Zero
	}
	return t.Income.Div(decimal.NewFromInt(int64(t.SessionCount))).Round(2)
}

func totalsOf(sessions []Session) Totals {
	t := Totals{Income: decimal.Zero}
	persons := map[int64]bool{}
	for _, s := range sessions {
		t.SessionCount++
		t.Minutes += s.Interval().Minutes()
		t.Income = t.Income.Add(s.Price)
		persons[s.PersonID] = true
	}
	t.PersonCount = len(persons)
	return t
}

// CurrentWeek returns the Monday..Sunday week containing now. On a Sunday
// the coming week is returned, since the current one is all but over.
func CurrentWeek(now time.Time) generic.DateRange {
	today := generic.DateOf(now)
	wd := today.Weekday()
	start := today.AddDays(-int(wd))
	if wd == generic.Sunday {
		start = today.AddDays(1)
	}
	return generic.DateRange{Start: start, End: start.AddDays(6)}
}

// startsWithin queries the sessions starting inside w.
func startsWithin(ctx context.Context, st Store, w generic.Interval, personIDs []int64) ([]Session, error) {
	return st.QuerySessions(ctx, SessionQuery{
		From:      w.Start,
		To:        w.End,
		PersonIDs: personIDs,
		Match:     func(s Session) bool { return w.Contains(s.Start) },
	})
}

// -----------------------------------------------------------------------------
// Teaching summary
// -----------------------------------------------------------------------------

// TitleCount is one row of the per-title distribution.
type TitleCount struct {
	Title string
	Count int
}

// TeachingSummary aggregates one period.
type TeachingSummary struct {
	Period string
	Range  *generic.DateRange // nil for PeriodAll
	Totals
	ByTitle []TitleCount // count descending, then title
}

// TeachingSummary totals the current week, the current month or everything.
// An empty period means the week.
func (r *Reporter) TeachingSummary(ctx context.Context, period string) (*TeachingSummary, error) {
	now := r.now()
	sum := &TeachingSummary{Period: period}

	var (
		sessions []Session
		err      error
	)
	switch period {
	case "", PeriodWeek:
		sum.Period = PeriodWeek
		week := CurrentWeek(now)
		sum.Range = &week
		sessions, err = startsWithin(ctx, r.store, week.Window(), nil)
	case PeriodMonth:
		first := generic.NewDate(now.Year(), now.Month(), 1)
		month := generic.DateRange{Start: first, End: generic.DateOf(first.Time.AddDate(0, 1, -1))}
		sum.Range = &month
		sessions, err = startsWithin(ctx, r.store, month.Window(), nil)
	case PeriodAll:
		sessions, err = r.store.QuerySessions(ctx, SessionQuery{})
	default:
		return nil, generic.Invalid("period", "must be week, month or all")
	}
	if err != nil {
		return nil, err
	}

	sum.Totals = totalsOf(sessions)
	byTitle := map[string]int{}
	for _, s := range sessions {
		byTitle[s.Title]++
	}
	for title, n := range byTitle {
		sum.ByTitle = append(sum.ByTitle, TitleCount{Title: title, Count: n})
	}
	sort.Slice(sum.ByTitle, func(i, j int) bool {
		a, b := sum.ByTitle[i], sum.ByTitle[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Title < b.Title
	})
	return sum, nil
}

// -----------------------------------------------------------------------------
// Weekly overview
// -----------------------------------------------------------------------------

// DayTotal is one day of the weekly overview.
type DayTotal struct {
	Date   generic.Date
	Count  int
	Income decimal.Decimal
}

// WeeklyOverview is the current week with a per-day breakdown. Days lists only
// days that have lessons, ascending.
type WeeklyOverview struct {
	Week generic.DateRange
	Totals
	Days []DayTotal
}

func (r *Reporter) WeeklyOverview(ctx context.Context) (*WeeklyOverview, error) {
	week := CurrentWeek(r.now())
	sessions, err := startsWithin(ctx, r.store, week.Window(), nil)
	if err != nil {
		return nil, err
	}

	overview := &WeeklyOverview{Week: week, Totals: totalsOf(sessions)}
	byDay := map[string]*DayTotal{}
	for _, s := range sessions {
		d := generic.DateOf(s.Start)
		row, ok := byDay[d.String()]
		if !ok {
			row = &DayTotal{Date: d, Income: decimal.Zero}
			byDay[d.String()] = row
		}
		row.Count++
		row.Income = row.Income.Add(s.Price)
	}
	for _, row := range byDay {
		overview.Days = append(overview.Days, *row)
	}
	sort.Slice(overview.Days, func(i, j int) bool {
		return overview.Days[i].Date.Before(overview.Days[j].Date)
	})
	return overview, nil
}

// -----------------------------------------------------------------------------
// Per-person reports
// -----------------------------------------------------------------------------

func (r *Reporter) person(ctx context.Context, name string) (*Person, error) {
	if name == "" {
		return nil, generic.Invalid("person_name", "is required")
	}
	p, err := r.store.GetPersonByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &generic.NotFoundError{Kind: "person", Key: name}
	}
	return p, nil
}

// ProgressReport summarizes one person's attendance.
type ProgressReport struct {
	Person Person
	Totals

	// RecentCount counts lessons started in the last RecentDays days.
	RecentCount int

	// LastSession is the latest lesson already started, nil if none.
	LastSession *time.Time
	DaysSince   int
	Activity    string // "active" (<= 7 days), "recent" (<= 30), "inactive", or ""

	// Recent holds up to 5 started lessons, newest first.
	Recent []Session
}

// PersonProgress reports totals and recency for one person.
func (r *Reporter) PersonProgress(ctx context.Context, name string) (*ProgressReport, error) {
	p, err := r.person(ctx, name)
	if err != nil {
		return nil, err
	}
	history, err := r.store.QuerySessions(ctx, SessionQuery{PersonIDs: []int64{p.ID}})
	if err != nil {
		return nil, err
	}

	now := r.now()
	recentFrom := now.AddDate(0, 0, -RecentDays)
	rep := &ProgressReport{Person: *p, Totals: totalsOf(history)}

	for i := len(history) - 1; i >= 0; i-- {
		s := history[i]
		if s.Start.After(now) {
			continue
		}
		if !s.Start.Before(recentFrom) {
			rep.RecentCount++
		}
		if rep.LastSession == nil {
			t := s.Start
			rep.LastSession = &t
			rep.DaysSince = int(now.Sub(t).Hours() / 24)
		}
		if len(rep.Recent) < 5 {
			rep.Recent = append(rep.Recent, s)
		}
	}

	switch {
	case rep.LastSession == nil:
	case rep.DaysSince <= 7:
		rep.Activity = "active"
	case rep.DaysSince <= RecentDays:
		rep.Activity = "recent"
	default:
		rep.Activity = "inactive"
	}
	return rep, nil
}

// PersonFinancial is one person's income, overall and this month.
type PersonFinancial struct {
	Person Person
	Totals
	MonthCount  int
	MonthIncome decimal.Decimal
}

func (r *Reporter) PersonFinancial(ctx context.Context, name string) (*PersonFinancial, error) {
	p, err := r.person(ctx, name)
	if err != nil {
		return nil, err
	}
	history, err := r.store.QuerySessions(ctx, SessionQuery{PersonIDs: []int64{p.ID}})
	if err != nil {
		return nil, err
	}

	now := r.now()
	fin := &PersonFinancial{Person: *p, Totals: totalsOf(history), MonthIncome: decimal.Zero}
	for _, s := range history {
		if s.Start.Year() == now.Year() && s.Start.Month() == now.Month() {
			fin.MonthCount++
			fin.MonthIncome = fin.MonthIncome.Add(s.Price)
		}
	}
	return fin, nil
}

// ScheduledSession is an upcoming lesson with its distance in calendar days.
type ScheduledSession struct {
	Session
	DaysUntil int // 0 = today
}

// PersonSchedule is one person's lessons over the next Days days.
type PersonSchedule struct {
	Person   Person
	Days     int
	Sessions []ScheduledSession
}

// PersonSchedule lists the person's lessons starting within the next days.
func (r *Reporter) PersonSchedule(ctx context.Context, name string, days int) (*PersonSchedule, error) {
	if days <= 0 {
		return nil, generic.Invalid("days", "must be positive")
	}
	p, err := r.person(ctx, name)
	if err != nil {
		return nil, err
	}

	now := r.now()
	horizon := now.AddDate(0, 0, days)
	sessions, err := r.store.QuerySessions(ctx, SessionQuery{
		From:      now,
		To:        horizon.Add(time.Nanosecond),
		PersonIDs: []int64{p.ID},
		Match: func(s Session) bool {
			return !s.Start.Before(now) && !s.Start.After(horizon)
		},
	})
	if err != nil {
		return nil, err
	}

	today := generic.DateOf(now)
	sched := &PersonSchedule{Person: *p, Days: days, Sessions: make([]ScheduledSession, len(sessions))}
	for i, s := range sessions {
		until := int(generic.DateOf(s.Start).Time.Sub(today.Time).Hours() / 24)
		sched.Sessions[i] = ScheduledSession{Session: s, DaysUntil: until}
	}
	return sched, nil
}
