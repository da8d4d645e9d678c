/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures returned to clients. Request bodies are the
  flat argument shapes in factory/args.go; responses are defined here so the
  engine types never leak their Go field names onto the wire.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - to*DTO: Converters from engine values

TIME FORMATS:
  Date-times are written as 2026-02-02T15:00:00 (no zone), dates as
  2026-02-02. Money is a decimal string ("200.5").

SEE ALSO:
  - handlers.go: Uses these types
  - factory/args.go: Request argument shapes
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lesson-engine/generic"
	"github.com/warp/lesson-engine/lessons"
)

// =============================================================================
// ROSTER
// =============================================================================

// PersonDTO represents a roster entry in API responses.
type PersonDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Grade         string `json:"grade"`
	Phone         string `json:"phone"`
	ParentContact string `json:"parent_contact"`
	Progress      int    `json:"progress"`
	Notes         string `json:"notes"`
	CreatedAt     string `json:"created_at,omitempty"`
}

func toPersonDTO(p lessons.Person) PersonDTO {
	dto := PersonDTO{
		ID:            p.ID,
		Name:          p.Name,
		Grade:         p.Grade,
		Phone:         p.Phone,
		ParentContact: p.ParentContact,
		Progress:      p.Progress,
		Notes:         p.Notes,
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toPersonDTOs(persons []lessons.Person) []PersonDTO {
	dtos := make([]PersonDTO, len(persons))
	for i, p := range persons {
		dtos[i] = toPersonDTO(p)
	}
	return dtos
}

// =============================================================================
// SESSIONS
// =============================================================================

// SessionDTO represents one lesson in API responses.
type SessionDTO struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	StartTime   string          `json:"start_time"`
	EndTime     string          `json:"end_time"`
	PersonID    int64           `json:"person_id"`
	PersonName  string          `json:"person_name"`
	PersonGrade string          `json:"person_grade,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Location    string          `json:"location,omitempty"`
	Description string          `json:"description,omitempty"`
	Color       string          `json:"color"`
}

func toSessionDTO(s lessons.Session) SessionDTO {
	return SessionDTO{
		ID:          s.ID,
		Title:       s.Title,
		StartTime:   s.Start.Format(generic.DateTimeLayout),
		EndTime:     s.End.Format(generic.DateTimeLayout),
		PersonID:    s.PersonID,
		PersonName:  s.PersonName,
		PersonGrade: s.PersonGrade,
		Price:       s.Price,
		Location:    s.Location,
		Description: s.Description,
		Color:       s.Color,
	}
}

func toSessionDTOs(sessions []lessons.Session) []SessionDTO {
	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toSessionDTO(s)
	}
	return dtos
}

// IntervalDTO is a bare time span, used to list conflicts.
type IntervalDTO struct {
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func toIntervalDTOs(ivs []generic.Interval) []IntervalDTO {
	dtos := make([]IntervalDTO, len(ivs))
	for i, iv := range ivs {
		dtos[i] = IntervalDTO{
			ID:        iv.ID,
			StartTime: iv.Start.Format(generic.DateTimeLayout),
			EndTime:   iv.End.Format(generic.DateTimeLayout),
		}
	}
	return dtos
}

// AvailabilityDTO answers an availability check.
type AvailabilityDTO struct {
	Available bool         `json:"available"`
	Conflicts []SessionDTO `json:"conflicts"`
}

// RecurringResultDTO reports a recurring creation.
type RecurringResultDTO struct {
	PersonID       int64           `json:"person_id"`
	PersonName     string          `json:"person_name"`
	PersonCreated  bool            `json:"person_created"`
	PersonGrade    string          `json:"person_grade,omitempty"`
	CreatedCount   int             `json:"created_count"`
	SkippedDates   []string        `json:"skipped_dates"`
	CreatedByMonth map[string]int  `json:"created_by_month"`
	ExpectedIncome decimal.Decimal `json:"expected_income"`
	Sessions       []SessionDTO    `json:"sessions"`
}

func toRecurringResultDTO(r *lessons.RecurringResult) RecurringResultDTO {
	dto := RecurringResultDTO{
		PersonID:       r.PersonID,
		PersonName:     r.PersonName,
		PersonCreated:  r.PersonCreated,
		PersonGrade:    r.PersonGrade,
		CreatedCount:   r.CreatedCount,
		SkippedDates:   r.SkippedDates,
		CreatedByMonth: r.CreatedByMonth,
		ExpectedIncome: r.ExpectedIncome,
		Sessions:       toSessionDTOs(r.Created),
	}
	if dto.SkippedDates == nil {
		dto.SkippedDates = []string{}
	}
	if dto.CreatedByMonth == nil {
		dto.CreatedByMonth = map[string]int{}
	}
	return dto
}

// BatchUpdateDTO reports a batch update. Updated <= Matched.
type BatchUpdateDTO struct {
	Matched  int          `json:"matched"`
	Updated  int          `json:"updated"`
	Overlaps []OverlapDTO `json:"overlaps,omitempty"`
}

// OverlapDTO is a retimed lesson and the lessons it now collides with.
type OverlapDTO struct {
	Session IntervalDTO   `json:"session"`
	With    []IntervalDTO `json:"with"`
}

func toBatchUpdateDTO(r *lessons.UpdateResult) BatchUpdateDTO {
	dto := BatchUpdateDTO{Matched: r.Matched, Updated: r.Updated}
	for _, o := range r.Overlaps {
		dto.Overlaps = append(dto.Overlaps, OverlapDTO{
			Session: toIntervalDTOs([]generic.Interval{o.Session})[0],
			With:    toIntervalDTOs(o.With),
		})
	}
	return dto
}

// BatchDeleteDTO reports a batch delete.
type BatchDeleteDTO struct {
	Matched int `json:"matched"`
	Deleted int `json:"deleted"`
}

// =============================================================================
// FREE SLOTS / PREFERENCES
// =============================================================================

// FreeSlotDTO is one open window.
type FreeSlotDTO struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Minutes   int    `json:"minutes"`
}

// FreeSlotsDTO answers a free-slot search.
type FreeSlotsDTO struct {
	Date         string        `json:"date"`
	Slots        []FreeSlotDTO `json:"slots"`
	UnknownNames []string      `json:"unknown_names,omitempty"`
}

func toFreeSlotsDTO(fs *lessons.FreeSlots) FreeSlotsDTO {
	dto := FreeSlotsDTO{
		Date:         fs.Date.String(),
		Slots:        make([]FreeSlotDTO, len(fs.Slots)),
		UnknownNames: fs.UnknownNames,
	}
	for i, s := range fs.Slots {
		dto.Slots[i] = FreeSlotDTO{
			StartTime: s.Start.Format(generic.ClockLayout),
			EndTime:   s.End.Format(generic.ClockLayout),
			Minutes:   s.Minutes,
		}
	}
	return dto
}

// WeekdayCountDTO is one ranked weekday.
type WeekdayCountDTO struct {
	Weekday int    `json:"weekday"` // Monday = 0
	Name    string `json:"name"`
	Count   int    `json:"count"`
}

// HourCountDTO is one ranked start hour.
type HourCountDTO struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// PreferencesDTO answers a time-preference request.
type PreferencesDTO struct {
	PersonName       string            `json:"person_name"`
	SessionCount     int               `json:"session_count"`
	Insufficient     bool              `json:"insufficient"`
	TopWeekdays      []WeekdayCountDTO `json:"top_weekdays"`
	TopHours         []HourCountDTO    `json:"top_hours"`
	Suggestions      []string          `json:"suggestions"`
	FallbackWeekdays []string          `json:"fallback_weekdays,omitempty"`
}

func toPreferencesDTO(p *lessons.Preferences) PreferencesDTO {
	dto := PreferencesDTO{
		PersonName:   p.PersonName,
		SessionCount: p.SessionCount,
		Insufficient: p.Insufficient,
		TopWeekdays:  make([]WeekdayCountDTO, len(p.TopWeekdays)),
		TopHours:     make([]HourCountDTO, len(p.TopHours)),
		Suggestions:  make([]string, len(p.Suggestions)),
	}
	for i, c := range p.TopWeekdays {
		dto.TopWeekdays[i] = WeekdayCountDTO{Weekday: c.Key, Name: generic.ChineseWeekdayNames[c.Key], Count: c.Count}
	}
	for i, c := range p.TopHours {
		dto.TopHours[i] = HourCountDTO{Hour: c.Key, Count: c.Count}
	}
	for i, s := range p.Suggestions {
		dto.Suggestions[i] = s.String()
	}
	for _, wd := range p.FallbackWeekdays {
		dto.FallbackWeekdays = append(dto.FallbackWeekdays, generic.ChineseWeekdayNames[wd])
	}
	return dto
}

// =============================================================================
// REPORTS
// =============================================================================

// PersonIncomeDTO is one row of a financial breakdown.
type PersonIncomeDTO struct {
	PersonName string          `json:"person_name"`
	Income     decimal.Decimal `json:"income"`
	Count      int             `json:"count"`
}

// FinancialDTO is the financial report.
type FinancialDTO struct {
	Year         int               `json:"year,omitempty"`
	Month        int               `json:"month,omitempty"`
	TotalIncome  decimal.Decimal   `json:"total_income"`
	SessionCount int               `json:"session_count"`
	AveragePrice decimal.Decimal   `json:"average_price"`
	ByPerson     []PersonIncomeDTO `json:"by_person"`
}

func toFinancialDTO(r *lessons.FinancialReport) FinancialDTO {
	dto := FinancialDTO{
		Year:         r.Year,
		Month:        r.Month,
		TotalIncome:  r.TotalIncome,
		SessionCount: r.SessionCount,
		AveragePrice: r.AveragePrice,
		ByPerson:     make([]PersonIncomeDTO, len(r.ByPerson)),
	}
	for i, row := range r.ByPerson {
		dto.ByPerson[i] = PersonIncomeDTO{PersonName: row.PersonName, Income: row.Income, Count: row.Count}
	}
	return dto
}

// AbsentDTO is one person without recent lessons.
type AbsentDTO struct {
	Person      PersonDTO `json:"person"`
	LastSession string    `json:"last_session,omitempty"`
	DaysSince   *int      `json:"days_since,omitempty"` // nil when never scheduled
}

func toAbsentDTOs(rows []lessons.AbsentPerson) []AbsentDTO {
	dtos := make([]AbsentDTO, len(rows))
	for i, a := range rows {
		dtos[i] = AbsentDTO{Person: toPersonDTO(a.Person)}
		if a.LastSession != nil {
			days := a.DaysSince
			dtos[i].LastSession = a.LastSession.Format(generic.DateTimeLayout)
			dtos[i].DaysSince = &days
		}
	}
	return dtos
}

// DailyDTO is one day's schedule.
type DailyDTO struct {
	Date     string          `json:"date"`
	Sessions []SessionDTO    `json:"sessions"`
	Income   decimal.Decimal `json:"income"`
	Minutes  int             `json:"minutes"`
}

// TotalsDTO is the shared aggregate block of the summary reports.
type TotalsDTO struct {
	SessionCount int             `json:"session_count"`
	Minutes      int             `json:"minutes"`
	Hours        decimal.Decimal `json:"hours"`
	PersonCount  int             `json:"person_count"`
	Income       decimal.Decimal `json:"income"`
	HourlyRate   decimal.Decimal `json:"hourly_rate"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

func toTotalsDTO(t lessons.Totals) TotalsDTO {
	return TotalsDTO{
		SessionCount: t.SessionCount,
		Minutes:      t.Minutes,
		Hours:        t.Hours(),
		PersonCount:  t.PersonCount,
		Income:       t.Income,
		HourlyRate:   t.HourlyRate(),
		AveragePrice: t.AveragePrice(),
	}
}

// TitleCountDTO is one row of the per-title distribution.
type TitleCountDTO struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

// TeachingSummaryDTO is the week/month/all summary.
type TeachingSummaryDTO struct {
	Period string `json:"period"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	TotalsDTO
	ByTitle []TitleCountDTO `json:"by_title"`
}

func toTeachingSummaryDTO(s *lessons.TeachingSummary) TeachingSummaryDTO {
	dto := TeachingSummaryDTO{
		Period:    s.Period,
		TotalsDTO: toTotalsDTO(s.Totals),
		ByTitle:   make([]TitleCountDTO, len(s.ByTitle)),
	}
	if s.Range != nil {
		dto.From, dto.To = s.Range.Start.String(), s.Range.End.String()
	}
	for i, tc := range s.ByTitle {
		dto.ByTitle[i] = TitleCountDTO{Title: tc.Title, Count: tc.Count}
	}
	return dto
}

// DayTotalDTO is one day of the weekly overview.
type DayTotalDTO struct {
	Date    string          `json:"date"`
	Weekday string          `json:"weekday"`
	Count   int             `json:"count"`
	Income  decimal.Decimal `json:"income"`
}

// WeeklyOverviewDTO is the current week with a per-day breakdown.
type WeeklyOverviewDTO struct {
	From string `json:"from"`
	To   string `json:"to"`
	TotalsDTO
	Days []DayTotalDTO `json:"days"`
}

func toWeeklyOverviewDTO(ov *lessons.WeeklyOverview) WeeklyOverviewDTO {
	dto := WeeklyOverviewDTO{
		From:      ov.Week.Start.String(),
		To:        ov.Week.End.String(),
		TotalsDTO: toTotalsDTO(ov.Totals),
		Days:      make([]DayTotalDTO, len(ov.Days)),
	}
	for i, d := range ov.Days {
		dto.Days[i] = DayTotalDTO{
			Date:    d.Date.String(),
			Weekday: generic.ChineseWeekdayNames[d.Date.Weekday()],
			Count:   d.Count,
			Income:  d.Income,
		}
	}
	return dto
}

// ProgressDTO is one person's attendance report.
type ProgressDTO struct {
	Person PersonDTO `json:"person"`
	TotalsDTO
	RecentCount int          `json:"recent_count"`
	LastSession string       `json:"last_session,omitempty"`
	DaysSince   *int         `json:"days_since,omitempty"` // nil when never taught
	Activity    string       `json:"activity,omitempty"`
	Recent      []SessionDTO `json:"recent"`
}

func toProgressDTO(p *lessons.ProgressReport) ProgressDTO {
	dto := ProgressDTO{
		Person:      toPersonDTO(p.Person),
		TotalsDTO:   toTotalsDTO(p.Totals),
		RecentCount: p.RecentCount,
		Activity:    p.Activity,
		Recent:      toSessionDTOs(p.Recent),
	}
	if p.LastSession != nil {
		days := p.DaysSince
		dto.LastSession = p.LastSession.Format(generic.DateTimeLayout)
		dto.DaysSince = &days
	}
	return dto
}

// PersonFinancialDTO is one person's income, overall and this month.
type PersonFinancialDTO struct {
	Person PersonDTO `json:"person"`
	TotalsDTO
	MonthCount  int             `json:"month_count"`
	MonthIncome decimal.Decimal `json:"month_income"`
}

// ScheduledSessionDTO is an upcoming lesson with its distance in days.
type ScheduledSessionDTO struct {
	SessionDTO
	DaysUntil int `json:"days_until"`
}

// PersonScheduleDTO is one person's next lessons.
type PersonScheduleDTO struct {
	Person   PersonDTO             `json:"person"`
	Days     int                   `json:"days"`
	Sessions []ScheduledSessionDTO `json:"sessions"`
}

func toPersonScheduleDTO(ps *lessons.PersonSchedule) PersonScheduleDTO {
	dto := PersonScheduleDTO{
		Person:   toPersonDTO(ps.Person),
		Days:     ps.Days,
		Sessions: make([]ScheduledSessionDTO, len(ps.Sessions)),
	}
	for i, s := range ps.Sessions {
		dto.Sessions[i] = ScheduledSessionDTO{SessionDTO: toSessionDTO(s.Session), DaysUntil: s.DaysUntil}
	}
	return dto
}

// ReminderStatusDTO describes the reminder job.
type ReminderStatusDTO struct {
	Enabled      bool   `json:"enabled"`
	Cron         string `json:"cron,omitempty"`
	HorizonHours int    `json:"horizon_hours,omitempty"`
	LastRunAt    string `json:"last_run_at,omitempty"`
	LastCount    int    `json:"last_count"`
	LastError    string `json:"last_error,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
