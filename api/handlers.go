/*
handlers.go - HTTP API handlers for the lesson scheduling engine

PURPOSE:
  Exposes the scheduling engine as flat tool-call endpoints. Handles HTTP
  request/response and JSON serialization, and delegates every decision to
  the lessons package.

ENDPOINTS:
  Roster:
    GET    /api/persons                         List persons
    POST   /api/persons                         Create person
    GET    /api/persons/{id}                    Get person
    PUT    /api/persons/{id}                    Replace person fields
    DELETE /api/persons/{id}                    Delete person (and their lessons)
    GET    /api/persons/by-name/{name}/sessions Lesson history
    GET    /api/persons/by-name/{name}/progress Attendance and recency
    GET    /api/persons/by-name/{name}/financial Income for one person
    GET    /api/persons/by-name/{name}/schedule Next N days (days=7)

  Sessions:
    GET    /api/sessions                        Filtered query
    POST   /api/sessions                        Book one lesson
    GET    /api/sessions/{id}                   Get lesson
    PUT    /api/sessions/{id}                   Edit lesson
    DELETE /api/sessions/{id}                   Delete lesson
    POST   /api/sessions/recurring              Create recurring lessons
    POST   /api/sessions/batch-update           Filtered update
    POST   /api/sessions/batch-delete           Filtered delete
    GET    /api/sessions.ics                    iCalendar export

  Planning:
    GET    /api/availability                    Conflict check for a span
    GET    /api/free-slots                      Open windows on a day
    GET    /api/preferences                     Usual weekdays and hours

  Reports:
    GET    /api/reports/financial               Income by period
    GET    /api/reports/upcoming                Lessons in the next N hours
    GET    /api/reports/absent                  Persons without recent lessons
    GET    /api/reports/daily                   One day's schedule
    GET    /api/reports/summary                 Week, month or all totals
    GET    /api/reports/weekly                  This week, per day
    GET    /api/reminders                       Reminder job status

FILTER PARAMETERS (query, export, batch):
  title_pattern | title, person_name | person, date_range=a,b, weekday

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with:
  - 400: Validation errors, malformed input
  - 404: Person or session not found
  - 409: Booking or edit overlaps existing lessons
  - 422: Named person does not exist
  - 500: Storage errors

SEE ALSO:
  - dto.go: Response data structures
  - factory/args.go: Request argument parsing
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/lesson-engine/calendar"
	"github.com/warp/lesson-engine/factory"
	"github.com/warp/lesson-engine/generic"
	"github.com/warp/lesson-engine/lessons"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Scheduler *lessons.Scheduler
	Reporter  *lessons.Reporter
	Logger    *slog.Logger

	// Reminders is optional; nil reports the job as disabled.
	Reminders *ReminderScheduler

	// CalendarName is the X-WR-CALNAME of exported feeds.
	CalendarName string
}

// NewHandler creates a handler around a scheduler.
func NewHandler(s *lessons.Scheduler) *Handler {
	return &Handler{
		Scheduler:    s,
		Reporter:     lessons.NewReporter(s),
		Logger:       s.Logger,
		CalendarName: "Lessons",
	}
}

// =============================================================================
// ROSTER HANDLERS
// =============================================================================

// ListPersons returns the whole roster.
func (h *Handler) ListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.Scheduler.ListPersons(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTOs(persons))
}

// CreatePerson adds a roster entry.
func (h *Handler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req factory.PersonArgs
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Scheduler.CreatePerson(r.Context(), factory.Person(req))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonDTO(p))
}

// GetPerson returns one roster entry.
func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	id, ok := personID(w, r)
	if !ok {
		return
	}
	p, err := h.Scheduler.GetPerson(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(*p))
}

// UpdatePerson replaces the writable fields of a roster entry.
func (h *Handler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := personID(w, r)
	if !ok {
		return
	}
	var req factory.PersonArgs
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Scheduler.UpdatePerson(r.Context(), id, factory.Person(req))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(*p))
}

// DeletePerson removes a roster entry and every lesson they own.
func (h *Handler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := personID(w, r)
	if !ok {
		return
	}
	if err := h.Scheduler.DeletePerson(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PersonSessions returns one person's lessons by name.
func (h *Handler) PersonSessions(w http.ResponseWriter, r *http.Request) {
	name, ok := personName(w, r)
	if !ok {
		return
	}
	sessions, err := h.Scheduler.PersonSessions(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// QuerySessions returns the lessons matching the filter parameters.
func (h *Handler) QuerySessions(w http.ResponseWriter, r *http.Request) {
	spec, err := factory.Filter(filterArgs(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sessions, err := h.Scheduler.Query(r.Context(), spec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// BookSession creates one lesson after a conflict check.
func (h *Handler) BookSession(w http.ResponseWriter, r *http.Request) {
	var req factory.BookingArgs
	if !decode(w, r, &req) {
		return
	}
	draft, err := factory.Booking(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.Scheduler.BookSession(r.Context(), draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(*sess))
}

// GetSession returns one lesson.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Scheduler.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*sess))
}

// UpdateSession edits one lesson.
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var req factory.PatchArgs
	if !decode(w, r, &req) {
		return
	}
	patch, err := factory.Patch(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.Scheduler.UpdateSession(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*sess))
}

// DeleteSession removes one lesson.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Scheduler.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateRecurring expands a weekly plan, skipping conflicting dates.
func (h *Handler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req factory.RecurringArgs
	if !decode(w, r, &req) {
		return
	}
	plan, err := factory.Recurring(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Scheduler.CreateRecurring(r.Context(), plan)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecurringResultDTO(res))
}

// BatchUpdate applies overrides to every matching lesson.
func (h *Handler) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	var req factory.BatchUpdateArgs
	if !decode(w, r, &req) {
		return
	}
	spec, overrides, err := factory.BatchUpdate(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Scheduler.BatchUpdate(r.Context(), spec, overrides)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchUpdateDTO(res))
}

// BatchDelete removes every matching lesson.
func (h *Handler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req factory.FilterArgs
	if !decode(w, r, &req) {
		return
	}
	spec, err := factory.Filter(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Scheduler.BatchDelete(r.Context(), spec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchDeleteDTO{Matched: res.Matched, Deleted: res.Deleted})
}

// ExportICS serves the matching lessons as an iCalendar feed.
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	spec, err := factory.Filter(filterArgs(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sessions, err := h.Scheduler.Query(r.Context(), spec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="lessons.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(calendar.Export(sessions, h.CalendarName, time.Now())))
}

// =============================================================================
// PLANNING HANDLERS
// =============================================================================

// CheckAvailability reports the lessons a span would collide with.
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := factory.DateTime("start", q.Get("start"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := factory.DateTime("end", q.Get("end"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	avail, err := h.Scheduler.CheckAvailability(r.Context(), start, end, q.Get("exclude_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityDTO{Available: avail.Available, Conflicts: toSessionDTOs(avail.Conflicts)})
}

// FreeSlots lists open windows of at least duration minutes.
func (h *Handler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := factory.Date("date", q.Get("date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	duration, err := intParam(q, "duration", 60)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slots, err := h.Scheduler.FindFreeSlots(r.Context(), date, duration, factory.Names(q.Get("names")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFreeSlotsDTO(slots))
}

// Preferences suggests lesson times from a person's history.
func (h *Handler) Preferences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	person := firstOf(q, "person_name", "person")
	if person == "" {
		h.fail(w, r, generic.Invalid("person_name", "is required"))
		return
	}
	prefs, err := h.Scheduler.SuggestTimes(r.Context(), person, generic.SplitList(q.Get("preferred_days")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreferencesDTO(prefs))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// Financial totals income for a year and month (either may be omitted).
func (h *Handler) Financial(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := intParam(q, "year", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	month, err := intParam(q, "month", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rep, err := h.Reporter.Financial(r.Context(), year, month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFinancialDTO(rep))
}

// Upcoming lists lessons starting within the next hours.
func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r.URL.Query(), "hours", 24)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sessions, err := h.Reporter.Upcoming(r.Context(), hours)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// Absent lists persons without a lesson in the last days.
func (h *Handler) Absent(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r.URL.Query(), "days", 30)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.Reporter.Absent(r.Context(), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsentDTOs(rows))
}

// Daily returns one day's schedule, today by default.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	date := generic.DateOf(h.Scheduler.WallNow())
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := factory.Date("date", s)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		date = d
	}
	day, err := h.Reporter.Daily(r.Context(), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DailyDTO{
		Date:     day.Date.String(),
		Sessions: toSessionDTOs(day.Sessions),
		Income:   day.Income,
		Minutes:  day.Minutes,
	})
}

// TeachingSummary totals the current week, month or everything.
func (h *Handler) TeachingSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Reporter.TeachingSummary(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTeachingSummaryDTO(sum))
}

// WeeklyOverview breaks the current week down per day.
func (h *Handler) WeeklyOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.Reporter.WeeklyOverview(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyOverviewDTO(ov))
}

func (h *Handler) PersonProgress(w http.ResponseWriter, r *http.Request) {
	name, ok := personName(w, r)
	if !ok {
		return
	}
	rep, err := h.Reporter.PersonProgress(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressDTO(rep))
}

func (h *Handler) PersonFinancial(w http.ResponseWriter, r *http.Request) {
	name, ok := personName(w, r)
	if !ok {
		return
	}
	fin, err := h.Reporter.PersonFinancial(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PersonFinancialDTO{
		Person:      toPersonDTO(fin.Person),
		TotalsDTO:   toTotalsDTO(fin.Totals),
		MonthCount:  fin.MonthCount,
		MonthIncome: fin.MonthIncome,
	})
}

// PersonSchedule lists one person's lessons in the next days (default 7).
func (h *Handler) PersonSchedule(w http.ResponseWriter, r *http.Request) {
	name, ok := personName(w, r)
	if !ok {
		return
	}
	days, err := intParam(r.URL.Query(), "days", 7)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ps, err := h.Reporter.PersonSchedule(r.Context(), name, days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonScheduleDTO(ps))
}

// ReminderStatus reports the reminder job and its last run.
func (h *Handler) ReminderStatus(w http.ResponseWriter, r *http.Request) {
	if h.Reminders == nil {
		writeJSON(w, http.StatusOK, ReminderStatusDTO{Enabled: false})
		return
	}
	writeJSON(w, http.StatusOK, h.Reminders.Status())
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps an engine error onto its HTTP status.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *generic.ValidationError
		re *generic.ReferenceError
		ce *generic.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   err.Error(),
			Code:    "validation",
			Details: map[string]string{"field": ve.Field},
		})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   err.Error(),
			Code:    "conflict",
			Details: toIntervalDTOs(ce.Conflicts),
		})
	case errors.As(err, &re):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "reference"})
	case generic.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	default:
		h.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func personID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid person id", err)
		return 0, false
	}
	return id, true
}

func personName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid person name", err)
		return "", false
	}
	return name, true
}

func intParam(q url.Values, key string, def int) (int, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, generic.Invalid(key, "must be an integer")
	}
	return n, nil
}

func firstOf(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func filterArgs(q url.Values) factory.FilterArgs {
	return factory.FilterArgs{
		TitlePattern: firstOf(q, "title_pattern", "title"),
		PersonName:   firstOf(q, "person_name", "person"),
		DateRange:    q.Get("date_range"),
		Weekday:      q.Get("weekday"),
	}
}
