/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Error mapping (400 / 404 / 409 / 422)
- Recurring create and re-run through the wire format
- Batch update/delete counts
- Free slots, preferences, reports and the calendar feed
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lesson-engine/config"
	"github.com/warp/lesson-engine/lessons"
	"github.com/warp/lesson-engine/lessons/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	t       *testing.T
	handler http.Handler
	sched   *lessons.Scheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := lessons.NewScheduler(store.NewTxMemory(), logger)
	sched.Now = func() time.Time { return time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC) }
	return &testServer{t: t, handler: NewRouter(NewHandler(sched), nil), sched: sched}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) person(name string) PersonDTO {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/persons", map[string]any{"name": name, "grade": "G5"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[PersonDTO](s.t, rec)
}

func (s *testServer) book(name, start, end string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.do(http.MethodPost, "/api/sessions", map[string]any{
		"title": "Maths", "person_name": name,
		"start_time": start, "end_time": end, "price": 200,
	})
}

var recurringPlan = map[string]any{
	"title":       "Maths",
	"person_name": "Ann",
	"start_date":  "2026-02-02",
	"end_date":    "2026-02-15",
	"weekdays":    "周一,周三",
	"start_time":  "15:00",
	"end_time":    "16:00",
	"price":       200,
	"grade":       "G5",
}

// =============================================================================
// ROSTER
// =============================================================================

func TestPersons_CRUD(t *testing.T) {
	s := newTestServer(t)
	ann := s.person("Ann")

	rec := s.do(http.MethodGet, "/api/persons", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]PersonDTO](t, rec), 1)

	rec = s.do(http.MethodPut, "/api/persons/"+itoa(ann.ID), map[string]any{"name": "Ann", "grade": "G6", "progress": 30})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "G6", decodeBody[PersonDTO](t, rec).Grade)

	rec = s.do(http.MethodPost, "/api/persons", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/persons/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/api/persons/"+itoa(ann.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/persons/"+itoa(ann.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, rec).Code)
}

func TestPersonSessions_EscapedName(t *testing.T) {
	s := newTestServer(t)
	s.person("小明")
	require.Equal(t, http.StatusCreated, s.book("小明", "2026-02-02T15:00", "2026-02-02T16:00").Code)

	rec := s.do(http.MethodGet, "/api/persons/by-name/"+url.PathEscape("小明")+"/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[[]SessionDTO](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "小明", got[0].PersonName)
}

// =============================================================================
// BOOKING AND ERROR MAPPING
// =============================================================================

func TestBookSession_ErrorMapping(t *testing.T) {
	// GIVEN: Ann has a lesson 15:00-16:00
	// WHEN: Booking overlapping, unknown-person and malformed requests
	// THEN: 409 with the conflict listed, 422, 400

	s := newTestServer(t)
	s.person("Ann")
	s.person("Bob")
	rec := s.book("Ann", "2026-02-02T15:00", "2026-02-02T16:00")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody[SessionDTO](t, rec)
	assert.Equal(t, "2026-02-02T15:00:00", first.StartTime)
	assert.Equal(t, lessons.DefaultColor, first.Color)

	rec = s.book("Bob", "2026-02-02T15:30", "2026-02-02T16:30")
	assert.Equal(t, http.StatusConflict, rec.Code)
	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "conflict", errResp.Code)
	conflicts, ok := errResp.Details.([]any)
	require.True(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, first.ID, conflicts[0].(map[string]any)["id"])

	rec = s.book("Nobody", "2026-02-03T15:00", "2026-02-03T16:00")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.book("Bob", "tomorrow", "2026-02-03T16:00")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"field": "start_time"}, decodeBody[ErrorResponse](t, rec).Details)

	rec = s.do(http.MethodPost, "/api/sessions", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Touching the end of Ann's lesson is fine.
	rec = s.book("Bob", "2026-02-02T16:00", "2026-02-02T17:00")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSession_EditAndDelete(t *testing.T) {
	s := newTestServer(t)
	s.person("Ann")
	sess := decodeBody[SessionDTO](t, s.book("Ann", "2026-02-02T15:00", "2026-02-02T16:00"))

	rec := s.do(http.MethodPut, "/api/sessions/"+sess.ID, map[string]any{"location": "Library", "price": "250"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[SessionDTO](t, rec)
	assert.Equal(t, "Library", updated.Location)
	assert.Equal(t, "250", updated.Price.String())

	rec = s.do(http.MethodDelete, "/api/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/api/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckAvailability(t *testing.T) {
	s := newTestServer(t)
	s.person("Ann")
	sess := decodeBody[SessionDTO](t, s.book("Ann", "2026-02-02T15:00", "2026-02-02T16:00"))

	rec := s.do(http.MethodGet, "/api/availability?start=2026-02-02T15:30&end=2026-02-02T16:30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decodeBody[AvailabilityDTO](t, rec)
	assert.False(t, avail.Available)
	require.Len(t, avail.Conflicts, 1)

	rec = s.do(http.MethodGet, "/api/availability?start=2026-02-02T15:30&end=2026-02-02T16:30&exclude_id="+sess.ID, nil)
	assert.True(t, decodeBody[AvailabilityDTO](t, rec).Available)

	rec = s.do(http.MethodGet, "/api/availability?start=2026-02-02T15:30", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// RECURRING AND BATCH
// =============================================================================

func TestCreateRecurring_RerunSkipsAll(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/sessions/recurring", recurringPlan)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody[RecurringResultDTO](t, rec)
	assert.Equal(t, 4, first.CreatedCount)
	assert.Empty(t, first.SkippedDates)
	assert.True(t, first.PersonCreated)
	assert.Equal(t, "800", first.ExpectedIncome.String())

	rec = s.do(http.MethodPost, "/api/sessions/recurring", recurringPlan)
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decodeBody[RecurringResultDTO](t, rec)
	assert.Equal(t, 0, second.CreatedCount)
	assert.Len(t, second.SkippedDates, 4)
	assert.False(t, second.PersonCreated)

	bad := map[string]any{}
	for k, v := range recurringPlan {
		bad[k] = v
	}
	bad["weekdays"] = "someday"
	rec = s.do(http.MethodPost, "/api/sessions/recurring", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions/recurring", recurringPlan).Code)

	// Same price as stored: matched but not updated.
	rec := s.do(http.MethodPost, "/api/sessions/batch-update", map[string]any{"person_name": "Ann", "new_price": 200})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, BatchUpdateDTO{Matched: 4, Updated: 0}, decodeBody[BatchUpdateDTO](t, rec))

	rec = s.do(http.MethodPost, "/api/sessions/batch-update", map[string]any{"weekday": "周三", "new_time": "17:00,18:00"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, BatchUpdateDTO{Matched: 2, Updated: 2}, decodeBody[BatchUpdateDTO](t, rec))

	rec = s.do(http.MethodGet, "/api/sessions?weekday=wednesday", nil)
	for _, sess := range decodeBody[[]SessionDTO](t, rec) {
		assert.True(t, strings.HasSuffix(sess.StartTime, "T17:00:00"), sess.StartTime)
	}

	rec = s.do(http.MethodPost, "/api/sessions/batch-delete", map[string]any{"title_pattern": "Chemistry"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, BatchDeleteDTO{}, decodeBody[BatchDeleteDTO](t, rec))

	rec = s.do(http.MethodPost, "/api/sessions/batch-delete", map[string]any{"date_range": "2026-02-01,2026-02-08"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, BatchDeleteDTO{Matched: 2, Deleted: 2}, decodeBody[BatchDeleteDTO](t, rec))

	rec = s.do(http.MethodPost, "/api/sessions/batch-delete", map[string]any{"date_range": "2026-02-08,2026-02-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchUpdate_ReportsRetimeOverlaps(t *testing.T) {
	s := newTestServer(t)
	s.person("Ann")
	s.person("Bob")
	require.Equal(t, http.StatusCreated, s.book("Ann", "2026-02-07T09:00", "2026-02-07T10:00").Code)
	bob := decodeBody[SessionDTO](t, s.book("Bob", "2026-02-07T10:30", "2026-02-07T11:30"))

	rec := s.do(http.MethodPost, "/api/sessions/batch-update", map[string]any{"person_name": "Ann", "new_time": "10:00,11:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[BatchUpdateDTO](t, rec)
	assert.Equal(t, 1, got.Updated)
	require.Len(t, got.Overlaps, 1)
	assert.Equal(t, "2026-02-07T10:00:00", got.Overlaps[0].Session.StartTime)
	require.Len(t, got.Overlaps[0].With, 1)
	assert.Equal(t, bob.ID, got.Overlaps[0].With[0].ID)
}

// =============================================================================
// PLANNING
// =============================================================================

func TestFreeSlots(t *testing.T) {
	s := newTestServer(t)
	s.person("Ann")
	s.person("Bob")
	require.Equal(t, http.StatusCreated, s.book("Ann", "2026-02-02T10:00", "2026-02-02T11:00").Code)
	require.Equal(t, http.StatusCreated, s.book("Bob", "2026-02-02T14:00", "2026-02-02T15:00").Code)

	rec := s.do(http.MethodGet, "/api/free-slots?date=2026-02-02&duration=30&names="+url.QueryEscape("Ann,Bob,Ghost"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[FreeSlotsDTO](t, rec)
	assert.Equal(t, []FreeSlotDTO{
		{StartTime: "08:00", EndTime: "10:00", Minutes: 120},
		{StartTime: "11:00", EndTime: "14:00", Minutes: 180},
		{StartTime: "15:00", EndTime: "22:00", Minutes: 420},
	}, got.Slots)
	assert.Equal(t, []string{"Ghost"}, got.UnknownNames)

	rec = s.do(http.MethodGet, "/api/free-slots?date=2026-02-02&duration=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferences(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/preferences?person_name=Ann", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions/recurring", recurringPlan).Code)
	rec = s.do(http.MethodGet, "/api/preferences?person_name=Ann", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prefs := decodeBody[PreferencesDTO](t, rec)
	assert.False(t, prefs.Insufficient)
	assert.Equal(t, 4, prefs.SessionCount)
	assert.Equal(t, []string{"周一 15:00", "周三 15:00"}, prefs.Suggestions)

	rec = s.do(http.MethodGet, "/api/preferences?person_name=Ann&preferred_days="+url.QueryEscape("周五"), nil)
	prefs = decodeBody[PreferencesDTO](t, rec)
	assert.Empty(t, prefs.Suggestions)
	assert.Equal(t, []string{"周一", "周三"}, prefs.FallbackWeekdays)

	rec = s.do(http.MethodGet, "/api/preferences", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REPORTS AND EXPORT
// =============================================================================

func TestReports(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions/recurring", recurringPlan).Code)

	rec := s.do(http.MethodGet, "/api/reports/financial?year=2026&month=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fin := decodeBody[FinancialDTO](t, rec)
	assert.Equal(t, 4, fin.SessionCount)
	assert.Equal(t, "800", fin.TotalIncome.String())

	rec = s.do(http.MethodGet, "/api/reports/financial?month=13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Now is Feb 1 12:00; the first lesson is Feb 2 15:00.
	rec = s.do(http.MethodGet, "/api/reports/upcoming?hours=48", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]SessionDTO](t, rec), 1)

	rec = s.do(http.MethodGet, "/api/reports/daily?date=2026-02-04", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	day := decodeBody[DailyDTO](t, rec)
	assert.Len(t, day.Sessions, 1)
	assert.Equal(t, 60, day.Minutes)

	s.person("Idle")
	rec = s.do(http.MethodGet, "/api/reports/absent?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	absent := decodeBody[[]AbsentDTO](t, rec)
	require.Len(t, absent, 1)
	assert.Equal(t, "Idle", absent[0].Person.Name)
	assert.Nil(t, absent[0].DaysSince)
}

func TestSummaryReports(t *testing.T) {
	// GIVEN: Ann on Mon+Wed Feb 2..15; now is Sunday Feb 1 12:00
	// WHEN: Asking for the summaries
	// THEN: "This week" is Feb 2..8 with Ann's two lessons

	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions/recurring", recurringPlan).Code)

	rec := s.do(http.MethodGet, "/api/reports/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decodeBody[TeachingSummaryDTO](t, rec)
	assert.Equal(t, "week", sum.Period)
	assert.Equal(t, "2026-02-02", sum.From)
	assert.Equal(t, 2, sum.SessionCount)
	assert.Equal(t, 120, sum.Minutes)
	assert.Equal(t, "200", sum.HourlyRate.String())
	assert.Equal(t, []TitleCountDTO{{Title: "Maths", Count: 2}}, sum.ByTitle)

	rec = s.do(http.MethodGet, "/api/reports/summary?period=year", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/reports/weekly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ov := decodeBody[WeeklyOverviewDTO](t, rec)
	require.Len(t, ov.Days, 2)
	assert.Equal(t, "周三", ov.Days[1].Weekday)
}

func TestPersonReports(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions/recurring", recurringPlan).Code)

	rec := s.do(http.MethodGet, "/api/persons/by-name/Ann/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	prog := decodeBody[ProgressDTO](t, rec)
	assert.Equal(t, 4, prog.SessionCount)
	assert.Nil(t, prog.DaysSince)
	assert.Empty(t, prog.Recent)

	rec = s.do(http.MethodGet, "/api/persons/by-name/Ann/financial", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fin := decodeBody[PersonFinancialDTO](t, rec)
	assert.Equal(t, "800", fin.Income.String())
	assert.Equal(t, 4, fin.MonthCount)

	rec = s.do(http.MethodGet, "/api/persons/by-name/Ann/schedule?days=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sched := decodeBody[PersonScheduleDTO](t, rec)
	require.Len(t, sched.Sessions, 1)
	assert.Equal(t, 1, sched.Sessions[0].DaysUntil)
	assert.Equal(t, "2026-02-02T15:00:00", sched.Sessions[0].StartTime)

	rec = s.do(http.MethodGet, "/api/persons/by-name/Nobody/progress", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportICS(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions/recurring", recurringPlan).Code)

	rec := s.do(http.MethodGet, "/api/sessions.ics?weekday=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "DTSTART:20260202T150000")
}

// =============================================================================
// REMINDERS
// =============================================================================

func TestReminderScheduler_RunOnceAndStatus(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions/recurring", recurringPlan).Code)

	var logs bytes.Buffer
	rs := NewReminderScheduler(lessons.NewReporter(s.sched), slog.New(slog.NewJSONHandler(&logs, nil)),
		config.RemindersConfig{Enabled: true, Cron: "0 * * * *", HorizonHours: 80})

	got, err := rs.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2, "Feb 2 and Feb 4 fall within 80h of Feb 1 12:00")
	assert.Equal(t, 2, strings.Count(logs.String(), "upcoming lesson"))

	status := rs.Status()
	assert.True(t, status.Enabled)
	assert.Equal(t, 2, status.LastCount)
	assert.NotEmpty(t, status.LastRunAt)

	require.NoError(t, rs.Start())
	rs.Stop()

	bad := NewReminderScheduler(lessons.NewReporter(s.sched), nil, config.RemindersConfig{Enabled: true, Cron: "nope"})
	assert.Error(t, bad.Start())

	off := NewReminderScheduler(lessons.NewReporter(s.sched), nil, config.RemindersConfig{})
	assert.NoError(t, off.Start())
	off.Stop()
}

func TestReminderStatus_Disabled(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/reminders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[ReminderStatusDTO](t, rec).Enabled)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
