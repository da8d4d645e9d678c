package lessons_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lesson-engine/generic"
	"github.com/warp/lesson-engine/lessons"
	"github.com/warp/lesson-engine/lessons/store"
)

// seedTerm fills the timeline used by the summary tests. Now is Sunday
// Feb 1 12:00, so "this week" is Feb 2..Feb 8.
//
//	Ann: Dec 1 and Jan 20 (past), Feb 2, Feb 4, Feb 9 (Maths, 200, 60 min)
//	Bob: Feb 4 17:00-18:30 (Piano, 300)
func seedTerm(t *testing.T, mem *store.TxMemory) {
	t.Helper()
	ann := mustPerson(t, mem, "Ann")
	bob := mustPerson(t, mem, "Bob")

	dec1 := time.Date(2025, time.December, 1, 10, 0, 0, 0, time.UTC)
	jan20 := time.Date(2026, time.January, 20, 10, 0, 0, 0, time.UTC)
	seed(t, mem, "a-dec", ann, dec1, dec1.Add(time.Hour))
	seed(t, mem, "a-jan", ann, jan20, jan20.Add(time.Hour))
	seed(t, mem, "a1", ann, feb(2, 15), feb(2, 16))
	seed(t, mem, "a2", ann, feb(4, 15), feb(4, 16))
	seed(t, mem, "a3", ann, feb(9, 15), feb(9, 16))

	piano := seed(t, mem, "b1", bob, feb(4, 17), febAt(4, 18, 30))
	piano.Title = "Piano"
	piano.Price = decimal.NewFromInt(300)
	_, err := mem.UpdateSessions(context.Background(), []lessons.Session{piano})
	require.NoError(t, err)
}

// =============================================================================
// WEEK BOUNDARIES
// =============================================================================

func TestCurrentWeek_SundayRollsForward(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		start int
	}{
		{"monday", feb(2, 9), 2},
		{"wednesday", feb(4, 23), 2},
		{"saturday", feb(7, 12), 2},
		{"sunday", feb(8, 12), 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			week := lessons.CurrentWeek(tt.now)
			assert.Equal(t, generic.NewDate(2026, time.February, tt.start), week.Start)
			assert.Equal(t, generic.NewDate(2026, time.February, tt.start+6), week.End)
		})
	}
}

// =============================================================================
// TEACHING SUMMARY
// =============================================================================

func TestTeachingSummary_Week(t *testing.T) {
	// GIVEN: Ann twice and Bob once in the week of Feb 2
	// WHEN: Summarizing the week
	// THEN: 3 lessons, 210 minutes, 2 persons, 700 income, 200/hour

	sched, mem := newTestScheduler(t)
	seedTerm(t, mem)

	sum, err := lessons.NewReporter(sched).TeachingSummary(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, lessons.PeriodWeek, sum.Period)
	require.NotNil(t, sum.Range)
	assert.Equal(t, "2026-02-02", sum.Range.Start.String())
	assert.Equal(t, 3, sum.SessionCount)
	assert.Equal(t, 210, sum.Minutes)
	assert.Equal(t, 2, sum.PersonCount)
	assert.True(t, decimal.NewFromInt(700).Equal(sum.Income))
	assert.Equal(t, "3.5", sum.Hours().String())
	assert.Equal(t, "200", sum.HourlyRate().String())
	assert.Equal(t, []lessons.TitleCount{{Title: "Maths", Count: 2}, {Title: "Piano", Count: 1}}, sum.ByTitle)
}

func TestTeachingSummary_MonthAllAndInvalid(t *testing.T) {
	sched, mem := newTestScheduler(t)
	seedTerm(t, mem)
	rep := lessons.NewReporter(sched)
	ctx := context.Background()

	month, err := rep.TeachingSummary(ctx, lessons.PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, 4, month.SessionCount)
	assert.Equal(t, "2026-02-28", month.Range.End.String())

	all, err := rep.TeachingSummary(ctx, lessons.PeriodAll)
	require.NoError(t, err)
	assert.Equal(t, 6, all.SessionCount)
	assert.Nil(t, all.Range)

	_, err = rep.TeachingSummary(ctx, "year")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestTeachingSummary_EmptyHasZeroRate(t *testing.T) {
	sched, _ := newTestScheduler(t)
	sum, err := lessons.NewReporter(sched).TeachingSummary(context.Background(), lessons.PeriodWeek)
	require.NoError(t, err)
	assert.Zero(t, sum.SessionCount)
	assert.True(t, sum.HourlyRate().IsZero())
	assert.Empty(t, sum.ByTitle)
}

// =============================================================================
// WEEKLY OVERVIEW
// =============================================================================

func TestWeeklyOverview_PerDay(t *testing.T) {
	sched, mem := newTestScheduler(t)
	seedTerm(t, mem)

	ov, err := lessons.NewReporter(sched).WeeklyOverview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2026-02-08", ov.Week.End.String())
	assert.Equal(t, 3, ov.SessionCount)
	require.Len(t, ov.Days, 2)
	assert.Equal(t, "2026-02-02", ov.Days[0].Date.String())
	assert.Equal(t, 1, ov.Days[0].Count)
	assert.Equal(t, "2026-02-04", ov.Days[1].Date.String())
	assert.Equal(t, 2, ov.Days[1].Count)
	assert.True(t, decimal.NewFromInt(500).Equal(ov.Days[1].Income))
}

// =============================================================================
// PER-PERSON
// =============================================================================

func TestPersonProgress_RecencyIgnoresFutureLessons(t *testing.T) {
	// GIVEN: Ann's last started lesson was Jan 20 10:00, three more are booked
	// WHEN: Reporting progress on Feb 1 12:00
	// THEN: 12 days since, "recent", one lesson in the last 30 days

	sched, mem := newTestScheduler(t)
	seedTerm(t, mem)

	rep, err := lessons.NewReporter(sched).PersonProgress(context.Background(), "Ann")
	require.NoError(t, err)

	assert.Equal(t, 5, rep.SessionCount)
	assert.Equal(t, 1, rep.RecentCount)
	require.NotNil(t, rep.LastSession)
	assert.Equal(t, 20, rep.LastSession.Day())
	assert.Equal(t, 12, rep.DaysSince)
	assert.Equal(t, "recent", rep.Activity)
	require.Len(t, rep.Recent, 2)
	assert.Equal(t, "a-jan", rep.Recent[0].ID)
	assert.Equal(t, "a-dec", rep.Recent[1].ID)
}

func TestPersonProgress_NeverTaught(t *testing.T) {
	sched, mem := newTestScheduler(t)
	mustPerson(t, mem, "Cat")

	rep, err := lessons.NewReporter(sched).PersonProgress(context.Background(), "Cat")
	require.NoError(t, err)
	assert.Nil(t, rep.LastSession)
	assert.Empty(t, rep.Activity)

	_, err = lessons.NewReporter(sched).PersonProgress(context.Background(), "Nobody")
	assert.True(t, generic.IsNotFound(err))
}

func TestPersonFinancial_TotalsAndThisMonth(t *testing.T) {
	sched, mem := newTestScheduler(t)
	seedTerm(t, mem)

	fin, err := lessons.NewReporter(sched).PersonFinancial(context.Background(), "Ann")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(1000).Equal(fin.Income))
	assert.Equal(t, 300, fin.Minutes)
	assert.Equal(t, "200", fin.AveragePrice().String())
	assert.Equal(t, 3, fin.MonthCount)
	assert.True(t, decimal.NewFromInt(600).Equal(fin.MonthIncome))
}

func TestPersonSchedule_NextDays(t *testing.T) {
	sched, mem := newTestScheduler(t)
	seedTerm(t, mem)
	rep := lessons.NewReporter(sched)
	ctx := context.Background()

	three, err := rep.PersonSchedule(ctx, "Ann", 3)
	require.NoError(t, err)
	require.Len(t, three.Sessions, 1)
	assert.Equal(t, "a1", three.Sessions[0].ID)
	assert.Equal(t, 1, three.Sessions[0].DaysUntil)

	week, err := rep.PersonSchedule(ctx, "Ann", 7)
	require.NoError(t, err)
	require.Len(t, week.Sessions, 2)
	assert.Equal(t, 3, week.Sessions[1].DaysUntil)

	_, err = rep.PersonSchedule(ctx, "Ann", 0)
	assert.ErrorIs(t, err, generic.ErrValidation)
	_, err = rep.PersonSchedule(ctx, "Nobody", 7)
	assert.True(t, generic.IsNotFound(err))
}
