package lessons_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lesson-engine/generic"
	"github.com/warp/lesson-engine/lessons"
)

func history(starts ...time.Time) []lessons.Session {
	out := make([]lessons.Session, len(starts))
	for i, s := range starts {
		out[i] = lessons.Session{Start: s, End: s.Add(time.Hour)}
	}
	return out
}

// =============================================================================
// TIME-PREFERENCE ANALYZER
// =============================================================================

func TestSuggestTimes_InsufficientHistory(t *testing.T) {
	sched, mem := newTestScheduler(t)
	ann := mustPerson(t, mem, "Ann")
	seed(t, mem, "s1", ann, feb(2, 15), feb(2, 16))
	seed(t, mem, "s2", ann, feb(4, 15), feb(4, 16))

	prefs, err := sched.SuggestTimes(context.Background(), "Ann", nil)
	require.NoError(t, err)

	assert.True(t, prefs.Insufficient)
	assert.Equal(t, 2, prefs.SessionCount)
	assert.Empty(t, prefs.Suggestions)
	assert.Empty(t, prefs.TopWeekdays)
}

func TestSuggestTimes_UnknownPerson(t *testing.T) {
	sched, _ := newTestScheduler(t)

	_, err := sched.SuggestTimes(context.Background(), "Nobody", nil)
	assert.True(t, generic.IsNotFound(err))
}

func TestAnalyzePreferences_RankingAndCrossProduct(t *testing.T) {
	// GIVEN: Mondays x3 (15h, 15h, 10h), Wednesdays x2 (15h, 18h), Friday x1 (10h)
	// WHEN: Analyzing
	// THEN: weekdays Mon > Wed > Fri, hours 15 > 10 > 18 (tie 10/18 broken by hour)

	h := history(
		feb(2, 15), feb(9, 15), feb(16, 10),
		feb(4, 15), feb(11, 18),
		feb(6, 10),
	)

	prefs := lessons.AnalyzePreferences("Ann", h, nil)
	require.False(t, prefs.Insufficient)

	assert.Equal(t, []generic.Count{
		{Key: int(generic.Monday), Count: 3},
		{Key: int(generic.Wednesday), Count: 2},
		{Key: int(generic.Friday), Count: 1},
	}, prefs.TopWeekdays)
	assert.Equal(t, []generic.Count{{Key: 15, Count: 3}, {Key: 10, Count: 2}, {Key: 18, Count: 1}}, prefs.TopHours)

	assert.Equal(t, []lessons.TimeSuggestion{
		{Weekday: generic.Monday, Hour: 15},
		{Weekday: generic.Monday, Hour: 10},
		{Weekday: generic.Wednesday, Hour: 15},
		{Weekday: generic.Wednesday, Hour: 10},
	}, prefs.Suggestions)
	assert.Equal(t, "周一 15:00", prefs.Suggestions[0].String())
}

func TestAnalyzePreferences_PreferredDaysFilterAndFallback(t *testing.T) {
	h := history(feb(2, 15), feb(9, 15), feb(4, 15))

	onlyWed := lessons.AnalyzePreferences("Ann", h, map[generic.Weekday]bool{generic.Wednesday: true})
	require.Len(t, onlyWed.Suggestions, 1)
	assert.Equal(t, generic.Wednesday, onlyWed.Suggestions[0].Weekday)
	assert.Empty(t, onlyWed.FallbackWeekdays)

	onlySun := lessons.AnalyzePreferences("Ann", h, map[generic.Weekday]bool{generic.Sunday: true})
	assert.Empty(t, onlySun.Suggestions)
	assert.Equal(t, []generic.Weekday{generic.Monday, generic.Wednesday}, onlySun.FallbackWeekdays)
}

func TestSuggestTimes_InvalidPreferredDay(t *testing.T) {
	sched, _ := newTestScheduler(t)

	_, err := sched.SuggestTimes(context.Background(), "Ann", []string{"someday"})
	assert.ErrorIs(t, err, generic.ErrValidation)
}
