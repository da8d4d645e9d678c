package lessons_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lesson-engine/generic"
	"github.com/warp/lesson-engine/lessons"
)

func TestCompileFilter_EmptyMatchesEverything(t *testing.T) {
	f, err := lessons.CompileFilter(lessons.FilterSpec{})
	require.NoError(t, err)
	assert.True(t, f.Spec().IsEmpty())
	assert.True(t, f.Match(lessons.Session{Title: "anything", Start: feb(3, 9)}))
	assert.True(t, lessons.MatchAll().Match(lessons.Session{}))

	q := f.Query()
	assert.True(t, q.From.IsZero())
	assert.True(t, q.To.IsZero())
}

func TestCompileFilter_EachField(t *testing.T) {
	sess := lessons.Session{Title: "Maths G5", PersonName: "Ann", Start: feb(7, 10), End: feb(7, 11)}
	feb7 := generic.NewDate(2026, time.February, 7)

	tests := []struct {
		name string
		spec lessons.FilterSpec
		want bool
	}{
		{"title substring", lessons.FilterSpec{TitleSubstring: "Maths"}, true},
		{"title is case sensitive", lessons.FilterSpec{TitleSubstring: "maths"}, false},
		{"person exact", lessons.FilterSpec{PersonName: "Ann"}, true},
		{"person no prefix match", lessons.FilterSpec{PersonName: "An"}, false},
		{"date range inclusive end", lessons.FilterSpec{DateRange: &generic.DateRange{Start: feb7, End: feb7}}, true},
		{"date range before", lessons.FilterSpec{DateRange: &generic.DateRange{Start: feb7.AddDays(1), End: feb7.AddDays(2)}}, false},
		{"weekday chinese", lessons.FilterSpec{Weekday: "周六"}, true},
		{"weekday digit", lessons.FilterSpec{Weekday: "5"}, true},
		{"weekday other", lessons.FilterSpec{Weekday: "sunday"}, false},
		{"and combination", lessons.FilterSpec{PersonName: "Ann", Weekday: "friday"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := lessons.CompileFilter(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(sess))
		})
	}
}

func TestCompileFilter_DateRangeBecomesWindow(t *testing.T) {
	r, err := generic.ParseDateRange("2026-02-02,2026-02-08")
	require.NoError(t, err)

	f, err := lessons.CompileFilter(lessons.FilterSpec{DateRange: &r})
	require.NoError(t, err)

	q := f.Query()
	assert.Equal(t, feb(2, 0), q.From)
	assert.Equal(t, feb(9, 0), q.To)
	require.NotNil(t, q.Match)
}

func TestCompileFilter_Errors(t *testing.T) {
	_, err := lessons.CompileFilter(lessons.FilterSpec{Weekday: "8"})
	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "weekday", ve.Field)

	bad := generic.DateRange{Start: generic.NewDate(2026, time.March, 1), End: generic.NewDate(2026, time.February, 1)}
	_, err = lessons.CompileFilter(lessons.FilterSpec{DateRange: &bad})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "date_range", ve.Field)
}
