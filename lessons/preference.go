package lessons

import (
	"context"
	"fmt"

	"github.com/warp/lesson-engine/generic"
)

// =============================================================================
// TIME-PREFERENCE ANALYZER
// =============================================================================

// MinPreferenceHistory is the smallest history that yields suggestions.
const MinPreferenceHistory = 3

// TimeSuggestion is one (weekday, start hour) pair.
type TimeSuggestion struct {
	Weekday generic.Weekday
	Hour    int
}

func (t TimeSuggestion) String() string {
	return fmt.Sprintf("%s %02d:00", generic.ChineseWeekdayNames[t.Weekday], t.Hour)
}

// Preferences is the analyzer's result. When Insufficient is set nothing
// else is populated besides PersonName and SessionCount.
type Preferences struct {
	PersonName   string
	SessionCount int
	Insufficient bool

	TopWeekdays []generic.Count // Key is a generic.Weekday, at most 3
	TopHours    []generic.Count // Key is an hour 0..23, at most 3

	// Suggestions is top-2 weekdays x top-2 hours, weekday-major, filtered by
	// the preferred days when given.
	Suggestions []TimeSuggestion

	// FallbackWeekdays is set instead of Suggestions when the preferred days
	// filtered every suggestion out.
	FallbackWeekdays []generic.Weekday
}

// SuggestTimes ranks the weekdays and hours personName usually has lessons
// at. preferredDays is an optional allow-list of weekday tokens.
func (s *Scheduler) SuggestTimes(ctx context.Context, personName string, preferredDays []string) (*Preferences, error) {
	var allow map[generic.Weekday]bool
	if len(preferredDays) > 0 {
		days, err := generic.ParseWeekdaySet(preferredDays)
		if err != nil {
			return nil, generic.Invalid("preferred_days", err)
		}
		allow = make(map[generic.Weekday]bool, len(days))
		for _, d := range days {
			allow[d] = true
		}
	}

	history, err := s.PersonSessions(ctx, personName)
	if err != nil {
		return nil, err
	}
	return AnalyzePreferences(personName, history, allow), nil
}

// AnalyzePreferences is the pure part of SuggestTimes.
func AnalyzePreferences(personName string, history []Session, allow map[generic.Weekday]bool) *Preferences {
	prefs := &Preferences{PersonName: personName, SessionCount: len(history)}
	if len(history) < MinPreferenceHistory {
		prefs.Insufficient = true
		return prefs
	}

	byWeekday := map[int]int{}
	byHour := map[int]int{}
	for _, sess := range history {
		byWeekday[int(generic.WeekdayOf(sess.Start))]++
		byHour[sess.Start.Hour()]++
	}
	prefs.TopWeekdays = generic.TopCounts(generic.RankCounts(byWeekday), 3)
	prefs.TopHours = generic.TopCounts(generic.RankCounts(byHour), 3)

	days := generic.TopCounts(prefs.TopWeekdays, 2)
	hours := generic.TopCounts(prefs.TopHours, 2)
	for _, d := range days {
		wd := generic.Weekday(d.Key)
		if allow != nil && !allow[wd] {
			continue
		}
		for _, h := range hours {
			prefs.Suggestions = append(prefs.Suggestions, TimeSuggestion{Weekday: wd, Hour: h.Key})
		}
	}

	if len(prefs.Suggestions) == 0 {
		for _, d := range days {
			prefs.FallbackWeekdays = append(prefs.FallbackWeekdays, generic.Weekday(d.Key))
		}
	}
	return prefs
}
