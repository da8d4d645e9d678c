package generic

import (
	"sort"
	"time"
)

// =============================================================================
// CONFLICT DETECTOR
// =============================================================================

// DetectConflicts returns the members of existing that overlap candidate,
// ordered by start ascending. An interval whose ID equals excludeID is ignored
// so an entry can be re-checked against the timeline it already sits on.
//
// Overlap rule: candidate.Start < e.End AND candidate.End > e.Start.
// The scan is O(n) over whatever the caller supplies; narrowing the candidate
// set (one date, one window) is the caller's job.
func DetectConflicts(candidate Interval, existing []Interval, excludeID string) []Interval {
	var conflicts []Interval
	for _, e := range existing {
		if excludeID != "" && e.ID == excludeID {
			continue
		}
		if candidate.Overlaps(e) {
			conflicts = append(conflicts, e)
		}
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Start.Before(conflicts[j].Start)
	})
	return conflicts
}

// HasConflict is DetectConflicts without materializing the result.
func HasConflict(candidate Interval, existing []Interval, excludeID string) bool {
	for _, e := range existing {
		if excludeID != "" && e.ID == excludeID {
			continue
		}
		if candidate.Overlaps(e) {
			return true
		}
	}
	return false
}

// =============================================================================
// FREE GAP SWEEP
// =============================================================================

// FreeGaps sweeps busy intervals across window and returns every open gap of at
// least minDuration, ordered by start.
//
//	cursor := window.Start
//	for each busy b (sorted by start):
//	    emit [cursor, b.Start) if long enough
//	    cursor = max(cursor, b.End)
//	emit [cursor, window.End) if long enough
//
// Busy intervals may overlap each other and may stick out of the window; the
// cursor only ever moves forward, so pooled busy sets from several owners need
// no pre-merge.
func FreeGaps(window Interval, busy []Interval, minDuration time.Duration) []Interval {
	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var gaps []Interval
	cursor := window.Start
	for _, b := range sorted {
		if !b.End.After(window.Start) || !b.Start.Before(window.End) {
			continue
		}
		end := b.Start
		if end.After(window.End) {
			end = window.End
		}
		if end.Sub(cursor) >= minDuration && end.After(cursor) {
			gaps = append(gaps, Interval{Start: cursor, End: end})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if window.End.Sub(cursor) >= minDuration && window.End.After(cursor) {
		gaps = append(gaps, Interval{Start: cursor, End: window.End})
	}
	return gaps
}
