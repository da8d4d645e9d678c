/*
Package generic provides the domain-agnostic scheduling engine.

PURPOSE:
  This package contains the time and interval algorithms that the lesson
  domain is built on. Nothing here knows about students, prices or storage:
  it works on half-open wall-clock intervals, civil dates and clock times.

KEY CONCEPTS IN THIS FILE (types.go):
  - Interval: a half-open [Start, End) span tagged with the id of its owner
  - Count: a ranked frequency bucket (weekday or hour)

KEY ALGORITHMS:
  - DetectConflicts (interval.go): strict overlap test over a candidate set
  - FreeGaps (interval.go): cursor sweep producing open windows
  - RankCounts (rank.go): deterministic frequency ranking

DESIGN PRINCIPLES:
  1. Half-open intervals: touching endpoints never overlap
  2. Purity: no I/O, callers pre-narrow candidate sets
  3. Determinism: every ordering has an explicit tie-break
  4. Naive time: all instants are wall-clock values held in time.UTC

USAGE:
  candidate := generic.Interval{Start: from, End: to}
  conflicts := generic.DetectConflicts(candidate, existing, "")
  if len(conflicts) > 0 {
      // slot taken
  }

SEE ALSO:
  - time.go: Date, Clock and weekday tokens
  - period.go: DateRange
  - errors.go: typed failures shared by every package
*/
package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// INTERVAL - Half-open span on the single schedule timeline
// =============================================================================

// Interval is the half-open span [Start, End). ID identifies the owner of the
// span (a session id) and may be empty for ad-hoc candidates.
type Interval struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two spans share any instant.
// Touching endpoints (a.End == b.Start) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Contains reports whether t falls inside [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Minutes returns the whole number of minutes in the span.
func (iv Interval) Minutes() int { return int(iv.Duration() / time.Minute) }

// Valid reports whether End is strictly after Start.
func (iv Interval) Valid() bool { return iv.End.After(iv.Start) }

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(DateTimeLayout), iv.End.Format(DateTimeLayout))
}

// =============================================================================
// COUNT - Ranked frequency bucket
// =============================================================================

// Count is one bucket of a frequency table, e.g. {Key: 2 (Wednesday), Count: 5}.
type Count struct {
	Key   int
	Count int
}
