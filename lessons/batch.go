package lessons

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/lesson-engine/generic"
)

// =============================================================================
// BATCH MUTATOR - Filtered update / delete with honest counts
// =============================================================================

// UpdateOverrides lists the values a batch update applies. Nil means keep.
type UpdateOverrides struct {
	// TimeOfDay replaces only the clock part of each session's own Start and
	// End; the calendar date is kept.
	TimeOfDay *generic.ClockRange
	Price     *decimal.Decimal
	Location  *string
}

// IsEmpty reports whether no override is set.
func (o UpdateOverrides) IsEmpty() bool {
	return o.TimeOfDay == nil && o.Price == nil && o.Location == nil
}

func (o UpdateOverrides) validate() error {
	if o.TimeOfDay != nil && !o.TimeOfDay.Valid() {
		return generic.Invalid("new_time", o.TimeOfDay.String()+": start must be before end")
	}
	if o.Price != nil && o.Price.IsNegative() {
		return generic.Invalid("new_price", "must not be negative")
	}
	return nil
}

// apply returns the session with overrides applied and whether anything
// actually changed.
func (o UpdateOverrides) apply(s Session) (Session, bool) {
	next := s
	if o.TimeOfDay != nil {
		next.Start = generic.DateOf(s.Start).At(o.TimeOfDay.Start)
		next.End = generic.DateOf(s.Start).At(o.TimeOfDay.End)
	}
	if o.Price != nil {
		next.Price = *o.Price
	}
	if o.Location != nil {
		next.Location = *o.Location
	}
	changed := !next.Start.Equal(s.Start) ||
		!next.End.Equal(s.End) ||
		!next.Price.Equal(s.Price) ||
		next.Location != s.Location
	return next, changed
}

// UpdateResult: Updated <= Matched. Rows that already hold the new values are
// matched but not updated.
type UpdateResult struct {
	Matched int
	Updated int

	// Overlaps lists the collisions a TimeOfDay retime left on the timeline.
	// Retimes are applied regardless; this is the report, not a veto.
	Overlaps []RetimeOverlap
}

// RetimeOverlap is one retimed session and what it now collides with. A pair
// of retimed sessions is reported once, under the earlier one.
type RetimeOverlap struct {
	Session generic.Interval
	With    []generic.Interval
}

// DeleteResult: Deleted == Matched unless a concurrent writer raced us.
type DeleteResult struct {
	Matched int
	Deleted int
}

// BatchUpdate applies overrides to every session the spec matches.
// With no overrides it returns {0, 0} without touching the store.
func (s *Scheduler) BatchUpdate(ctx context.Context, spec FilterSpec, overrides UpdateOverrides) (*UpdateResult, error) {
	if overrides.IsEmpty() {
		return &UpdateResult{}, nil
	}
	if err := overrides.validate(); err != nil {
		return nil, err
	}
	f, err := CompileFilter(spec)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{}
	err = s.Store.WithTx(ctx, func(tx Store) error {
		matched, err := tx.QuerySessions(ctx, f.Query())
		if err != nil {
			return err
		}
		result.Matched = len(matched)

		var changed, retimed []Session
		for _, sess := range matched {
			if next, ok := overrides.apply(sess); ok {
				changed = append(changed, next)
				if !next.Start.Equal(sess.Start) || !next.End.Equal(sess.End) {
					retimed = append(retimed, next)
				}
			}
		}
		if len(changed) == 0 {
			return nil
		}
		n, err := tx.UpdateSessions(ctx, changed)
		if err != nil {
			return err
		}
		result.Updated = n

		if len(retimed) > 0 {
			result.Overlaps, err = retimeOverlaps(ctx, tx, retimed)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("batch update", "matched", result.Matched, "updated", result.Updated)
	if len(result.Overlaps) > 0 {
		s.Logger.Warn("batch retime left overlaps", "count", len(result.Overlaps))
	}
	return result, nil
}

// retimeOverlaps checks every retimed session against the post-update
// timeline of its own day.
func retimeOverlaps(ctx context.Context, tx Store, retimed []Session) ([]RetimeOverlap, error) {
	moved := make([]generic.Interval, len(retimed))
	from, to := retimed[0].Start, retimed[0].End
	for i, sess := range retimed {
		moved[i] = sess.Interval()
		if sess.Start.Before(from) {
			from = sess.Start
		}
		if sess.End.After(to) {
			to = sess.End
		}
	}
	sortIntervals(moved)

	day, err := tx.QuerySessions(ctx, SessionQuery{
		From: generic.DateOf(from).Span().Start,
		To:   generic.DateOf(to).AddDays(1).Span().Start,
	})
	if err != nil {
		return nil, err
	}
	timeline := Intervals(day)

	var overlaps []RetimeOverlap
	reported := map[string]bool{}
	for _, iv := range moved {
		reported[iv.ID] = true
		var with []generic.Interval
		for _, other := range generic.DetectConflicts(iv, timeline, iv.ID) {
			if !reported[other.ID] {
				with = append(with, other)
			}
		}
		if len(with) > 0 {
			overlaps = append(overlaps, RetimeOverlap{Session: iv, With: with})
		}
	}
	return overlaps, nil
}

func sortIntervals(ivs []generic.Interval) {
	sort.Slice(ivs, func(i, j int) bool {
		if !ivs[i].Start.Equal(ivs[j].Start) {
			return ivs[i].Start.Before(ivs[j].Start)
		}
		return ivs[i].ID < ivs[j].ID
	})
}

// BatchDelete removes every session the spec matches. Nothing matched is a
// zero result, not an error.
func (s *Scheduler) BatchDelete(ctx context.Context, spec FilterSpec) (*DeleteResult, error) {
	f, err := CompileFilter(spec)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{}
	err = s.Store.WithTx(ctx, func(tx Store) error {
		matched, err := tx.QuerySessions(ctx, f.Query())
		if err != nil {
			return err
		}
		result.Matched = len(matched)
		if len(matched) == 0 {
			return nil
		}
		ids := make([]string, len(matched))
		for i, sess := range matched {
			ids[i] = sess.ID
		}
		n, err := tx.DeleteSessions(ctx, ids)
		if err != nil {
			return err
		}
		result.Deleted = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("batch delete", "matched", result.Matched, "deleted", result.Deleted)
	return result, nil
}
