package lessons

import (
	"context"
	"time"

	"github.com/warp/lesson-engine/generic"
)

// =============================================================================
// FREE-SLOT FINDER
// =============================================================================

// WorkingHours is the daily window free slots are searched in.
var WorkingHours = generic.ClockRange{
	Start: generic.Clock{Hour: 8},
	End:   generic.Clock{Hour: 22},
}

// FreeSlot is one open window with its length in minutes.
type FreeSlot struct {
	Start   time.Time
	End     time.Time
	Minutes int
}

// FreeSlots is the finder's result.
type FreeSlots struct {
	Date  generic.Date
	Slots []FreeSlot

	// UnknownNames lists requested names with no roster entry. They
	// contribute no busy time.
	UnknownNames []string
}

// FindFreeSlots returns the gaps of at least durationMinutes inside working
// hours on date. With names, only those persons' sessions count as busy, pooled
// into one set: a slot is free only if it is free for every named person.
// Without names the whole timeline counts.
func (s *Scheduler) FindFreeSlots(ctx context.Context, date generic.Date, durationMinutes int, names []string) (*FreeSlots, error) {
	if durationMinutes <= 0 {
		return nil, generic.Invalid("duration", "must be a positive number of minutes")
	}
	if date.IsZero() {
		return nil, generic.Invalid("date", "is required")
	}

	result := &FreeSlots{Date: date}
	q := SessionQuery{From: date.Span().Start, To: date.Span().End}

	if len(names) > 0 {
		q.PersonIDs = []int64{}
		for _, name := range names {
			p, err := s.Store.GetPersonByName(ctx, name)
			if err != nil {
				return nil, err
			}
			if p == nil {
				result.UnknownNames = append(result.UnknownNames, name)
				continue
			}
			q.PersonIDs = append(q.PersonIDs, p.ID)
		}
	}

	busy, err := s.Store.QuerySessions(ctx, q)
	if err != nil {
		return nil, err
	}

	gaps := generic.FreeGaps(WorkingHours.On(date), Intervals(busy), time.Duration(durationMinutes)*time.Minute)
	result.Slots = make([]FreeSlot, len(gaps))
	for i, g := range gaps {
		result.Slots[i] = FreeSlot{Start: g.Start, End: g.End, Minutes: g.Minutes()}
	}
	return result, nil
}
