/*
scheduler.go - Service entry points for lesson scheduling

PURPOSE:
  Scheduler is the one object every caller (HTTP handlers, CLI, reminder job)
  talks to. It owns no state besides its collaborators: the transactional
  store, a logger and a few defaults.

OPERATIONS:
  Query            filtered read (filter.go)
  CheckAvailability standalone conflict check
  BookSession      single create with conflict rejection
  UpdateSession    single edit, re-checked against everyone but itself
  DeleteSession    single delete
  CreateRecurring  recurring.go
  BatchUpdate/Delete batch.go
  FindFreeSlots    slots.go
  SuggestTimes     preference.go

ERRORS:
  Validation happens before any write. Single-entity misses surface as
  *generic.NotFoundError; filtered operations return empty results instead.

SEE ALSO:
  - generic/interval.go: DetectConflicts
  - roster.go: person management and the roster cache
*/
package lessons

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/lesson-engine/generic"
)

// Scheduler coordinates the store and the interval engine.
type Scheduler struct {
	Store        TxStore
	Logger       *slog.Logger
	DefaultColor string

	// Now is the clock used by reports and reminders. Its wall time is read
	// as naive; the zone is discarded.
	Now func() time.Time
}

func NewScheduler(store TxStore, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Store:        store,
		Logger:       logger,
		DefaultColor: DefaultColor,
		Now:          time.Now,
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now == nil {
		return generic.Naive(time.Now())
	}
	return generic.Naive(s.Now())
}

// WallNow returns the current wall-clock time in the same naive form as
// stored session times.
func (s *Scheduler) WallNow() time.Time { return s.now() }

func (s *Scheduler) color(c string) string {
	if c != "" {
		return c
	}
	if s.DefaultColor != "" {
		return s.DefaultColor
	}
	return DefaultColor
}

// newSessionID generates the globally unique id assigned at creation.
func newSessionID() string { return uuid.NewString() }

// =============================================================================
// QUERY
// =============================================================================

// Query returns every session the spec matches, ordered by start.
func (s *Scheduler) Query(ctx context.Context, spec FilterSpec) ([]Session, error) {
	f, err := CompileFilter(spec)
	if err != nil {
		return nil, err
	}
	return s.Store.QuerySessions(ctx, f.Query())
}

// GetSession returns one session or a NotFoundError.
func (s *Scheduler) GetSession(ctx context.Context, id string) (*Session, error) {
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &generic.NotFoundError{Kind: "session", Key: id}
	}
	return sess, nil
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// Availability is the outcome of a standalone conflict check.
type Availability struct {
	Available bool
	Conflicts []Session
}

// CheckAvailability reports which stored sessions overlap [start, end).
// excludeID lets a session be re-checked against the timeline it sits on.
func (s *Scheduler) CheckAvailability(ctx context.Context, start, end time.Time, excludeID string) (*Availability, error) {
	if !end.After(start) {
		return nil, generic.Invalid("end", "must be after start")
	}

	result := &Availability{Available: true}
	err := s.Store.WithTx(ctx, func(tx Store) error {
		conflicts, err := conflictsFor(ctx, tx, generic.Interval{Start: start, End: end}, excludeID)
		if err != nil {
			return err
		}
		result.Conflicts = conflicts
		result.Available = len(conflicts) == 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// conflictsFor loads the sessions overlapping candidate and runs the detector.
func conflictsFor(ctx context.Context, st Store, candidate generic.Interval, excludeID string) ([]Session, error) {
	existing, err := st.QuerySessions(ctx, SessionQuery{From: candidate.Start, To: candidate.End})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Session, len(existing))
	for _, e := range existing {
		byID[e.ID] = e
	}
	hits := generic.DetectConflicts(candidate, Intervals(existing), excludeID)
	out := make([]Session, len(hits))
	for i, h := range hits {
		out[i] = byID[h.ID]
	}
	return out, nil
}

func conflictError(candidate generic.Interval, conflicts []Session) error {
	return &generic.ConflictError{Candidate: candidate, Conflicts: Intervals(conflicts)}
}

// =============================================================================
// SINGLE BOOKING
// =============================================================================

// SessionDraft describes one session to book. The person must already exist.
type SessionDraft struct {
	Title       string
	PersonName  string
	Start       time.Time
	End         time.Time
	Price       decimal.Decimal
	Location    string
	Description string
	Color       string
}

// BookSession validates, checks conflicts and creates one session atomically.
// An overlap is rejected with *generic.ConflictError.
func (s *Scheduler) BookSession(ctx context.Context, d SessionDraft) (*Session, error) {
	if d.PersonName == "" {
		return nil, generic.Invalid("person_name", "must not be empty")
	}
	sess := Session{
		ID:          newSessionID(),
		Title:       d.Title,
		Start:       d.Start,
		End:         d.End,
		Price:       d.Price,
		Location:    d.Location,
		Description: d.Description,
		Color:       s.color(d.Color),
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}

	err := s.Store.WithTx(ctx, func(tx Store) error {
		person, err := tx.GetPersonByName(ctx, d.PersonName)
		if err != nil {
			return err
		}
		if person == nil {
			return &generic.ReferenceError{PersonName: d.PersonName}
		}
		sess.PersonID = person.ID
		sess.PersonName = person.Name
		sess.PersonGrade = person.Grade

		conflicts, err := conflictsFor(ctx, tx, sess.Interval(), "")
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return conflictError(sess.Interval(), conflicts)
		}
		return tx.CreateSession(ctx, sess)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("session booked",
		"id", sess.ID, "person", sess.PersonName, "start", sess.Start.Format(generic.DateTimeLayout))
	return &sess, nil
}

// =============================================================================
// SINGLE EDIT / DELETE
// =============================================================================

// SessionPatch lists the fields to change on one session. Nil means keep.
type SessionPatch struct {
	Title       *string
	PersonName  *string
	Start       *time.Time
	End         *time.Time
	Price       *decimal.Decimal
	Location    *string
	Description *string
	Color       *string
}

// UpdateSession applies patch to one session. A new time span is re-checked
// against every other session.
func (s *Scheduler) UpdateSession(ctx context.Context, id string, patch SessionPatch) (*Session, error) {
	var updated Session
	err := s.Store.WithTx(ctx, func(tx Store) error {
		cur, err := tx.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return &generic.NotFoundError{Kind: "session", Key: id}
		}
		next := *cur
		if patch.Title != nil {
			next.Title = *patch.Title
		}
		if patch.Start != nil {
			next.Start = *patch.Start
		}
		if patch.End != nil {
			next.End = *patch.End
		}
		if patch.Price != nil {
			next.Price = *patch.Price
		}
		if patch.Location != nil {
			next.Location = *patch.Location
		}
		if patch.Description != nil {
			next.Description = *patch.Description
		}
		if patch.Color != nil {
			next.Color = *patch.Color
		}
		if patch.PersonName != nil {
			person, err := tx.GetPersonByName(ctx, *patch.PersonName)
			if err != nil {
				return err
			}
			if person == nil {
				return &generic.ReferenceError{PersonName: *patch.PersonName}
			}
			next.PersonID, next.PersonName, next.PersonGrade = person.ID, person.Name, person.Grade
		}
		if err := next.Validate(); err != nil {
			return err
		}

		if !next.Start.Equal(cur.Start) || !next.End.Equal(cur.End) {
			conflicts, err := conflictsFor(ctx, tx, next.Interval(), id)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return conflictError(next.Interval(), conflicts)
			}
		}

		if _, err := tx.UpdateSessions(ctx, []Session{next}); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSession removes one session or returns a NotFoundError.
func (s *Scheduler) DeleteSession(ctx context.Context, id string) error {
	n, err := s.Store.DeleteSessions(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Kind: "session", Key: id}
	}
	s.Logger.Info("session deleted", "id", id)
	return nil
}

// PersonSessions returns the full history of one person, ordered by start.
func (s *Scheduler) PersonSessions(ctx context.Context, name string) ([]Session, error) {
	person, err := s.Store.GetPersonByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, &generic.NotFoundError{Kind: "person", Key: name}
	}
	return s.Store.QuerySessions(ctx, SessionQuery{PersonIDs: []int64{person.ID}})
}

func personKey(id int64) string { return strconv.FormatInt(id, 10) }
