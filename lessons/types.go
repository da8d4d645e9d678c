/*
Package lessons implements tutoring-lesson scheduling on top of the generic
interval engine.

PURPOSE:
  Sessions (lessons) are timed, priced occurrences bound to a Person
  (student). The tutor has ONE timeline: no two sessions may silently overlap,
  whoever they belong to.

INVARIANT:
  Every write that depends on a read (recurring generation, batch mutation,
  booking, availability) runs its read-decide-write inside one Store.WithTx
  scope, so a concurrent writer cannot slip a conflicting session in between.

KEY CONCEPTS IN THIS FILE (types.go):
  - Person / PersonFields: roster entries
  - Session: one scheduled lesson, with the owner's name joined in on reads
  - SessionQuery: storage-side pre-narrowing plus an in-process predicate
  - RosterStore / SessionStore / Store / TxStore: persistence contract

SEE ALSO:
  - filter.go: FilterSpec compiled once and shared by query/update/delete
  - recurring.go: recurrence plan expansion with per-date conflict skipping
  - batch.go: filtered update and delete with matched/affected counts
  - slots.go: free-slot finder
  - preference.go: time-preference analyzer
  - lessons/store/memory.go, store/sqlite/sqlite.go: implementations
*/
package lessons

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lesson-engine/generic"
)

// DefaultColor is the display color given to sessions created without one.
const DefaultColor = "#F5A3C8"

// =============================================================================
// PERSON - Roster entry
// =============================================================================

// Person is a student. Name is the matching key used by every lookup; it is
// unique by convention only.
type Person struct {
	ID            int64
	Name          string
	Grade         string
	Phone         string
	ParentContact string
	Progress      int // 0..100
	Notes         string
	CreatedAt     time.Time
}

// PersonFields are the writable fields of a Person.
type PersonFields struct {
	Name          string
	Grade         string
	Phone         string
	ParentContact string
	Progress      int
	Notes         string
}

// Validate checks the roster rules shared by create and update.
func (f PersonFields) Validate() error {
	if f.Name == "" {
		return generic.Invalid("name", "must not be empty")
	}
	if f.Progress < 0 || f.Progress > 100 {
		return generic.Invalid("progress", "must be within 0..100")
	}
	return nil
}

// =============================================================================
// SESSION - One scheduled lesson
// =============================================================================

type Session struct {
	ID          string
	Title       string
	Start       time.Time
	End         time.Time
	PersonID    int64
	Price       decimal.Decimal
	Location    string
	Description string
	Color       string

	// Joined from the roster on reads. Empty when the person is unresolved.
	PersonName  string
	PersonGrade string
}

// Interval returns the session's span tagged with its id.
func (s Session) Interval() generic.Interval {
	return generic.Interval{ID: s.ID, Start: s.Start, End: s.End}
}

// Validate checks the per-row invariants: End > Start, Price >= 0.
func (s Session) Validate() error {
	if s.Title == "" {
		return generic.Invalid("title", "must not be empty")
	}
	if !s.End.After(s.Start) {
		return generic.Invalid("end", "must be after start")
	}
	if s.Price.IsNegative() {
		return generic.Invalid("price", "must not be negative")
	}
	return nil
}

// Intervals projects sessions onto the conflict detector's input.
func Intervals(sessions []Session) []generic.Interval {
	out := make([]generic.Interval, len(sessions))
	for i, s := range sessions {
		out[i] = s.Interval()
	}
	return out
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

// SessionQuery narrows a session read. Zero values mean "unbounded".
//
// From/To select sessions overlapping [From, To). PersonIDs restricts owners:
// nil means everyone, a non-nil empty slice means no one. Match runs
// in-process after the storage pre-filter; stores must apply it so callers
// get exactly the matched set.
type SessionQuery struct {
	From      time.Time
	To        time.Time
	PersonIDs []int64
	Match     func(Session) bool
}

// Overlaps reports whether s passes the time and owner pre-filter.
func (q SessionQuery) Overlaps(s Session) bool {
	if !q.From.IsZero() && !s.End.After(q.From) {
		return false
	}
	if !q.To.IsZero() && !s.Start.Before(q.To) {
		return false
	}
	if q.PersonIDs != nil {
		found := false
		for _, id := range q.PersonIDs {
			if id == s.PersonID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Accepts applies the whole query to s.
func (q SessionQuery) Accepts(s Session) bool {
	return q.Overlaps(s) && (q.Match == nil || q.Match(s))
}

// RosterStore persists Person records.
type RosterStore interface {
	// CreatePerson assigns a new id.
	CreatePerson(ctx context.Context, fields PersonFields) (Person, error)

	// GetPersonByID returns nil, nil when absent.
	GetPersonByID(ctx context.Context, id int64) (*Person, error)

	// GetPersonByName returns the oldest person with that exact name, or nil.
	GetPersonByName(ctx context.Context, name string) (*Person, error)

	ListPersons(ctx context.Context) ([]Person, error)

	// UpdatePerson returns a NotFoundError when the id is unknown.
	UpdatePerson(ctx context.Context, p Person) error

	// DeletePerson removes the person and every session it owns.
	// Returns false when nothing was deleted.
	DeletePerson(ctx context.Context, id int64) (bool, error)
}

// SessionStore persists Session records.
type SessionStore interface {
	// CreateSession rejects an unresolved PersonID with a ReferenceError.
	CreateSession(ctx context.Context, s Session) error

	// CreateSessions writes all or nothing.
	CreateSessions(ctx context.Context, sessions []Session) error

	// GetSession returns nil, nil when absent.
	GetSession(ctx context.Context, id string) (*Session, error)

	// QuerySessions returns the matching sessions ordered by start, with
	// PersonName/PersonGrade joined.
	QuerySessions(ctx context.Context, q SessionQuery) ([]Session, error)

	// UpdateSessions rewrites the mutable columns of each session by id and
	// returns how many rows existed.
	UpdateSessions(ctx context.Context, sessions []Session) (int, error)

	// DeleteSessions returns how many rows were removed.
	DeleteSessions(ctx context.Context, ids []string) (int, error)
}

// Store is the full persistence contract consumed by the scheduler.
type Store interface {
	RosterStore
	SessionStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, everything it wrote is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
