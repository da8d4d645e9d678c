/*
Package sqlite provides a SQLite-backed implementation of the lesson store.

PURPOSE:
  Implements lessons.TxStore (roster + sessions + transactions) on SQLite
  through database/sql and mattn/go-sqlite3.

KEY TABLES:
  persons:  roster, integer autoincrement ids, name is indexed not unique
  sessions: lessons, UUID ids, person_id REFERENCES persons ON DELETE CASCADE

TIME & MONEY ENCODING:
  Timestamps are naive wall-clock TEXT in "2006-01-02T15:04:05" form, which
  sorts lexicographically in time order, so range predicates run on the
  start_at index. Prices are decimal TEXT, never floats.

INDEXES:
  - idx_sessions_start:        range queries (conflicts, free slots, reports)
  - idx_sessions_person_start: one person's history
  - idx_persons_name:          lookups by name

CONCURRENCY:
  One pooled connection and a sync.RWMutex. WithTx holds the write lock for
  the whole callback, and the callback only ever touches the *sql.Tx, so a
  read-decide-write sequence cannot interleave with another writer.
  A single connection also keeps ":memory:" databases shared across calls.

USAGE:
  store, err := sqlite.New("./data/lessons.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  sched := lessons.NewScheduler(store, logger)

SEE ALSO:
  - lessons/types.go: the Store contract
  - lessons/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/lesson-engine/generic"
	"github.com/warp/lesson-engine/lessons"
)

// Store implements lessons.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ lessons.TxStore = (*Store)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS persons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		grade TEXT,
		phone TEXT,
		parent_contact TEXT,
		progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_persons_name
		ON persons(name);

	-- Deleting a person removes every session it owns.
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		person_id INTEGER NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		price TEXT NOT NULL,
		location TEXT,
		description TEXT,
		color TEXT,
		created_at TEXT NOT NULL,
		CHECK (end_at > start_at)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_start
		ON sessions(start_at);

	CREATE INDEX IF NOT EXISTS idx_sessions_person_start
		ON sessions(person_id, start_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROSTER STORE
// =============================================================================

const personColumns = `id, name, grade, phone, parent_contact, progress, notes, created_at`

func (s *Store) CreatePerson(ctx context.Context, fields lessons.PersonFields) (lessons.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createPerson(ctx, s.db, fields)
}

func createPerson(ctx context.Context, db querier, f lessons.PersonFields) (lessons.Person, error) {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := db.ExecContext(ctx, `
		INSERT INTO persons (name, grade, phone, parent_contact, progress, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		f.Name,
		nullString(f.Grade),
		nullString(f.Phone),
		nullString(f.ParentContact),
		f.Progress,
		nullString(f.Notes),
		formatTime(now),
	)
	if err != nil {
		return lessons.Person{}, fmt.Errorf("failed to create person: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return lessons.Person{}, fmt.Errorf("failed to read person id: %w", err)
	}
	return lessons.Person{
		ID:            id,
		Name:          f.Name,
		Grade:         f.Grade,
		Phone:         f.Phone,
		ParentContact: f.ParentContact,
		Progress:      f.Progress,
		Notes:         f.Notes,
		CreatedAt:     now,
	}, nil
}

func (s *Store) GetPersonByID(ctx context.Context, id int64) (*lessons.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPerson(ctx, s.db, "id = ?", id)
}

// GetPersonByName returns the oldest person with that exact name.
func (s *Store) GetPersonByName(ctx context.Context, name string) (*lessons.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPerson(ctx, s.db, "name = ?", name)
}

func getPerson(ctx context.Context, db querier, where string, arg any) (*lessons.Person, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+personColumns+" FROM persons WHERE "+where+" ORDER BY id LIMIT 1", arg)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPersons(ctx context.Context) ([]lessons.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPersons(ctx, s.db)
}

func listPersons(ctx context.Context, db querier) ([]lessons.Person, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+personColumns+" FROM persons ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()

	var persons []lessons.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

func (s *Store) UpdatePerson(ctx context.Context, p lessons.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePerson(ctx, s.db, p)
}

func updatePerson(ctx context.Context, db querier, p lessons.Person) error {
	res, err := db.ExecContext(ctx, `
		UPDATE persons
		SET name = ?, grade = ?, phone = ?, parent_contact = ?, progress = ?, notes = ?
		WHERE id = ?
	`,
		p.Name,
		nullString(p.Grade),
		nullString(p.Phone),
		nullString(p.ParentContact),
		p.Progress,
		nullString(p.Notes),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Kind: "person", Key: strconv.FormatInt(p.ID, 10)}
	}
	return nil
}

// DeletePerson removes the person; the foreign key cascades to sessions.
func (s *Store) DeletePerson(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePerson(ctx, s.db, id)
}

func deletePerson(ctx context.Context, db querier, id int64) (bool, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete person: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// =============================================================================
// SESSION STORE
// =============================================================================

const sessionSelect = `
	SELECT s.id, s.title, s.start_at, s.end_at, s.person_id, s.price,
	       s.location, s.description, s.color,
	       COALESCE(p.name, ''), COALESCE(p.grade, '')
	FROM sessions s
	LEFT JOIN persons p ON p.id = s.person_id
`

func (s *Store) CreateSession(ctx context.Context, sess lessons.Session) error {
	return s.CreateSessions(ctx, []lessons.Session{sess})
}

// CreateSessions inserts all sessions atomically.
func (s *Store) CreateSessions(ctx context.Context, sessions []lessons.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := createSessions(ctx, sqlTx, sessions); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func createSessions(ctx context.Context, db querier, sessions []lessons.Session) error {
	if err := checkPersons(ctx, db, sessions); err != nil {
		return err
	}
	now := formatTime(time.Now().UTC())
	for _, sess := range sessions {
		_, err := db.ExecContext(ctx, `
			INSERT INTO sessions
			(id, title, start_at, end_at, person_id, price, location, description, color, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sess.ID,
			sess.Title,
			formatTime(sess.Start),
			formatTime(sess.End),
			sess.PersonID,
			sess.Price.String(),
			nullString(sess.Location),
			nullString(sess.Description),
			nullString(sess.Color),
			now,
		)
		if err != nil {
			if isForeignKeyError(err) {
				return &generic.ReferenceError{PersonID: sess.PersonID}
			}
			return fmt.Errorf("failed to create session: %w", err)
		}
	}
	return nil
}

// checkPersons turns a dangling person_id into a ReferenceError before any
// row is written.
func checkPersons(ctx context.Context, db querier, sessions []lessons.Session) error {
	seen := map[int64]bool{}
	for _, sess := range sessions {
		if seen[sess.PersonID] {
			continue
		}
		seen[sess.PersonID] = true
		var one int
		err := db.QueryRowContext(ctx, "SELECT 1 FROM persons WHERE id = ?", sess.PersonID).Scan(&one)
		if err == sql.ErrNoRows {
			return &generic.ReferenceError{PersonID: sess.PersonID}
		}
		if err != nil {
			return fmt.Errorf("failed to resolve person: %w", err)
		}
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*lessons.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSession(ctx, s.db, id)
}

func getSession(ctx context.Context, db querier, id string) (*lessons.Session, error) {
	sess, err := scanSession(db.QueryRowContext(ctx, sessionSelect+" WHERE s.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) QuerySessions(ctx context.Context, q lessons.SessionQuery) ([]lessons.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return querySessions(ctx, s.db, q)
}

// querySessions pushes the time window and owners into SQL and applies
// q.Match to the rows that come back.
func querySessions(ctx context.Context, db querier, q lessons.SessionQuery) ([]lessons.Session, error) {
	if q.PersonIDs != nil && len(q.PersonIDs) == 0 {
		return nil, nil
	}

	var where []string
	var args []any
	if !q.From.IsZero() {
		where = append(where, "s.end_at > ?")
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "s.start_at < ?")
		args = append(args, formatTime(q.To))
	}
	if len(q.PersonIDs) > 0 {
		marks := make([]string, len(q.PersonIDs))
		for i, id := range q.PersonIDs {
			marks[i] = "?"
			args = append(args, id)
		}
		where = append(where, "s.person_id IN ("+strings.Join(marks, ", ")+")")
	}

	query := sessionSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.start_at ASC, s.id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []lessons.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		if q.Match == nil || q.Match(sess) {
			sessions = append(sessions, sess)
		}
	}
	return sessions, rows.Err()
}

// UpdateSessions rewrites each session atomically and returns how many ids
// existed.
func (s *Store) UpdateSessions(ctx context.Context, sessions []lessons.Session) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	n, err := updateSessions(ctx, sqlTx, sessions)
	if err != nil {
		return 0, err
	}
	return n, sqlTx.Commit()
}

func updateSessions(ctx context.Context, db querier, sessions []lessons.Session) (int, error) {
	if err := checkPersons(ctx, db, sessions); err != nil {
		return 0, err
	}
	total := 0
	for _, sess := range sessions {
		res, err := db.ExecContext(ctx, `
			UPDATE sessions
			SET title = ?, start_at = ?, end_at = ?, person_id = ?, price = ?,
			    location = ?, description = ?, color = ?
			WHERE id = ?
		`,
			sess.Title,
			formatTime(sess.Start),
			formatTime(sess.End),
			sess.PersonID,
			sess.Price.String(),
			nullString(sess.Location),
			nullString(sess.Description),
			nullString(sess.Color),
			sess.ID,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to update session %s: %w", sess.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += int(n)
	}
	return total, nil
}

func (s *Store) DeleteSessions(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteSessions(ctx, s.db, ids)
}

func deleteSessions(ctx context.Context, db querier, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	res, err := db.ExecContext(ctx,
		"DELETE FROM sessions WHERE id IN ("+strings.Join(marks, ", ")+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// TRANSACTIONAL STORE (lessons.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store lessons.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every call on the open *sql.Tx. The parent mutex is already
// held, so it must never call back into Store methods.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreatePerson(ctx context.Context, f lessons.PersonFields) (lessons.Person, error) {
	return createPerson(ctx, ts.tx, f)
}

func (ts *txStore) GetPersonByID(ctx context.Context, id int64) (*lessons.Person, error) {
	return getPerson(ctx, ts.tx, "id = ?", id)
}

func (ts *txStore) GetPersonByName(ctx context.Context, name string) (*lessons.Person, error) {
	return getPerson(ctx, ts.tx, "name = ?", name)
}

func (ts *txStore) ListPersons(ctx context.Context) ([]lessons.Person, error) {
	return listPersons(ctx, ts.tx)
}

func (ts *txStore) UpdatePerson(ctx context.Context, p lessons.Person) error {
	return updatePerson(ctx, ts.tx, p)
}

func (ts *txStore) DeletePerson(ctx context.Context, id int64) (bool, error) {
	return deletePerson(ctx, ts.tx, id)
}

func (ts *txStore) CreateSession(ctx context.Context, sess lessons.Session) error {
	return createSessions(ctx, ts.tx, []lessons.Session{sess})
}

func (ts *txStore) CreateSessions(ctx context.Context, sessions []lessons.Session) error {
	return createSessions(ctx, ts.tx, sessions)
}

func (ts *txStore) GetSession(ctx context.Context, id string) (*lessons.Session, error) {
	return getSession(ctx, ts.tx, id)
}

func (ts *txStore) QuerySessions(ctx context.Context, q lessons.SessionQuery) ([]lessons.Session, error) {
	return querySessions(ctx, ts.tx, q)
}

func (ts *txStore) UpdateSessions(ctx context.Context, sessions []lessons.Session) (int, error) {
	return updateSessions(ctx, ts.tx, sessions)
}

func (ts *txStore) DeleteSessions(ctx context.Context, ids []string) (int, error) {
	return deleteSessions(ctx, ts.tx, ids)
}

// =============================================================================
// SCANNING
// =============================================================================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (lessons.Person, error) {
	var (
		p             lessons.Person
		grade         sql.NullString
		phone         sql.NullString
		parentContact sql.NullString
		notes         sql.NullString
		createdAt     string
	)
	err := row.Scan(&p.ID, &p.Name, &grade, &phone, &parentContact, &p.Progress, &notes, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return p, err
		}
		return p, fmt.Errorf("failed to scan person: %w", err)
	}
	p.Grade = grade.String
	p.Phone = phone.String
	p.ParentContact = parentContact.String
	p.Notes = notes.String
	p.CreatedAt, _ = parseTime(createdAt)
	return p, nil
}

func scanSession(row scanner) (lessons.Session, error) {
	var (
		sess        lessons.Session
		startAt     string
		endAt       string
		price       string
		location    sql.NullString
		description sql.NullString
		color       sql.NullString
	)
	err := row.Scan(
		&sess.ID, &sess.Title, &startAt, &endAt, &sess.PersonID, &price,
		&location, &description, &color,
		&sess.PersonName, &sess.PersonGrade,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return sess, err
		}
		return sess, fmt.Errorf("failed to scan session: %w", err)
	}
	if sess.Start, err = parseTime(startAt); err != nil {
		return sess, err
	}
	if sess.End, err = parseTime(endAt); err != nil {
		return sess, err
	}
	if sess.Price, err = decimal.NewFromString(price); err != nil {
		return sess, fmt.Errorf("session %s: bad price %q: %w", sess.ID, price, err)
	}
	sess.Location = location.String
	sess.Description = description.String
	sess.Color = color.String
	return sess, nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.Format(generic.DateTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(generic.DateTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isForeignKeyError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
