// Package store provides in-process Store implementations.
package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/warp/lesson-engine/generic"
	"github.com/warp/lesson-engine/lessons"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	persons  map[int64]lessons.Person
	sessions map[string]lessons.Session
	nextID   int64
}

func NewMemory() *Memory {
	return &Memory{
		persons:  make(map[int64]lessons.Person),
		sessions: make(map[string]lessons.Session),
	}
}

// --- roster ---

func (m *Memory) CreatePerson(_ context.Context, fields lessons.PersonFields) (lessons.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createPersonLocked(fields), nil
}

func (m *Memory) createPersonLocked(fields lessons.PersonFields) lessons.Person {
	m.nextID++
	p := lessons.Person{
		ID:            m.nextID,
		Name:          fields.Name,
		Grade:         fields.Grade,
		Phone:         fields.Phone,
		ParentContact: fields.ParentContact,
		Progress:      fields.Progress,
		Notes:         fields.Notes,
		CreatedAt:     time.Now().UTC(),
	}
	m.persons[p.ID] = p
	return p
}

func (m *Memory) GetPersonByID(_ context.Context, id int64) (*lessons.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.personByIDLocked(id), nil
}

func (m *Memory) personByIDLocked(id int64) *lessons.Person {
	p, ok := m.persons[id]
	if !ok {
		return nil
	}
	return &p
}

func (m *Memory) GetPersonByName(_ context.Context, name string) (*lessons.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.personByNameLocked(name), nil
}

// personByNameLocked returns the oldest (lowest id) person with that name.
func (m *Memory) personByNameLocked(name string) *lessons.Person {
	var found *lessons.Person
	for _, p := range m.persons {
		if p.Name != name {
			continue
		}
		if found == nil || p.ID < found.ID {
			p := p
			found = &p
		}
	}
	return found
}

func (m *Memory) ListPersons(_ context.Context) ([]lessons.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPersonsLocked(), nil
}

func (m *Memory) listPersonsLocked() []lessons.Person {
	out := make([]lessons.Person, 0, len(m.persons))
	for _, p := range m.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) UpdatePerson(_ context.Context, p lessons.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePersonLocked(p)
}

func (m *Memory) updatePersonLocked(p lessons.Person) error {
	cur, ok := m.persons[p.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "person", Key: itoa(p.ID)}
	}
	p.CreatedAt = cur.CreatedAt
	m.persons[p.ID] = p
	return nil
}

func (m *Memory) DeletePerson(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePersonLocked(id), nil
}

// deletePersonLocked cascades to every session the person owns.
func (m *Memory) deletePersonLocked(id int64) bool {
	if _, ok := m.persons[id]; !ok {
		return false
	}
	delete(m.persons, id)
	for sid, s := range m.sessions {
		if s.PersonID == id {
			delete(m.sessions, sid)
		}
	}
	return true
}

// --- sessions ---

func (m *Memory) CreateSession(ctx context.Context, s lessons.Session) error {
	return m.CreateSessions(ctx, []lessons.Session{s})
}

// CreateSessions checks every row first so a failure writes nothing.
func (m *Memory) CreateSessions(_ context.Context, sessions []lessons.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSessionsLocked(sessions)
}

func (m *Memory) createSessionsLocked(sessions []lessons.Session) error {
	for _, s := range sessions {
		if _, ok := m.persons[s.PersonID]; !ok {
			return &generic.ReferenceError{PersonID: s.PersonID}
		}
	}
	for _, s := range sessions {
		m.sessions[s.ID] = stripJoin(s)
	}
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*lessons.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSessionLocked(id), nil
}

func (m *Memory) getSessionLocked(id string) *lessons.Session {
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	s = m.joinLocked(s)
	return &s
}

func (m *Memory) QuerySessions(_ context.Context, q lessons.SessionQuery) ([]lessons.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.querySessionsLocked(q), nil
}

func (m *Memory) querySessionsLocked(q lessons.SessionQuery) []lessons.Session {
	var out []lessons.Session
	for _, s := range m.sessions {
		s = m.joinLocked(s)
		if q.Accepts(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) UpdateSessions(_ context.Context, sessions []lessons.Session) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSessionsLocked(sessions)
}

func (m *Memory) updateSessionsLocked(sessions []lessons.Session) (int, error) {
	for _, s := range sessions {
		if _, ok := m.persons[s.PersonID]; !ok {
			return 0, &generic.ReferenceError{PersonID: s.PersonID}
		}
	}
	n := 0
	for _, s := range sessions {
		if _, ok := m.sessions[s.ID]; !ok {
			continue
		}
		m.sessions[s.ID] = stripJoin(s)
		n++
	}
	return n, nil
}

func (m *Memory) DeleteSessions(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteSessionsLocked(ids), nil
}

func (m *Memory) deleteSessionsLocked(ids []string) int {
	n := 0
	for _, id := range ids {
		if _, ok := m.sessions[id]; ok {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *Memory) joinLocked(s lessons.Session) lessons.Session {
	if p, ok := m.persons[s.PersonID]; ok {
		s.PersonName = p.Name
		s.PersonGrade = p.Grade
	} else {
		s.PersonName, s.PersonGrade = "", ""
	}
	return s
}

func stripJoin(s lessons.Session) lessons.Session {
	s.PersonName, s.PersonGrade = "", ""
	return s
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole callback.
func (tm *TxMemory) WithTx(_ context.Context, fn func(lessons.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	persons  map[int64]lessons.Person
	sessions map[string]lessons.Session
	nextID   int64
}

func (m *Memory) snapshot() memorySnapshot {
	persons := make(map[int64]lessons.Person, len(m.persons))
	for k, v := range m.persons {
		persons[k] = v
	}
	sessions := make(map[string]lessons.Session, len(m.sessions))
	for k, v := range m.sessions {
		sessions[k] = v
	}
	return memorySnapshot{persons: persons, sessions: sessions, nextID: m.nextID}
}

func (m *Memory) restore(s memorySnapshot) {
	m.persons = s.persons
	m.sessions = s.sessions
	m.nextID = s.nextID
}

// txMemoryView runs against the parent with its lock already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) CreatePerson(_ context.Context, f lessons.PersonFields) (lessons.Person, error) {
	return tv.parent.createPersonLocked(f), nil
}

func (tv *txMemoryView) GetPersonByID(_ context.Context, id int64) (*lessons.Person, error) {
	return tv.parent.personByIDLocked(id), nil
}

func (tv *txMemoryView) GetPersonByName(_ context.Context, name string) (*lessons.Person, error) {
	return tv.parent.personByNameLocked(name), nil
}

func (tv *txMemoryView) ListPersons(_ context.Context) ([]lessons.Person, error) {
	return tv.parent.listPersonsLocked(), nil
}

func (tv *txMemoryView) UpdatePerson(_ context.Context, p lessons.Person) error {
	return tv.parent.updatePersonLocked(p)
}

func (tv *txMemoryView) DeletePerson(_ context.Context, id int64) (bool, error) {
	return tv.parent.deletePersonLocked(id), nil
}

func (tv *txMemoryView) CreateSession(_ context.Context, s lessons.Session) error {
	return tv.parent.createSessionsLocked([]lessons.Session{s})
}

func (tv *txMemoryView) CreateSessions(_ context.Context, sessions []lessons.Session) error {
	return tv.parent.createSessionsLocked(sessions)
}

func (tv *txMemoryView) GetSession(_ context.Context, id string) (*lessons.Session, error) {
	return tv.parent.getSessionLocked(id), nil
}

func (tv *txMemoryView) QuerySessions(_ context.Context, q lessons.SessionQuery) ([]lessons.Session, error) {
	return tv.parent.querySessionsLocked(q), nil
}

func (tv *txMemoryView) UpdateSessions(_ context.Context, sessions []lessons.Session) (int, error) {
	return tv.parent.updateSessionsLocked(sessions)
}

func (tv *txMemoryView) DeleteSessions(_ context.Context, ids []string) (int, error) {
	return tv.parent.deleteSessionsLocked(ids), nil
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
