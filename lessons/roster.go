package lessons

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/warp/lesson-engine/generic"
)

// =============================================================================
// RESOLVE-OR-CREATE
// =============================================================================

// ResolveOrCreatePerson looks a person up by name and provisions one with the
// given grade when absent. created reports whether provisioning happened.
// Calling it twice with the same name never creates a duplicate.
func ResolveOrCreatePerson(ctx context.Context, st Store, name, grade string) (person Person, created bool, err error) {
	existing, err := st.GetPersonByName(ctx, name)
	if err != nil {
		return Person{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}
	fields := PersonFields{Name: name, Grade: grade}
	if err := fields.Validate(); err != nil {
		return Person{}, false, err
	}
	p, err := st.CreatePerson(ctx, fields)
	if err != nil {
		return Person{}, false, err
	}
	return p, true, nil
}

// =============================================================================
// ROSTER OPERATIONS
// =============================================================================

func (s *Scheduler) CreatePerson(ctx context.Context, fields PersonFields) (Person, error) {
	if err := fields.Validate(); err != nil {
		return Person{}, err
	}
	p, err := s.Store.CreatePerson(ctx, fields)
	if err != nil {
		return Person{}, err
	}
	s.Logger.Info("person created", "id", p.ID, "name", p.Name)
	return p, nil
}

func (s *Scheduler) GetPerson(ctx context.Context, id int64) (*Person, error) {
	p, err := s.Store.GetPersonByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &generic.NotFoundError{Kind: "person", Key: personKey(id)}
	}
	return p, nil
}

func (s *Scheduler) ListPersons(ctx context.Context) ([]Person, error) {
	return s.Store.ListPersons(ctx)
}

// UpdatePerson replaces the writable fields of person id.
func (s *Scheduler) UpdatePerson(ctx context.Context, id int64, fields PersonFields) (*Person, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	var updated Person
	err := s.Store.WithTx(ctx, func(tx Store) error {
		cur, err := tx.GetPersonByID(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return &generic.NotFoundError{Kind: "person", Key: personKey(id)}
		}
		updated = *cur
		updated.Name = fields.Name
		updated.Grade = fields.Grade
		updated.Phone = fields.Phone
		updated.ParentContact = fields.ParentContact
		updated.Progress = fields.Progress
		updated.Notes = fields.Notes
		return tx.UpdatePerson(ctx, updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeletePerson removes the person and, by cascade, all of their sessions.
func (s *Scheduler) DeletePerson(ctx context.Context, id int64) error {
	ok, err := s.Store.DeletePerson(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &generic.NotFoundError{Kind: "person", Key: personKey(id)}
	}
	s.Logger.Info("person deleted", "id", id)
	return nil
}

// =============================================================================
// CACHED STORE - Read-through roster cache
// =============================================================================

// CachedStore serves person lookups from a bounded LRU in front of another
// TxStore. Every roster mutation, and every WithTx, purges the cache.
// Reads made inside WithTx bypass the cache and see the transaction's view.
type CachedStore struct {
	TxStore

	byID   *lru.Cache[int64, Person]
	byName *lru.Cache[string, Person]

	// gen guards against a read that raced a purge re-populating stale data.
	mu  sync.Mutex
	gen uint64
}

// NewCachedStore wraps inner with caches holding up to size persons each.
func NewCachedStore(inner TxStore, size int) (*CachedStore, error) {
	byID, err := lru.New[int64, Person](size)
	if err != nil {
		return nil, fmt.Errorf("roster cache: %w", err)
	}
	byName, err := lru.New[string, Person](size)
	if err != nil {
		return nil, fmt.Errorf("roster cache: %w", err)
	}
	return &CachedStore{TxStore: inner, byID: byID, byName: byName}, nil
}

// Purge drops every cached person.
func (c *CachedStore) Purge() {
	c.mu.Lock()
	c.gen++
	c.byID.Purge()
	c.byName.Purge()
	c.mu.Unlock()
}

func (c *CachedStore) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// remember caches p under its id, and under its name only when it came from a
// name lookup (names are not unique, the oldest holder wins).
func (c *CachedStore) remember(gen uint64, p Person, byName bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.byID.Add(p.ID, p)
	if byName {
		c.byName.Add(p.Name, p)
	}
}

func (c *CachedStore) GetPersonByID(ctx context.Context, id int64) (*Person, error) {
	if p, ok := c.byID.Get(id); ok {
		return &p, nil
	}
	gen := c.generation()
	p, err := c.TxStore.GetPersonByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	c.remember(gen, *p, false)
	return p, nil
}

func (c *CachedStore) GetPersonByName(ctx context.Context, name string) (*Person, error) {
	if p, ok := c.byName.Get(name); ok {
		return &p, nil
	}
	gen := c.generation()
	p, err := c.TxStore.GetPersonByName(ctx, name)
	if err != nil || p == nil {
		return p, err
	}
	c.remember(gen, *p, true)
	return p, nil
}

func (c *CachedStore) CreatePerson(ctx context.Context, fields PersonFields) (Person, error) {
	defer c.Purge()
	return c.TxStore.CreatePerson(ctx, fields)
}

func (c *CachedStore) UpdatePerson(ctx context.Context, p Person) error {
	defer c.Purge()
	return c.TxStore.UpdatePerson(ctx, p)
}

func (c *CachedStore) DeletePerson(ctx context.Context, id int64) (bool, error) {
	defer c.Purge()
	return c.TxStore.DeletePerson(ctx, id)
}

func (c *CachedStore) WithTx(ctx context.Context, fn func(Store) error) error {
	defer c.Purge()
	return c.TxStore.WithTx(ctx, fn)
}

// Len reports how many persons are cached by id.
func (c *CachedStore) Len() int { return c.byID.Len() }
