package lessons_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lesson-engine/generic"
	"github.com/warp/lesson-engine/lessons"
	"github.com/warp/lesson-engine/lessons/store"
)

// =============================================================================
// RESOLVE-OR-CREATE
// =============================================================================

func TestResolveOrCreatePerson_Idempotent(t *testing.T) {
	mem := store.NewTxMemory()
	ctx := context.Background()

	first, created, err := lessons.ResolveOrCreatePerson(ctx, mem, "Ann", "G5")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "G5", first.Grade)

	second, created, err := lessons.ResolveOrCreatePerson(ctx, mem, "Ann", "G9")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "G5", second.Grade, "an existing person keeps their grade")

	_, _, err = lessons.ResolveOrCreatePerson(ctx, mem, "", "")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// ROSTER OPERATIONS
// =============================================================================

func TestScheduler_PersonLifecycle(t *testing.T) {
	sched, mem := newTestScheduler(t)
	ctx := context.Background()

	p, err := sched.CreatePerson(ctx, lessons.PersonFields{Name: "Ann", Grade: "G5", Progress: 40})
	require.NoError(t, err)

	updated, err := sched.UpdatePerson(ctx, p.ID, lessons.PersonFields{Name: "Ann", Grade: "G6", Progress: 55})
	require.NoError(t, err)
	assert.Equal(t, "G6", updated.Grade)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)

	_, err = sched.UpdatePerson(ctx, p.ID, lessons.PersonFields{Name: "Ann", Progress: 101})
	assert.ErrorIs(t, err, generic.ErrValidation)

	seed(t, mem, "s1", p, feb(2, 15), feb(2, 16))
	require.NoError(t, sched.DeletePerson(ctx, p.ID))

	left, err := mem.QuerySessions(ctx, lessons.SessionQuery{})
	require.NoError(t, err)
	assert.Empty(t, left, "deleting a person removes their sessions")

	_, err = sched.GetPerson(ctx, p.ID)
	assert.True(t, generic.IsNotFound(err))
	assert.True(t, generic.IsNotFound(sched.DeletePerson(ctx, p.ID)))
}

// =============================================================================
// CACHED STORE
// =============================================================================

func TestCachedStore_ServesRepeatedLookups(t *testing.T) {
	mem := store.NewTxMemory()
	ctx := context.Background()
	ann := mustPerson(t, mem, "Ann")

	cached, err := lessons.NewCachedStore(mem, 16)
	require.NoError(t, err)

	got, err := cached.GetPersonByName(ctx, "Ann")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ann.ID, got.ID)
	assert.Equal(t, 1, cached.Len())

	// A write that bypasses the wrapper is not visible until a purge.
	ann.Grade = "G7"
	require.NoError(t, mem.UpdatePerson(ctx, ann))

	stale, _ := cached.GetPersonByID(ctx, ann.ID)
	assert.Empty(t, stale.Grade)

	cached.Purge()
	fresh, _ := cached.GetPersonByID(ctx, ann.ID)
	assert.Equal(t, "G7", fresh.Grade)
}

func TestCachedStore_MutationsPurge(t *testing.T) {
	mem := store.NewTxMemory()
	ctx := context.Background()
	cached, err := lessons.NewCachedStore(mem, 16)
	require.NoError(t, err)

	ann, err := cached.CreatePerson(ctx, lessons.PersonFields{Name: "Ann"})
	require.NoError(t, err)
	_, _ = cached.GetPersonByID(ctx, ann.ID)
	require.Equal(t, 1, cached.Len())

	ann.Grade = "G3"
	require.NoError(t, cached.UpdatePerson(ctx, ann))
	assert.Zero(t, cached.Len())

	got, _ := cached.GetPersonByID(ctx, ann.ID)
	assert.Equal(t, "G3", got.Grade)

	require.NoError(t, cached.WithTx(ctx, func(tx lessons.Store) error {
		_, err := tx.CreatePerson(ctx, lessons.PersonFields{Name: "Bob"})
		return err
	}))
	assert.Zero(t, cached.Len())

	bob, err := cached.GetPersonByName(ctx, "Bob")
	require.NoError(t, err)
	require.NotNil(t, bob)

	ok, err := cached.DeletePerson(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	gone, err := cached.GetPersonByName(ctx, "Bob")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestCachedStore_DuplicateNamesResolveToOldest(t *testing.T) {
	mem := store.NewTxMemory()
	ctx := context.Background()
	older := mustPerson(t, mem, "Ann")
	newer := mustPerson(t, mem, "Ann")

	cached, err := lessons.NewCachedStore(mem, 16)
	require.NoError(t, err)

	// Looking up the newer one by id must not shadow the name lookup.
	_, _ = cached.GetPersonByID(ctx, newer.ID)
	byName, err := cached.GetPersonByName(ctx, "Ann")
	require.NoError(t, err)
	assert.Equal(t, older.ID, byName.ID)
}

func TestCachedStore_RejectsBadSize(t *testing.T) {
	_, err := lessons.NewCachedStore(store.NewTxMemory(), 0)
	assert.Error(t, err)
}
