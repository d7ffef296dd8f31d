package db

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type note struct {
	ID   string
	Text string
}

func (n note) GetID() string { return n.ID }

func allColumns(typ reflect.Type) ([][]int, error) {
	indexes := make([][]int, typ.NumField())
	for i := range indexes {
		indexes[i] = []int{i}
	}
	return indexes, nil
}

func newNoteTracker() *tracker {
	tr := newTracker(allColumns)
	tr.register(reflect.TypeOf(note{}), func(entity any) any {
		return entity.(*note).GetID()
	})
	return tr
}

func TestEntityStateString(t *testing.T) {
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "EntityState(9)", EntityState(9).String())
}

func TestTrackerIgnoresUnregisteredTypes(t *testing.T) {
	tr := newNoteTracker()

	tr.add(&struct{ ID int }{ID: 1})
	tr.add((*note)(nil))
	assert.Empty(t, tr.list())

	entity, ok := tr.attach(note{ID: "value"})
	assert.False(t, ok)
	assert.Equal(t, note{ID: "value"}, entity)
}

func TestTrackerAddThenRemoveDetaches(t *testing.T) {
	var (
		tr = newNoteTracker()
		n  = &note{ID: "a"}
	)

	tr.add(n)
	assert.Equal(t, Added, tr.state(n))

	tr.remove(n)
	assert.Equal(t, Detached, tr.state(n))
	assert.Empty(t, tr.pending())
}

func TestTrackerAttachResolvesIdentity(t *testing.T) {
	var (
		tr     = newNoteTracker()
		first  = &note{ID: "a", Text: "one"}
		second = &note{ID: "a", Text: "stale"}
	)

	got, ok := tr.attach(first)
	assert.True(t, ok)
	assert.Same(t, first, got)

	got, ok = tr.attach(second)
	assert.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, Detached, tr.state(second))

	found, ok := tr.lookup(reflect.TypeOf(note{}), "a")
	assert.True(t, ok)
	assert.Same(t, first, found)
}

func TestTrackerDetectChanges(t *testing.T) {
	var (
		tr        = newNoteTracker()
		unchanged = &note{ID: "a", Text: "one"}
		edited    = &note{ID: "b", Text: "two"}
	)

	tr.attach(unchanged)
	tr.attach(edited)
	edited.Text = "changed"

	assert.NoError(t, tr.detectChanges())
	assert.Equal(t, Unchanged, tr.state(unchanged))
	assert.Equal(t, Modified, tr.state(edited))
	assert.Len(t, tr.pending(), 1)

	tr.acceptChanges()
	assert.Equal(t, Unchanged, tr.state(edited))
	assert.NoError(t, tr.detectChanges())
	assert.Empty(t, tr.pending())
}

func TestTrackerStageReplacesSameKey(t *testing.T) {
	var (
		tr       = newNoteTracker()
		loaded   = &note{ID: "a", Text: "db"}
		replaced = &note{ID: "a", Text: "client"}
	)

	tr.attach(loaded)
	tr.add(replaced)

	assert.Equal(t, Detached, tr.state(loaded))
	assert.Equal(t, Modified, tr.state(replaced))
	assert.Len(t, tr.list(), 1)
}

func TestTrackerUpdateSkipsTracked(t *testing.T) {
	var (
		tr       = newNoteTracker()
		tracked  = &note{ID: "a"}
		detached = &note{ID: "b"}
	)

	tr.attach(tracked)
	tr.update(tracked)
	tr.update(detached)

	assert.Equal(t, Unchanged, tr.state(tracked))
	assert.Equal(t, Modified, tr.state(detached))
}

func TestTrackerAcceptChanges(t *testing.T) {
	var (
		tr      = newNoteTracker()
		added   = &note{}
		deleted = &note{ID: "b"}
	)

	tr.add(added)
	tr.attach(deleted)
	tr.remove(deleted)
	assert.Equal(t, Deleted, tr.state(deleted))

	// key assigned by the store during the flush
	added.ID = "generated"
	tr.acceptChanges()

	assert.Equal(t, Detached, tr.state(deleted))
	assert.Equal(t, Unchanged, tr.state(added))
	found, ok := tr.lookup(reflect.TypeOf(note{}), "generated")
	assert.True(t, ok)
	assert.Same(t, added, found)

	tr.clear()
	assert.Empty(t, tr.list())
}
