package db

import (
	"fmt"
	"reflect"

	"github.com/akrennmair/slice"
	"golang.org/x/exp/slices"
)

// EntityState is the tracking state of an entity instance.
type EntityState int

const (
	Detached EntityState = iota
	Unchanged
	Added
	Modified
	Deleted
)

func (s EntityState) String() string {
	switch s {
	case Detached:
		return "detached"
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("EntityState(%d)", int(s))
	}
}

// Entry describes one tracked instance.
type Entry struct {
	Entity any
	State  EntityState
}

type entityKey struct {
	typ reflect.Type
	id  any
}

type trackedEntry struct {
	entity   any
	typ      reflect.Type
	state    EntityState
	snapshot reflect.Value
	key      entityKey
	keyed    bool
}

type keyFunc func(entity any) any

// columnsFunc returns the struct field indexes of the mapped columns of typ.
type columnsFunc func(typ reflect.Type) ([][]int, error)

type tracker struct {
	entries []*trackedEntry
	byPtr   map[any]*trackedEntry
	byKey   map[entityKey]*trackedEntry
	keys    map[reflect.Type]keyFunc
	columns columnsFunc
}

func newTracker(columns columnsFunc) *tracker {
	return &tracker{
		byPtr:   make(map[any]*trackedEntry),
		byKey:   make(map[entityKey]*trackedEntry),
		keys:    make(map[reflect.Type]keyFunc),
		columns: columns,
	}
}

func (t *tracker) register(typ reflect.Type, fn keyFunc) {
	if _, ok := t.keys[typ]; !ok {
		t.keys[typ] = fn
	}
}

// entityType returns T for a non-nil *T whose type has a registered key.
func (t *tracker) entityType(entity any) (reflect.Type, bool) {
	v := reflect.ValueOf(entity)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() {
		return nil, false
	}

	typ := v.Type().Elem()
	_, ok := t.keys[typ]
	return typ, ok
}

func (t *tracker) keyOf(typ reflect.Type, entity any) (entityKey, bool) {
	id := t.keys[typ](entity)
	key := entityKey{typ: typ, id: id}
	if id == nil || reflect.ValueOf(id).IsZero() {
		return key, false
	}
	return key, true
}

func (t *tracker) snapshot(entity any) reflect.Value {
	v := reflect.ValueOf(entity).Elem()
	snap := reflect.New(v.Type()).Elem()
	snap.Set(v)
	return snap
}

func (t *tracker) track(entity any, typ reflect.Type, state EntityState) *trackedEntry {
	entry := &trackedEntry{
		entity: entity,
		typ:    typ,
		state:  state,
	}
	entry.key, entry.keyed = t.keyOf(typ, entity)
	if state != Added {
		entry.snapshot = t.snapshot(entity)
	}

	t.entries = append(t.entries, entry)
	t.byPtr[entity] = entry
	if entry.keyed {
		t.byKey[entry.key] = entry
	}
	return entry
}

func (t *tracker) detach(entry *trackedEntry) {
	t.entries = slices.DeleteFunc(t.entries, func(e *trackedEntry) bool {
		return e == entry
	})
	delete(t.byPtr, entry.entity)
	if entry.keyed && t.byKey[entry.key] == entry {
		delete(t.byKey, entry.key)
	}
}

// stage tracks a detached instance in state. Another instance already
// tracked under the same key is replaced; when that instance was already
// persisted an insert becomes an update of the existing row.
func (t *tracker) stage(entity any, typ reflect.Type, state EntityState) {
	if key, keyed := t.keyOf(typ, entity); keyed {
		if other, ok := t.byKey[key]; ok {
			if state == Added && other.state != Added {
				state = Modified
			}
			t.detach(other)
		}
	}
	t.track(entity, typ, state)
}

func (t *tracker) add(entity any) {
	typ, ok := t.entityType(entity)
	if !ok {
		return
	}

	if entry, ok := t.byPtr[entity]; ok {
		if entry.state == Deleted {
			entry.state = Modified
		}
		return
	}
	t.stage(entity, typ, Added)
}

// update stages a detached instance for update. Tracked instances are
// skipped; their changes are picked up at commit.
func (t *tracker) update(entity any) {
	typ, ok := t.entityType(entity)
	if !ok {
		return
	}

	if _, ok := t.byPtr[entity]; ok {
		return
	}
	t.stage(entity, typ, Modified)
}

func (t *tracker) remove(entity any) {
	typ, ok := t.entityType(entity)
	if !ok {
		return
	}

	if entry, ok := t.byPtr[entity]; ok {
		if entry.state == Added {
			t.detach(entry)
		} else {
			entry.state = Deleted
		}
		return
	}
	t.stage(entity, typ, Deleted)
}

// attach starts tracking an instance materialised by a query. When an
// instance with the same key is already tracked, that instance is returned
// instead.
func (t *tracker) attach(entity any) (any, bool) {
	typ, ok := t.entityType(entity)
	if !ok {
		return entity, false
	}

	if _, ok := t.byPtr[entity]; ok {
		return entity, true
	}

	if key, keyed := t.keyOf(typ, entity); keyed {
		if other, ok := t.byKey[key]; ok {
			return other.entity, true
		}
	}

	t.track(entity, typ, Unchanged)
	return entity, true
}

func (t *tracker) lookup(typ reflect.Type, id any) (any, bool) {
	entry, ok := t.byKey[entityKey{typ: typ, id: id}]
	if !ok {
		return nil, false
	}
	return entry.entity, true
}

func (t *tracker) state(entity any) EntityState {
	if entry, ok := t.byPtr[entity]; ok {
		return entry.state
	}
	return Detached
}

func (t *tracker) modified(entry *trackedEntry) (bool, error) {
	indexes, err := t.columns(entry.typ)
	if err != nil {
		return false, err
	}

	current := reflect.ValueOf(entry.entity).Elem()
	for _, index := range indexes {
		a, errA := entry.snapshot.FieldByIndexErr(index)
		b, errB := current.FieldByIndexErr(index)
		if (errA == nil) != (errB == nil) {
			return true, nil
		}
		if errA != nil || !a.CanInterface() {
			continue
		}
		if !reflect.DeepEqual(a.Interface(), b.Interface()) {
			return true, nil
		}
	}
	return false, nil
}

// detectChanges marks unchanged entries whose columns differ from their
// snapshot as modified.
func (t *tracker) detectChanges() error {
	for _, entry := range t.entries {
		if entry.state != Unchanged {
			continue
		}

		changed, err := t.modified(entry)
		if err != nil {
			return err
		}
		if changed {
			entry.state = Modified
		}
	}
	return nil
}

func (t *tracker) pending() []*trackedEntry {
	return slice.Filter(t.entries, func(e *trackedEntry) bool {
		return e.state == Added || e.state == Modified || e.state == Deleted
	})
}

// acceptChanges runs after a successful flush: deleted entries are dropped,
// everything else becomes unchanged under its (possibly generated) key.
func (t *tracker) acceptChanges() {
	for _, entry := range slices.Clone(t.entries) {
		if entry.state == Deleted {
			t.detach(entry)
			continue
		}

		if entry.keyed && t.byKey[entry.key] == entry {
			delete(t.byKey, entry.key)
		}
		entry.key, entry.keyed = t.keyOf(entry.typ, entry.entity)
		if entry.keyed {
			t.byKey[entry.key] = entry
		}
		entry.state = Unchanged
		entry.snapshot = t.snapshot(entry.entity)
	}
}

func (t *tracker) list() []Entry {
	return slice.Map(t.entries, func(e *trackedEntry) Entry {
		return Entry{Entity: e.entity, State: e.state}
	})
}

func (t *tracker) clear() {
	t.entries = nil
	t.byPtr = make(map[any]*trackedEntry)
	t.byKey = make(map[entityKey]*trackedEntry)
}
