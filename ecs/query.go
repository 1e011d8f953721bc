package ecs

import (
	"iter"
	"unsafe"
)

// Query is a typed view over a compiled plan. T is a struct whose fields name the
// components to visit; see viewLayout for the field forms. Systems hold Query fields and
// the scheduler binds them on registration, derives the system's access set from them and
// refreshes them before every execution.
//
// Pointer fields that use the "read" option point at a copy owned by the query, which is
// overwritten by the next row.
type Query[T any] struct {
	layout viewLayout
	plan   *Plan
	err    error
}

// NewQuery compiles a Query over storage.
func NewQuery[T any](storage *Storage) (*Query[T], error) {
	q := &Query[T]{}
	if err := q.Init(storage); err != nil {
		return nil, err
	}
	return q, nil
}

// Init compiles the query against storage. The scheduler calls it for Query fields of
// registered systems.
func (q *Query[T]) Init(storage *Storage) error {
	q.layout = parseViewLayout[T]()
	desc, err := q.layout.desc(storage.registry)
	if err != nil {
		q.err = err
		return err
	}
	plan, err := storage.Compile(desc)
	if err != nil {
		q.err = err
		return err
	}
	q.plan = plan
	q.err = nil
	return nil
}

// Plan returns the underlying plan.
func (q *Query[T]) Plan() *Plan {
	return q.plan
}

// Access returns the access set implied by T.
func (q *Query[T]) Access() AccessSet {
	if q.plan == nil {
		return AccessSet{}
	}
	return q.plan.access
}

// Refresh picks up archetypes created since the last refresh.
func (q *Query[T]) Refresh() {
	if q.plan != nil {
		q.plan.Refresh()
	}
}

// Iter yields each matching entity with its populated view.
func (q *Query[T]) Iter() iter.Seq2[Entity, T] {
	return func(yield func(Entity, T) bool) {
		if q.plan == nil {
			return
		}
		var result T
		resultPtr := unsafe.Pointer(&result)
		for i := range q.plan.matches {
			m := &q.plan.matches[i]
			for row := 0; row < m.arch.Len(); row++ {
				if !q.layout.fill(resultPtr, m, row, false) {
					continue
				}
				if !yield(m.arch.entities[row], result) {
					return
				}
			}
		}
	}
}

// Values yields only the populated views.
func (q *Query[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, value := range q.Iter() {
			if !yield(value) {
				return
			}
		}
	}
}

// Get populates the view for a single entity as a read-only lookup: pointer fields point
// at copies, so writes through them do not reach the storage. It returns false when e is
// stale or not matched.
func (q *Query[T]) Get(e Entity) (T, bool) {
	var result T
	if q.plan == nil {
		return result, false
	}
	row, ok := q.plan.Lookup(e)
	if !ok {
		return result, false
	}
	if !q.layout.fill(unsafe.Pointer(&result), row.match, row.row, true) {
		return result, false
	}
	return result, true
}

// Count returns the number of matching entities.
func (q *Query[T]) Count() int {
	if q.plan == nil {
		return 0
	}
	return q.plan.Len()
}

// Err returns the error from the last Init, if any.
func (q *Query[T]) Err() error {
	return q.err
}

// bindable is implemented by system fields the scheduler initializes on registration.
type bindable interface {
	Init(storage *Storage) error
	Access() AccessSet
	Refresh()
}

var _ bindable = (*Query[struct{}])(nil)
