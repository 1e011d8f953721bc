package ecs

import (
	"reflect"
	"sync"

	"github.com/rotisserie/eris"
)

// ComponentID identifies a registered component type. IDs are dense and assigned in
// registration order.
type ComponentID uint32

// Layout describes the memory shape of a registered component type.
type Layout struct {
	ID    ComponentID
	Name  string
	Type  reflect.Type
	Size  uintptr
	Align int
}

type componentInfo struct {
	layout  Layout
	factory func() abstractColumn
}

// ComponentRegistry manages component type registration for an ECS instance.
// Each Storage instance has its own ComponentRegistry, allowing multiple
// independent worlds to coexist without interference.
type ComponentRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]ComponentID
	byName map[string]ComponentID
	infos  []componentInfo
}

// NewComponentRegistry creates a new component registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		byType: make(map[reflect.Type]ComponentID),
		byName: make(map[string]ComponentID),
	}
}

// RegisterComponent registers T and returns its ID. Registering the same type twice returns
// the original ID. Pointers, maps, channels and functions are not value types and panic.
func RegisterComponent[T any](r *ComponentRegistry) ComponentID {
	t := reflect.TypeFor[T]()
	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		panic("components cannot be pointers, maps, channels, interfaces or functions: " + t.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byType[t]; ok {
		return id
	}

	id := ComponentID(len(r.infos))
	name := t.Name()
	if _, taken := r.byName[name]; name == "" || taken {
		name = t.String()
	}
	r.infos = append(r.infos, componentInfo{
		layout: Layout{
			ID:    id,
			Name:  name,
			Type:  t,
			Size:  t.Size(),
			Align: t.Align(),
		},
		factory: func() abstractColumn { return newColumn[T](id) },
	})
	r.byType[t] = id
	r.byName[name] = id
	if full := t.String(); full != name {
		r.byName[full] = id
	}
	return id
}

// ComponentIDOf returns the ID of a registered type.
func ComponentIDOf[T any](r *ComponentRegistry) (ComponentID, error) {
	return r.Lookup(reflect.TypeFor[T]())
}

// MustComponentID is ComponentIDOf that panics for unregistered types.
func MustComponentID[T any](r *ComponentRegistry) ComponentID {
	id, err := ComponentIDOf[T](r)
	if err != nil {
		panic(err)
	}
	return id
}

// Lookup returns the ID registered for t.
func (r *ComponentRegistry) Lookup(t reflect.Type) (ComponentID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byType[t]
	if !ok {
		return 0, eris.Wrapf(ErrUnknownComponentType, "type %s", t)
	}
	return id, nil
}

// ByName resolves a component by its short or fully qualified type name.
func (r *ComponentRegistry) ByName(name string) (ComponentID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return 0, eris.Wrapf(ErrUnknownComponentType, "name %q", name)
	}
	return id, nil
}

// Layout returns the layout for id.
func (r *ComponentRegistry) Layout(id ComponentID) (Layout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.infos) {
		return Layout{}, eris.Wrapf(ErrUnknownComponentType, "id %d", id)
	}
	return r.infos[id].layout, nil
}

// Registered reports whether id has been assigned.
func (r *ComponentRegistry) Registered(id ComponentID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(id) < len(r.infos)
}

// Layouts returns every registered layout sorted by ID. IDs are dense indexes into infos.
func (r *ComponentRegistry) Layouts() []Layout {
	r.mu.RLock()
	defer r.mu.RUnlock()
	layouts := make([]Layout, len(r.infos))
	for i, info := range r.infos {
		layouts[i] = info.layout
	}
	return layouts
}

// Len returns the number of registered types.
func (r *ComponentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.infos)
}

func (r *ComponentRegistry) newColumn(id ComponentID) abstractColumn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.infos[id].factory()
}

func (r *ComponentRegistry) validate(ids []ComponentID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range ids {
		if int(id) >= len(r.infos) {
			return eris.Wrapf(ErrUnknownComponentType, "id %d", id)
		}
	}
	return nil
}

// componentOf resolves the ID of a component value, accepting T or *T.
func (r *ComponentRegistry) componentOf(value any) (ComponentID, error) {
	if value == nil {
		return 0, eris.Wrap(ErrUnknownComponentType, "nil component")
	}
	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Ptr {
		if reflect.ValueOf(value).IsNil() {
			return 0, eris.Wrapf(ErrSignatureMismatch, "nil %s", t)
		}
		t = t.Elem()
	}
	return r.Lookup(t)
}
