package ecs

import (
	"reflect"
	"unsafe"

	"github.com/rotisserie/eris"
)

type singletonEntry struct {
	value   reflect.Value
	dataPtr unsafe.Pointer
}

// AddSingleton stores value as the world-wide instance of its type, replacing any previous
// one. The type must be registered; singletons share the component ID space so systems
// declare access to them like any other component.
func (s *Storage) AddSingleton(value any) error {
	if _, err := s.registry.componentOf(value); err != nil {
		return err
	}
	t := reflect.TypeOf(value)
	v := reflect.ValueOf(value)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
		v = v.Elem()
	}
	holder := reflect.New(t)
	holder.Elem().Set(v)
	s.singletons[t] = &singletonEntry{
		value:   holder,
		dataPtr: holder.UnsafePointer(),
	}
	return nil
}

// RemoveSingleton drops the singleton of type t.
func (s *Storage) RemoveSingleton(t reflect.Type) {
	delete(s.singletons, t)
}

func (s *Storage) getSingletonEntry(t reflect.Type) *singletonEntry {
	return s.singletons[t]
}

// Singleton provides access to a single component instance that is not associated with any
// entity. Use this for global game state such as the camera, input or configuration.
type Singleton[T any] struct {
	storage      *Storage
	id           ComponentID
	componentPtr unsafe.Pointer
}

// NewSingleton returns an accessor for T, creating the instance from initializer (or the
// zero value) when the storage has none. T is registered if needed.
func NewSingleton[T any](storage *Storage, initializer ...T) *Singleton[T] {
	RegisterComponent[T](storage.registry)
	t := reflect.TypeFor[T]()
	if storage.getSingletonEntry(t) == nil {
		var value T
		if len(initializer) > 0 {
			value = initializer[0]
		}
		if err := storage.AddSingleton(value); err != nil {
			panic(eris.Wrapf(err, "singleton %s", t))
		}
	}
	s := &Singleton[T]{}
	_ = s.Init(storage)
	return s
}

// Init binds the Singleton to storage. The scheduler calls it for Singleton fields of
// registered systems; T must be a registered type.
func (s *Singleton[T]) Init(storage *Storage) error {
	id, err := ComponentIDOf[T](storage.registry)
	if err != nil {
		return err
	}
	s.storage = storage
	s.id = id
	s.updateCache()
	return nil
}

// Access declares write access to T.
func (s *Singleton[T]) Access() AccessSet {
	var set AccessSet
	if s.storage != nil {
		set.Add(s.id, AccessWrite)
	}
	return set
}

// Refresh re-resolves the instance in case it was replaced or removed.
func (s *Singleton[T]) Refresh() {
	s.updateCache()
}

// Get returns a pointer to the singleton, or nil if it has not been added.
func (s *Singleton[T]) Get() *T {
	if s.componentPtr == nil {
		s.updateCache()
	}
	if s.componentPtr == nil {
		return nil
	}
	return (*T)(s.componentPtr)
}

// Exists reports whether the singleton has been added to storage.
func (s *Singleton[T]) Exists() bool {
	return s.Get() != nil
}

func (s *Singleton[T]) updateCache() {
	if s.storage == nil {
		return
	}
	if entry := s.storage.getSingletonEntry(reflect.TypeFor[T]()); entry != nil {
		s.componentPtr = entry.dataPtr
	} else {
		s.componentPtr = nil
	}
}

var _ bindable = (*Singleton[struct{}])(nil)
