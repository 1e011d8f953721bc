package ecs

import (
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
)

// Entity is a generational handle to a row of components. The zero value is never alive
// because generations start at 1.
type Entity struct {
	Index      uint32
	Generation uint32
}

func (e Entity) IsZero() bool {
	return e.Generation == 0
}

func (e Entity) String() string {
	return fmt.Sprintf("%d:%d", e.Index, e.Generation)
}

type slotState uint8

const (
	slotFree slotState = iota
	slotReserved
	slotAlive
)

type entitySlot struct {
	generation uint32
	state      slotState
}

// EntityRegistry allocates and recycles entity handles. Freed indexes are reused in LIFO
// order with a bumped generation so old handles can be detected as stale.
type EntityRegistry struct {
	mu    sync.Mutex
	slots []entitySlot
	free  []uint32
	alive int
}

// NewEntityRegistry creates an empty registry.
func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{}
}

// Allocate returns a new live entity.
func (r *EntityRegistry) Allocate() Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.take()
	r.slots[e.Index].state = slotAlive
	r.alive++
	return e
}

// Reserve returns a handle that is not yet alive. It becomes alive through Activate or is
// returned to the free list through Release.
func (r *EntityRegistry) Reserve() Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.take()
	r.slots[e.Index].state = slotReserved
	return e
}

func (r *EntityRegistry) take() Entity {
	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]
		return Entity{Index: idx, Generation: r.slots[idx].generation}
	}
	r.slots = append(r.slots, entitySlot{generation: 1})
	return Entity{Index: uint32(len(r.slots) - 1), Generation: 1}
}

// Activate turns a reserved handle into a live entity.
func (r *EntityRegistry) Activate(e Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.matches(e, slotReserved) {
		return eris.Wrapf(ErrStaleEntity, "activate %s", e)
	}
	r.slots[e.Index].state = slotAlive
	r.alive++
	return nil
}

// Release returns a reserved handle that was never activated.
func (r *EntityRegistry) Release(e Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.matches(e, slotReserved) {
		return eris.Wrapf(ErrStaleEntity, "release %s", e)
	}
	r.recycle(e.Index)
	return nil
}

// Free destroys a live entity. The index is recycled with an incremented generation.
func (r *EntityRegistry) Free(e Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.matches(e, slotAlive) {
		return eris.Wrapf(ErrStaleEntity, "free %s", e)
	}
	r.recycle(e.Index)
	r.alive--
	return nil
}

func (r *EntityRegistry) recycle(idx uint32) {
	slot := &r.slots[idx]
	slot.generation++
	if slot.generation == 0 {
		// Skip zero on wrap so the zero Entity stays invalid.
		slot.generation = 1
	}
	slot.state = slotFree
	r.free = append(r.free, idx)
}

func (r *EntityRegistry) matches(e Entity, state slotState) bool {
	if int(e.Index) >= len(r.slots) {
		return false
	}
	slot := r.slots[e.Index]
	return slot.generation == e.Generation && slot.state == state
}

// IsAlive reports whether the handle refers to a live entity.
func (r *EntityRegistry) IsAlive(e Entity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matches(e, slotAlive)
}

// IsReserved reports whether the handle is a reservation awaiting activation.
func (r *EntityRegistry) IsReserved(e Entity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matches(e, slotReserved)
}

// Len returns the number of live entities.
func (r *EntityRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alive
}

// Cap returns the number of indexes ever handed out.
func (r *EntityRegistry) Cap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}
