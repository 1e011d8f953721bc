package ecs

import (
	"reflect"

	"github.com/rotisserie/eris"
)

// Dimensions is the size of the render target in pixels or cells.
type Dimensions struct {
	Width  int
	Height int
}

// FrameContext carries per-frame data to the render system.
type FrameContext struct {
	Frame      uint64
	Tick       uint64
	DeltaTime  float64
	Alpha      float64
	Dimensions Dimensions
	// Commands is applied at the barrier following the render stage.
	Commands *CommandBuffer
}

// RenderSystem consumes the settled world once per frame. Render systems only get read
// access; any structural change goes through FrameContext.Commands.
type RenderSystem interface {
	// Setup is called once before the first render.
	Setup(world *WorldView) error
	Render(world *WorldView, frame *FrameContext) error
	OnResize(dims Dimensions)
}

// WorldView is a read-only window onto a Storage. Views handed to systems through
// UpdateFrame are limited to the system's declared access; the render stage runs alone and
// gets an unrestricted view.
type WorldView struct {
	storage *Storage
	access  *AccessSet
}

// NewWorldView wraps storage without access restrictions.
func NewWorldView(storage *Storage) *WorldView {
	return &WorldView{storage: storage}
}

// restrictedTo returns a view that only reads components covered by access.
func (w *WorldView) restrictedTo(access AccessSet) *WorldView {
	return &WorldView{storage: w.storage, access: &access}
}

// Restricted reports whether the view is limited to a declared access set.
func (w *WorldView) Restricted() bool {
	return w.access != nil
}

func (w *WorldView) readable(id ComponentID) bool {
	return w.access == nil || w.access.Allows(id, AccessRead)
}

// Registry returns the component registry.
func (w *WorldView) Registry() *ComponentRegistry {
	return w.storage.registry
}

// Compile compiles a read-only plan. Write terms are rejected with ErrQueryAccessConflict;
// on a restricted view, terms outside the declared access fail with ErrUndeclaredAccess.
func (w *WorldView) Compile(desc QueryDesc) (*Plan, error) {
	for _, t := range append(append([]Term{}, desc.Include...), desc.Optional...) {
		if t.Access == AccessWrite {
			return nil, eris.Wrapf(ErrQueryAccessConflict, "write access to component %d from a read-only view", t.ID)
		}
		if !w.readable(t.ID) {
			return nil, eris.Wrapf(ErrUndeclaredAccess, "read access to component %d", t.ID)
		}
	}
	return w.storage.Compile(desc)
}

// IsAlive reports whether e is alive.
func (w *WorldView) IsAlive(e Entity) bool {
	return w.storage.IsAlive(e)
}

// Location returns where e is stored.
func (w *WorldView) Location(e Entity) (EntityLocation, bool) {
	return w.storage.Location(e)
}

// Len returns the number of live entities.
func (w *WorldView) Len() int {
	return w.storage.Len()
}

// Stats returns storage statistics.
func (w *WorldView) Stats() StorageStats {
	return w.storage.CollectStats()
}

// Components returns copies of the components e holds, keyed by component name. A
// restricted view leaves out components outside its access set.
func (w *WorldView) Components(e Entity) (map[string]any, error) {
	ptrs, err := w.storage.components(e, w.readable)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(ptrs))
	for name, ptr := range ptrs {
		out[name] = reflect.ValueOf(ptr).Elem().Interface()
	}
	return out, nil
}

// Snapshot returns the serialized form of every archetype. It reads every component, so a
// restricted view refuses it.
func (w *WorldView) Snapshot() ([]ArchetypeSnapshot, error) {
	if w.access != nil {
		return nil, eris.Wrap(ErrUndeclaredAccess, "snapshot from a system")
	}
	return w.storage.Snapshot()
}
