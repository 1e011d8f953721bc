// Package debugui draws Dear ImGui debug windows on top of any render system: performance
// stats, an archetype viewer, an entity browser, a component inspector and a query
// debugger. The windows only read the world; inspector edits are recorded as commands and
// applied at the render barrier.
package debugui

import (
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/rotisserie/eris"

	"github.com/plus3/strata/ecs"
)

// ImguiItem is a component that holds a Dear ImGui render function.
// Attach this to entities that should render ImGui widgets each frame.
type ImguiItem struct {
	Render func()
}

// OverlayOption configures an Overlay.
type OverlayOption func(*Overlay)

// WithStats shows per-system scheduler statistics in the performance window.
func WithStats(source func() *ecs.SchedulerStats) OverlayOption {
	return func(o *Overlay) {
		o.Performance.source = source
	}
}

// WithHistory sets how many frames the frame time graph keeps.
func WithHistory(frames int) OverlayOption {
	return func(o *Overlay) {
		o.Performance = NewPerformanceStats(frames, o.Performance.source)
	}
}

// WithPageSize sets how many entities the browser lists per page.
func WithPageSize(n int) OverlayOption {
	return func(o *Overlay) {
		o.Browser.perPage = n
	}
}

// Overlay wraps a render system and draws the debug windows after it.
type Overlay struct {
	inner ecs.RenderSystem

	// Visible toggles drawing. The panels keep tracking the world while hidden.
	Visible bool

	Performance *PerformanceStats
	Archetypes  *ArchetypeViewer
	Browser     *EntityBrowser
	Inspector   *ComponentInspector
	Queries     *QueryDebugger

	items *ecs.Plan
}

func NewOverlay(inner ecs.RenderSystem, opts ...OverlayOption) *Overlay {
	o := &Overlay{
		inner:       inner,
		Visible:     true,
		Performance: NewPerformanceStats(120, nil),
		Archetypes:  NewArchetypeViewer(),
		Browser:     NewEntityBrowser(100),
		Inspector:   NewComponentInspector(),
		Queries:     NewQueryDebugger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DeclareAccess forwards the wrapped system's access and adds read access to ImguiItem
// when it is registered.
func (o *Overlay) DeclareAccess(registry *ecs.ComponentRegistry) (ecs.AccessSet, error) {
	var access ecs.AccessSet
	if declarer, ok := o.inner.(ecs.AccessDeclarer); ok {
		inner, err := declarer.DeclareAccess(registry)
		if err != nil {
			return access, err
		}
		access.Merge(inner)
	}
	if id, err := ecs.ComponentIDOf[ImguiItem](registry); err == nil {
		access.Add(id, ecs.AccessRead)
	}
	return access, nil
}

func (o *Overlay) Setup(world *ecs.WorldView) error {
	if o.inner != nil {
		if err := o.inner.Setup(world); err != nil {
			return err
		}
	}
	if id, err := ecs.ComponentIDOf[ImguiItem](world.Registry()); err == nil {
		plan, err := world.Compile(ecs.QueryDesc{Include: []ecs.Term{ecs.ReadOf(id)}})
		if err != nil {
			return eris.Wrap(err, "imgui items")
		}
		o.items = plan
	}
	return nil
}

func (o *Overlay) Render(world *ecs.WorldView, frame *ecs.FrameContext) error {
	if o.inner != nil {
		if err := o.inner.Render(world, frame); err != nil {
			return err
		}
	}

	o.Performance.Record(frame.DeltaTime)
	o.Archetypes.Refresh(world)
	o.Browser.Refresh(world)
	o.Queries.Refresh(world)

	if !o.Visible {
		return nil
	}

	o.Performance.draw(world)
	if clicked := o.Archetypes.draw(); clicked != nil {
		o.Browser.SetArchetype(clicked)
	}
	o.Browser.draw()
	o.Inspector.draw(world, frame.Commands, o.Browser.Selected())
	o.Queries.draw()

	if o.items != nil {
		if o.items.Stale() {
			o.items.Refresh()
		}
		for row := range o.items.Iter() {
			item, _ := ecs.Read[ImguiItem](row)
			if item.Render != nil {
				item.Render()
			}
		}
	}
	return nil
}

func (o *Overlay) OnResize(dims ecs.Dimensions) {
	if o.inner != nil {
		o.inner.OnResize(dims)
	}
}

// WantCapture reports whether ImGui is consuming mouse or keyboard input, so game input
// handling can skip the frame.
func WantCapture() (mouse, keyboard bool) {
	io := imgui.CurrentIO()
	return io.WantCaptureMouse(), io.WantCaptureKeyboard()
}

var (
	_ ecs.RenderSystem   = (*Overlay)(nil)
	_ ecs.AccessDeclarer = (*Overlay)(nil)
)
