package ecs

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// UpdateFrame is passed to every system execution.
type UpdateFrame struct {
	// DeltaTime is the simulated time covered by this execution in seconds: the fixed
	// interval for fixed systems, the tick's elapsed time for per-frame systems.
	DeltaTime float64
	Delta     time.Duration
	Tick      uint64
	// Alpha is how far the fastest fixed group is into its next step, in [0, 1).
	Alpha    float64
	Commands *CommandBuffer
	// World reads only what the system declared.
	World *WorldView

	ctx    context.Context
	access AccessSet
}

// Context returns the context passed to Tick.
func (f *UpdateFrame) Context() context.Context {
	if f.ctx == nil {
		return context.Background()
	}
	return f.ctx
}

// Access returns the system's declared access set.
func (f *UpdateFrame) Access() AccessSet {
	return f.access
}

// Compile compiles a plan whose terms must be covered by the system's declared access.
func (f *UpdateFrame) Compile(desc QueryDesc) (*Plan, error) {
	for _, t := range append(append([]Term{}, desc.Include...), desc.Optional...) {
		if !f.access.Allows(t.ID, t.Access) {
			return nil, eris.Wrapf(ErrUndeclaredAccess, "%s access to component %d", t.Access, t.ID)
		}
	}
	return f.World.storage.Compile(desc)
}
