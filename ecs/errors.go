package ecs

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrStaleEntity is returned when an entity handle no longer refers to a live entity,
	// either because it was despawned or because its index was reused.
	ErrStaleEntity = eris.New("stale entity handle")

	// ErrUnknownComponentType is returned when a component type is used before registration.
	ErrUnknownComponentType = eris.New("component type not registered")

	// ErrQueryAccessConflict is returned when two systems that must run concurrently declare
	// conflicting access, or when a render system asks for write access.
	ErrQueryAccessConflict = eris.New("conflicting component access")

	// ErrArchetypeCapacityExceeded is returned when an archetype cannot grow any further.
	ErrArchetypeCapacityExceeded = eris.New("archetype capacity exceeded")

	// ErrSignatureMismatch is returned when component values do not match an archetype signature.
	ErrSignatureMismatch = eris.New("component values do not match signature")

	// ErrUndeclaredAccess is returned when a system touches a component it did not declare.
	ErrUndeclaredAccess = eris.New("component access not declared")

	// ErrHalted is returned by Tick once a system failure has stopped the scheduler.
	ErrHalted = eris.New("scheduler halted after system failure")

	// ErrStopped is returned by Tick after a graceful shutdown.
	ErrStopped = eris.New("scheduler stopped")
)

// SystemExecutionFailure describes a system that returned an error or panicked during a stage.
// The failing system's command buffer for that step is discarded.
type SystemExecutionFailure struct {
	System string
	Tick   uint64
	Stage  string
	Err    error
}

func (f *SystemExecutionFailure) Error() string {
	return fmt.Sprintf("system %s failed in stage %s at tick %d: %v", f.System, f.Stage, f.Tick, f.Err)
}

func (f *SystemExecutionFailure) Unwrap() error {
	return f.Err
}
