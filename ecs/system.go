package ecs

import (
	"fmt"
	"time"
)

// System represents a behavior that operates on entities with specific components.
// User-defined systems implement this interface and can include Query and Singleton fields,
// which the scheduler binds and folds into the system's declared access, as well as custom
// state fields that persist between runs. A system with a Name() string method is reported
// under that name unless WithName overrides it.
type System interface {
	Execute(frame *UpdateFrame) error
}

// SystemFunc adapts a function to System. Function systems have no Query fields, so they
// declare access through Reads and Writes options and compile plans with UpdateFrame.Compile.
type SystemFunc func(frame *UpdateFrame) error

func (f SystemFunc) Execute(frame *UpdateFrame) error {
	return f(frame)
}

// AccessDeclarer is implemented by systems whose access is only known at runtime, such as
// scripted systems.
type AccessDeclarer interface {
	DeclareAccess(registry *ComponentRegistry) (AccessSet, error)
}

type timingKind uint8

const (
	timingFixed timingKind = iota
	timingPerFrame
)

// Timing decides when a system runs.
type Timing struct {
	kind     timingKind
	interval time.Duration
}

// FixedInterval runs a system once per elapsed interval of simulated time. Several steps
// may run in one tick to catch up, or none.
func FixedInterval(interval time.Duration) Timing {
	return Timing{kind: timingFixed, interval: interval}
}

// FixedRate is FixedInterval expressed in steps per second.
func FixedRate(hz float64) Timing {
	if hz <= 0 {
		return Timing{kind: timingFixed}
	}
	return FixedInterval(time.Duration(float64(time.Second) / hz))
}

// PerFrame runs a system exactly once per tick, after all fixed steps of that tick.
var PerFrame = Timing{kind: timingPerFrame}

// Interval returns the fixed interval, or zero for per-frame timing.
func (t Timing) Interval() time.Duration {
	return t.interval
}

// IsPerFrame reports whether the timing is PerFrame.
func (t Timing) IsPerFrame() bool {
	return t.kind == timingPerFrame
}

func (t Timing) String() string {
	if t.kind == timingPerFrame {
		return "per-frame"
	}
	return fmt.Sprintf("fixed(%s)", t.interval)
}

type systemConfig struct {
	name   string
	group  string
	access AccessSet
}

// SystemOption configures a registered system.
type SystemOption func(*systemConfig)

// WithName overrides the name used in stats, logs and failures.
func WithName(name string) SystemOption {
	return func(c *systemConfig) {
		c.name = name
	}
}

// Reads declares read access to ids.
func Reads(ids ...ComponentID) SystemOption {
	return func(c *systemConfig) {
		for _, id := range ids {
			c.access.Add(id, AccessRead)
		}
	}
}

// Writes declares write access to ids.
func Writes(ids ...ComponentID) SystemOption {
	return func(c *systemConfig) {
		for _, id := range ids {
			c.access.Add(id, AccessWrite)
		}
	}
}

// InParallel places the system in a named parallel group. Systems sharing a group and a
// stage must not conflict; Build rejects the schedule with ErrQueryAccessConflict if they do.
// Systems outside any group that conflict are simply ordered by registration.
func InParallel(group string) SystemOption {
	return func(c *systemConfig) {
		c.group = group
	}
}
