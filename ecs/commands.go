package ecs

import (
	"reflect"

	"github.com/rotisserie/eris"
)

// CommandKind is the kind of a deferred structural change.
type CommandKind uint8

const (
	CommandSpawn CommandKind = iota
	CommandDespawn
	CommandAddComponent
	CommandRemoveComponent
	CommandDefer
)

func (k CommandKind) String() string {
	switch k {
	case CommandSpawn:
		return "spawn"
	case CommandDespawn:
		return "despawn"
	case CommandAddComponent:
		return "add"
	case CommandRemoveComponent:
		return "remove"
	default:
		return "defer"
	}
}

// Command is one recorded structural change.
type Command struct {
	Kind      CommandKind
	Entity    Entity
	Values    []any
	Component ComponentID
	fn        func()
}

// SkippedCommand is a command that could not be applied because its entity was stale.
type SkippedCommand struct {
	Command Command
	Err     error
}

// CommandBuffer records structural changes issued while systems run. Buffers are applied at
// the next barrier in recorded order, which keeps storage structure fixed for the duration
// of a stage. A buffer is owned by one system and is not safe for concurrent use.
type CommandBuffer struct {
	storage  *Storage
	commands []Command
}

// NewCommandBuffer creates a buffer that validates and applies against storage.
func NewCommandBuffer(storage *Storage) *CommandBuffer {
	return &CommandBuffer{storage: storage}
}

// Spawn records a spawn and returns the provisional handle of the new entity. The handle
// becomes alive when the buffer is applied and may be used by later commands.
func (c *CommandBuffer) Spawn(values ...any) (Entity, error) {
	copied, err := c.normalize(values)
	if err != nil {
		return Entity{}, err
	}
	e := c.storage.entities.Reserve()
	c.commands = append(c.commands, Command{Kind: CommandSpawn, Entity: e, Values: copied})
	return e, nil
}

// Despawn records the removal of e.
func (c *CommandBuffer) Despawn(e Entity) {
	c.commands = append(c.commands, Command{Kind: CommandDespawn, Entity: e})
}

// AddComponent records adding value to e. If e already holds the type when the buffer is
// applied, the value is overwritten.
func (c *CommandBuffer) AddComponent(e Entity, value any) error {
	copied, err := c.normalize([]any{value})
	if err != nil {
		return err
	}
	c.commands = append(c.commands, Command{Kind: CommandAddComponent, Entity: e, Values: copied})
	return nil
}

// RemoveComponent records removing id from e.
func (c *CommandBuffer) RemoveComponent(e Entity, id ComponentID) error {
	if !c.storage.registry.Registered(id) {
		return eris.Wrapf(ErrUnknownComponentType, "id %d", id)
	}
	c.commands = append(c.commands, Command{Kind: CommandRemoveComponent, Entity: e, Component: id})
	return nil
}

// Remove records removing T from e.
func Remove[T any](c *CommandBuffer, e Entity) error {
	id, err := ComponentIDOf[T](c.storage.registry)
	if err != nil {
		return err
	}
	return c.RemoveComponent(e, id)
}

// Defer records fn to run at the barrier, after the structural changes recorded before it.
func (c *CommandBuffer) Defer(fn func()) {
	c.commands = append(c.commands, Command{Kind: CommandDefer, fn: fn})
}

// Len returns the number of recorded commands.
func (c *CommandBuffer) Len() int {
	return len(c.commands)
}

// Commands returns the recorded commands.
func (c *CommandBuffer) Commands() []Command {
	return c.commands
}

// Flush applies every command in recorded order and resets the buffer. Commands targeting
// stale entities are skipped and returned. Any other failure is fatal: application stops,
// the remaining commands are discarded and the error is returned.
func (c *CommandBuffer) Flush() ([]SkippedCommand, error) {
	var skipped []SkippedCommand
	for i, cmd := range c.commands {
		err := c.apply(cmd)
		if err == nil {
			continue
		}
		if eris.Is(err, ErrStaleEntity) {
			if cmd.Kind == CommandSpawn {
				_ = c.storage.entities.Release(cmd.Entity)
			}
			skipped = append(skipped, SkippedCommand{Command: cmd, Err: err})
			continue
		}
		if cmd.Kind == CommandSpawn {
			_ = c.storage.entities.Release(cmd.Entity)
		}
		c.release(c.commands[i+1:])
		c.reset()
		return skipped, eris.Wrapf(err, "apply %s %s", cmd.Kind, cmd.Entity)
	}
	c.reset()
	return skipped, nil
}

func (c *CommandBuffer) apply(cmd Command) error {
	switch cmd.Kind {
	case CommandSpawn:
		return c.storage.SpawnReserved(cmd.Entity, cmd.Values...)
	case CommandDespawn:
		return c.storage.Despawn(cmd.Entity)
	case CommandAddComponent:
		return c.storage.AddComponent(cmd.Entity, cmd.Values[0])
	case CommandRemoveComponent:
		return c.storage.RemoveComponent(cmd.Entity, cmd.Component)
	case CommandDefer:
		cmd.fn()
	}
	return nil
}

// Discard drops every recorded command and releases the handles reserved by spawns.
func (c *CommandBuffer) Discard() {
	c.release(c.commands)
	c.reset()
}

func (c *CommandBuffer) release(commands []Command) {
	for _, cmd := range commands {
		if cmd.Kind == CommandSpawn {
			_ = c.storage.entities.Release(cmd.Entity)
		}
	}
}

func (c *CommandBuffer) reset() {
	clear(c.commands)
	c.commands = c.commands[:0]
}

// normalize validates registration and copies values so later writes by the caller do not
// leak into the recorded command.
func (c *CommandBuffer) normalize(values []any) ([]any, error) {
	out := make([]any, len(values))
	seen := make(map[ComponentID]struct{}, len(values))
	for i, v := range values {
		id, err := c.storage.registry.componentOf(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			return nil, eris.Wrapf(ErrSignatureMismatch, "component %d given twice", id)
		}
		seen[id] = struct{}{}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr {
			v = rv.Elem().Interface()
		}
		out[i] = v
	}
	return out, nil
}
