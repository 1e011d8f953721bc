// Package script runs Lua scripts as scheduler systems.
//
// A script declares the components it touches in the globals reads and writes, may narrow
// the archetypes it visits with a component query in filter, and defines update:
//
//	reads = {"Velocity"}
//	writes = {"Transform"}
//	filter = "!CONTAINS(Frozen)"
//
//	function update(dt, e)
//	  e.Transform.X = e.Transform.X + e.Velocity.DX * dt
//	end
//
// update is called once per matching entity with a table holding a copy of each declared
// component plus _id and _gen. Changes to writable components are copied back after the
// call. The functions spawn{Name = {...}}, despawn(e) and log(msg) record commands or log
// through the scheduler's logger.
package script

import (
	"os"
	"reflect"

	"github.com/rotisserie/eris"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/plus3/strata/cql"
	"github.com/plus3/strata/ecs"
)

type binding struct {
	id     ecs.ComponentID
	name   string
	access ecs.Access
}

// System is a Lua script adapted to ecs.System. A System is executed by one goroutine at a
// time, which the scheduler guarantees.
type System struct {
	name   string
	vm     *lua.LState
	logger *zap.Logger

	reads, writes []string
	filter        string

	registry *ecs.ComponentRegistry
	bindings []binding
	desc     ecs.QueryDesc
	plan     *ecs.Plan
	frame    *ecs.UpdateFrame
}

// Load reads a script from path.
func Load(path string, logger *zap.Logger) (*System, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read script %s", path)
	}
	return New(path, string(src), logger)
}

// New compiles source and reads its declarations.
func New(name, source string, logger *zap.Logger) (*System, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &System{
		name:   name,
		vm:     lua.NewState(),
		logger: logger.With(zap.String("script", name)),
	}
	s.vm.SetGlobal("API_VERSION", lua.LNumber(1))
	s.vm.SetGlobal("spawn", s.vm.NewFunction(s.luaSpawn))
	s.vm.SetGlobal("despawn", s.vm.NewFunction(s.luaDespawn))
	s.vm.SetGlobal("log", s.vm.NewFunction(s.luaLog))

	if err := s.vm.DoString(source); err != nil {
		s.vm.Close()
		return nil, eris.Wrapf(err, "load script %s", name)
	}
	if _, ok := s.vm.GetGlobal("update").(*lua.LFunction); !ok {
		s.vm.Close()
		return nil, eris.Errorf("script %s does not define update", name)
	}

	var err error
	if s.reads, err = stringList(s.vm.GetGlobal("reads")); err != nil {
		s.vm.Close()
		return nil, eris.Wrapf(err, "script %s reads", name)
	}
	if s.writes, err = stringList(s.vm.GetGlobal("writes")); err != nil {
		s.vm.Close()
		return nil, eris.Wrapf(err, "script %s writes", name)
	}
	if f, ok := s.vm.GetGlobal("filter").(lua.LString); ok {
		s.filter = string(f)
	}
	return s, nil
}

func (s *System) Name() string {
	return s.name
}

// Close releases the Lua state.
func (s *System) Close() {
	s.vm.Close()
}

// DeclareAccess resolves the script's component names. Writes take precedence over reads
// of the same component.
func (s *System) DeclareAccess(registry *ecs.ComponentRegistry) (ecs.AccessSet, error) {
	var access ecs.AccessSet
	s.registry = registry
	s.bindings = s.bindings[:0]
	s.desc = ecs.QueryDesc{}
	s.plan = nil

	add := func(names []string, mode ecs.Access) error {
		for _, name := range names {
			id, err := registry.ByName(name)
			if err != nil {
				return eris.Wrapf(err, "script %s", s.name)
			}
			layout, err := registry.Layout(id)
			if err != nil {
				return err
			}
			access.Add(id, mode)
			s.bindings = append(s.bindings, binding{id: id, name: layout.Name, access: mode})
		}
		return nil
	}
	if err := add(s.writes, ecs.AccessWrite); err != nil {
		return access, err
	}
	if err := add(s.reads, ecs.AccessRead); err != nil {
		return access, err
	}

	seen := map[ecs.ComponentID]bool{}
	for _, b := range s.bindings {
		if seen[b.id] {
			continue
		}
		seen[b.id] = true
		mode := ecs.AccessRead
		if access.Allows(b.id, ecs.AccessWrite) {
			mode = ecs.AccessWrite
		}
		s.desc.Include = append(s.desc.Include, ecs.Term{ID: b.id, Access: mode})
	}
	if s.filter != "" {
		filter, err := cql.Parse(s.filter, registry)
		if err != nil {
			return access, eris.Wrapf(err, "script %s filter", s.name)
		}
		s.desc.Filter = filter
	}
	return access, nil
}

func (s *System) Execute(frame *ecs.UpdateFrame) error {
	if s.registry == nil {
		return eris.Errorf("script %s was not registered with a scheduler", s.name)
	}
	if s.plan == nil {
		plan, err := frame.Compile(s.desc)
		if err != nil {
			return err
		}
		s.plan = plan
	} else if s.plan.Stale() {
		s.plan.Refresh()
	}

	s.frame = frame
	defer func() { s.frame = nil }()

	fn := s.vm.GetGlobal("update")
	dt := lua.LNumber(frame.DeltaTime)
	for row := range s.plan.Iter() {
		e := row.Entity()
		t := s.vm.NewTable()
		t.RawSetString("_id", lua.LNumber(e.Index))
		t.RawSetString("_gen", lua.LNumber(e.Generation))

		values := make([]reflect.Value, len(s.desc.Include))
		for i, term := range s.desc.Include {
			values[i] = reflect.ValueOf(row.Value(term.ID)).Elem()
			t.RawSetString(s.nameOf(term.ID), toLua(s.vm, values[i]))
		}

		if err := s.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, dt, t); err != nil {
			return eris.Wrapf(err, "script %s update(%s)", s.name, e)
		}

		for i, term := range s.desc.Include {
			if term.Access != ecs.AccessWrite {
				continue
			}
			name := s.nameOf(term.ID)
			if err := fromLua(t.RawGetString(name), values[i]); err != nil {
				return eris.Wrapf(err, "script %s %s of %s", s.name, name, e)
			}
		}
	}
	return nil
}

func (s *System) nameOf(id ecs.ComponentID) string {
	for _, b := range s.bindings {
		if b.id == id {
			return b.name
		}
	}
	return ""
}

func entityArg(L *lua.LState, n int) ecs.Entity {
	t := L.CheckTable(n)
	return ecs.Entity{
		Index:      uint32(lua.LVAsNumber(t.RawGetString("_id"))),
		Generation: uint32(lua.LVAsNumber(t.RawGetString("_gen"))),
	}
}

func (s *System) luaDespawn(L *lua.LState) int {
	if s.frame == nil {
		L.RaiseError("despawn called outside update")
		return 0
	}
	s.frame.Commands.Despawn(entityArg(L, 1))
	return 0
}

func (s *System) luaSpawn(L *lua.LState) int {
	if s.frame == nil {
		L.RaiseError("spawn called outside update")
		return 0
	}
	spec := L.CheckTable(1)
	var values []any
	var failure error
	spec.ForEach(func(k, v lua.LValue) {
		if failure != nil {
			return
		}
		name := k.String()
		id, err := s.registry.ByName(name)
		if err != nil {
			failure = err
			return
		}
		layout, err := s.registry.Layout(id)
		if err != nil {
			failure = err
			return
		}
		value := reflect.New(layout.Type).Elem()
		if err := fromLua(v, value); err != nil {
			failure = eris.Wrapf(err, "component %s", name)
			return
		}
		values = append(values, value.Interface())
	})
	if failure != nil {
		L.RaiseError("spawn: %s", failure.Error())
		return 0
	}
	e, err := s.frame.Commands.Spawn(values...)
	if err != nil {
		L.RaiseError("spawn: %s", err.Error())
		return 0
	}
	t := L.NewTable()
	t.RawSetString("_id", lua.LNumber(e.Index))
	t.RawSetString("_gen", lua.LNumber(e.Generation))
	L.Push(t)
	return 1
}

func (s *System) luaLog(L *lua.LState) int {
	s.logger.Info(L.CheckString(1))
	return 0
}

var (
	_ ecs.System         = (*System)(nil)
	_ ecs.AccessDeclarer = (*System)(nil)
)
