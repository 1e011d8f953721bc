package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/plus3/strata/ecs"
)

// stat is the component shape every stress component shares; K only makes the types
// distinct.
type stat[K any] struct {
	V float64
}

func (s *stat[K]) value() float64 { return s.V }
func (s *stat[K]) add(d float64)  { s.V += d }

type scalar interface {
	value() float64
	add(d float64)
}

type (
	position     struct{}
	velocity     struct{}
	acceleration struct{}
	health       struct{}
	mass         struct{}
	lifetime     struct{}
	heat         struct{}
	charge       struct{}
)

// world holds the stress components and the constructors used to spawn them.
type world struct {
	ids      []ecs.ComponentID
	spawners []func() any
}

func registerComponents(registry *ecs.ComponentRegistry) *world {
	w := &world{}
	add := func(id ecs.ComponentID, spawn func() any) {
		w.ids = append(w.ids, id)
		w.spawners = append(w.spawners, spawn)
	}
	add(ecs.RegisterComponent[stat[position]](registry), func() any { return stat[position]{V: rand.Float64()} })
	add(ecs.RegisterComponent[stat[velocity]](registry), func() any { return stat[velocity]{V: rand.Float64()} })
	add(ecs.RegisterComponent[stat[acceleration]](registry), func() any { return stat[acceleration]{V: rand.Float64()} })
	add(ecs.RegisterComponent[stat[health]](registry), func() any { return stat[health]{V: 100} })
	add(ecs.RegisterComponent[stat[mass]](registry), func() any { return stat[mass]{V: 1} })
	add(ecs.RegisterComponent[stat[lifetime]](registry), func() any { return stat[lifetime]{} })
	add(ecs.RegisterComponent[stat[heat]](registry), func() any { return stat[heat]{V: rand.Float64()} })
	add(ecs.RegisterComponent[stat[charge]](registry), func() any { return stat[charge]{V: rand.Float64()} })
	return w
}

// randomValues picks n distinct components.
func (w *world) randomValues(n int) []any {
	n = min(max(n, 1), len(w.spawners))
	values := make([]any, 0, n)
	for _, i := range rand.Perm(len(w.spawners))[:n] {
		values = append(values, w.spawners[i]())
	}
	return values
}

// populate spawns count entities with 1 to 5 random components each.
func (w *world) populate(storage *ecs.Storage, count int) error {
	for range count {
		if _, err := storage.Spawn(w.randomValues(rand.IntN(5) + 1)...); err != nil {
			return err
		}
	}
	return nil
}

// pairSystem adds src * dt to dst on every entity holding both.
type pairSystem struct {
	name     string
	dst, src ecs.ComponentID
	plan     *ecs.Plan
}

func (p *pairSystem) Name() string {
	return p.name
}

func (p *pairSystem) Execute(frame *ecs.UpdateFrame) error {
	if p.plan == nil {
		plan, err := frame.Compile(ecs.QueryDesc{
			Include: []ecs.Term{ecs.WriteOf(p.dst), ecs.ReadOf(p.src)},
		})
		if err != nil {
			return err
		}
		p.plan = plan
	} else if p.plan.Stale() {
		p.plan.Refresh()
	}
	for row := range p.plan.Iter() {
		src := row.Value(p.src).(scalar)
		row.Value(p.dst).(scalar).add(src.value() * frame.DeltaTime)
	}
	return nil
}

// churnSystem despawns a fraction of a component's holders each step and spawns as many
// replacements through commands.
type churnSystem struct {
	world *world
	id    ecs.ComponentID
	rate  float64
	plan  *ecs.Plan
}

func (c *churnSystem) Execute(frame *ecs.UpdateFrame) error {
	if c.plan == nil {
		plan, err := frame.Compile(ecs.QueryDesc{Include: []ecs.Term{ecs.ReadOf(c.id)}})
		if err != nil {
			return err
		}
		c.plan = plan
	} else if c.plan.Stale() {
		c.plan.Refresh()
	}
	for e := range c.plan.Entities() {
		if rand.Float64() >= c.rate {
			continue
		}
		frame.Commands.Despawn(e)
		if _, err := frame.Commands.Spawn(c.world.randomValues(rand.IntN(5) + 1)...); err != nil {
			return err
		}
	}
	return nil
}

// registerSystems adds count pair systems over random component pairs, split between fixed
// and per-frame timing, plus one churn system.
func registerSystems(scheduler *ecs.Scheduler, w *world, count int, fixed ecs.Timing, churn float64) error {
	for i := range count {
		perm := rand.Perm(len(w.ids))
		sys := &pairSystem{
			name: fmt.Sprintf("pair-%02d", i),
			dst:  w.ids[perm[0]],
			src:  w.ids[perm[1]],
		}
		timing := fixed
		if i%2 == 1 {
			timing = ecs.PerFrame
		}
		if err := scheduler.Register(sys, timing,
			ecs.Writes(sys.dst), ecs.Reads(sys.src)); err != nil {
			return err
		}
	}
	if churn > 0 {
		id := w.ids[rand.IntN(len(w.ids))]
		return scheduler.Register(&churnSystem{world: w, id: id, rate: churn}, fixed, ecs.Reads(id))
	}
	return nil
}
