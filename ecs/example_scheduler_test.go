package ecs_test

import (
	"context"
	"fmt"
	"time"

	"github.com/plus3/strata/ecs"
)

type Transform struct {
	X, Y float32
}

type Speed struct {
	DX, DY float32
}

type Hitpoints struct {
	Current, Max int
}

type PhysicsSystem struct {
	Entities ecs.Query[struct {
		*Transform
		Speed Speed
	}]
}

func (s *PhysicsSystem) Execute(frame *ecs.UpdateFrame) error {
	for entity := range s.Entities.Values() {
		entity.Transform.X += entity.Speed.DX * float32(frame.DeltaTime)
		entity.Transform.Y += entity.Speed.DY * float32(frame.DeltaTime)
	}
	return nil
}

type HealingSystem struct {
	Entities  ecs.Query[struct{ *Hitpoints }]
	RegenRate float64
}

func (s *HealingSystem) Execute(frame *ecs.UpdateFrame) error {
	for entity := range s.Entities.Values() {
		if entity.Hitpoints.Current < entity.Hitpoints.Max {
			entity.Hitpoints.Current += int(s.RegenRate * frame.DeltaTime)
			entity.Hitpoints.Current = min(entity.Hitpoints.Current, entity.Hitpoints.Max)
		}
	}
	return nil
}

// ExampleScheduler builds a small game loop. Physics runs on a fixed 100ms step, healing
// once per tick. The two systems touch disjoint components so they may run concurrently.
func ExampleScheduler() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Transform](registry)
	ecs.RegisterComponent[Speed](registry)
	ecs.RegisterComponent[Hitpoints](registry)
	storage := ecs.NewStorage(registry)

	storage.MustSpawn(Transform{X: 0, Y: 0}, Speed{DX: 10, DY: 5}, Hitpoints{Current: 80, Max: 100})
	storage.MustSpawn(Transform{X: 100, Y: 100}, Speed{DX: -5, DY: -5}, Hitpoints{Current: 50, Max: 100})

	scheduler := ecs.NewScheduler(storage)
	_ = scheduler.Register(&PhysicsSystem{}, ecs.FixedInterval(100*time.Millisecond))
	_ = scheduler.Register(&HealingSystem{RegenRate: 40}, ecs.PerFrame)

	if err := scheduler.Tick(context.Background(), 250*time.Millisecond); err != nil {
		fmt.Println(err)
		return
	}

	view, _ := ecs.NewQuery[struct {
		Transform Transform
		Hitpoints Hitpoints
	}](storage)
	for item := range view.Values() {
		fmt.Printf("Position: (%.0f, %.0f), Health: %d/%d\n",
			item.Transform.X, item.Transform.Y, item.Hitpoints.Current, item.Hitpoints.Max)
	}
	fmt.Println("fixed steps:", scheduler.GetStats().FixedSteps)
	// Output:
	// Position: (2, 1), Health: 90/100
	// Position: (99, 99), Health: 60/100
	// fixed steps: 2
}
