package ecs_test

import (
	"fmt"

	"github.com/plus3/strata/ecs"
)

// ExampleCommandBuffer records structural changes and applies them in one go. The
// handle returned by Spawn can be used by later commands before it is alive.
func ExampleCommandBuffer() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Name](registry)
	storage := ecs.NewStorage(registry)

	commands := ecs.NewCommandBuffer(storage)
	e, _ := commands.Spawn(Position{X: 1, Y: 2})
	_ = commands.AddComponent(e, Name{Value: "spawned"})
	fmt.Println("alive before flush:", storage.IsAlive(e))

	skipped, err := commands.Flush()
	fmt.Println("alive after flush:", storage.IsAlive(e), len(skipped), err)
	fmt.Println("name:", ecs.GetComponent[Name](storage, e).Value)

	commands.Despawn(e)
	commands.Despawn(e)
	skipped, _ = commands.Flush()
	fmt.Println("skipped:", len(skipped), skipped[0].Command.Kind)
	// Output:
	// alive before flush: false
	// alive after flush: true 0 <nil>
	// name: spawned
	// skipped: 1 despawn
}
