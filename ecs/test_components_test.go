package ecs_test

import "github.com/plus3/strata/ecs"

// Common test component types
type Position struct {
	X, Y float32
}

type Velocity struct {
	DX, DY float32
}

type Name struct {
	Value string
}

type Health struct {
	Current int
	Max     int
}

type PlayerController struct{}

type AI struct {
	State int
}

// Custom primitive types for testing non-struct components
type Score int32
type Tag string

type Inventory struct {
	Items []string
}

type testWorld struct {
	registry *ecs.ComponentRegistry
	storage  *ecs.Storage

	position ecs.ComponentID
	velocity ecs.ComponentID
	name     ecs.ComponentID
	health   ecs.ComponentID
	player   ecs.ComponentID
	ai       ecs.ComponentID
	score    ecs.ComponentID
	tag      ecs.ComponentID
}

func newTestRegistry() *ecs.ComponentRegistry {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Name](registry)
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[PlayerController](registry)
	ecs.RegisterComponent[AI](registry)
	ecs.RegisterComponent[Score](registry)
	ecs.RegisterComponent[Tag](registry)
	ecs.RegisterComponent[Inventory](registry)
	return registry
}

func newTestWorld(opts ...ecs.StorageOption) *testWorld {
	registry := newTestRegistry()
	return &testWorld{
		registry: registry,
		storage:  ecs.NewStorage(registry, opts...),
		position: ecs.MustComponentID[Position](registry),
		velocity: ecs.MustComponentID[Velocity](registry),
		name:     ecs.MustComponentID[Name](registry),
		health:   ecs.MustComponentID[Health](registry),
		player:   ecs.MustComponentID[PlayerController](registry),
		ai:       ecs.MustComponentID[AI](registry),
		score:    ecs.MustComponentID[Score](registry),
		tag:      ecs.MustComponentID[Tag](registry),
	}
}
