package main

import (
	"github.com/plus3/strata/ecs"
	"github.com/plus3/strata/render"
)

// Arena is the box the balls bounce around in, in world units.
type Arena struct {
	Width, Height float64
}

const ballSize = 2

var palette = []render.Color{render.Red, render.Green, render.Blue, render.White}

// spawnBalls lays out count balls in a row. The first half moves, the rest stay put.
func spawnBalls(storage *ecs.Storage, arena Arena, count int) ([]ecs.Entity, error) {
	balls := make([]ecs.Entity, 0, count)
	spacing := arena.Width / float64(count+1)
	for i := range count {
		values := []any{
			render.Transform{X: spacing * float64(i+1), Y: arena.Height / 2},
			render.Sprite{
				Shape:  render.ShapeCircle,
				Color:  palette[i%len(palette)],
				Width:  ballSize,
				Height: ballSize,
				Layer:  1,
			},
		}
		if i < count/2 {
			values = append(values, render.Velocity{DX: float64(i+1) * 4, DY: float64(i+2) * 3})
		}
		e, err := storage.Spawn(values...)
		if err != nil {
			return nil, err
		}
		balls = append(balls, e)
	}
	return balls, nil
}

// BounceSystem moves balls by their velocity and reflects them off the arena walls.
type BounceSystem struct {
	Balls ecs.Query[struct {
		*render.Transform
		*render.Velocity
		Sprite render.Sprite
	}]
	Arena ecs.Singleton[Arena]
}

func (s *BounceSystem) Execute(frame *ecs.UpdateFrame) error {
	arena := s.Arena.Get()
	if arena == nil {
		return nil
	}
	for ball := range s.Balls.Values() {
		rx, ry := ball.Sprite.Width/2, ball.Sprite.Height/2
		ball.X += ball.DX * frame.DeltaTime
		ball.Y += ball.DY * frame.DeltaTime
		ball.X, ball.DX = bounce(ball.X, ball.DX, rx, arena.Width-rx)
		ball.Y, ball.DY = bounce(ball.Y, ball.DY, ry, arena.Height-ry)
	}
	return nil
}

// bounce folds pos back into [lo, hi] and points vel away from the wall it crossed.
func bounce(pos, vel, lo, hi float64) (float64, float64) {
	if hi <= lo {
		return lo, vel
	}
	switch {
	case pos < lo:
		pos = min(lo+(lo-pos), hi)
		vel = abs(vel)
	case pos > hi:
		pos = max(hi-(pos-hi), lo)
		vel = -abs(vel)
	}
	return pos, vel
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// TrailSystem hides resting balls on odd seconds so the moving ones stand out.
type TrailSystem struct {
	Resting ecs.Query[struct {
		Sprite *render.Sprite
		Speed  *render.Velocity `ecs:"exclude"`
	}]
	elapsed float64
}

func (s *TrailSystem) Execute(frame *ecs.UpdateFrame) error {
	s.elapsed += frame.DeltaTime
	hidden := int(s.elapsed)%2 == 1
	for ball := range s.Resting.Values() {
		ball.Sprite.Hidden = hidden
	}
	return nil
}

// newWorld registers the demo components and spawns the balls and the arena. register, when
// set, adds further component types before the storage is created.
func newWorld(arena Arena, count int, register func(*ecs.ComponentRegistry), opts ...ecs.StorageOption) (*ecs.Storage, error) {
	registry := ecs.NewComponentRegistry()
	render.Register(registry)
	ecs.RegisterComponent[Arena](registry)
	if register != nil {
		register(registry)
	}

	storage := ecs.NewStorage(registry, opts...)
	if err := storage.AddSingleton(arena); err != nil {
		return nil, err
	}
	if _, err := spawnBalls(storage, arena, count); err != nil {
		return nil, err
	}
	return storage, nil
}
