// Package render provides the default render system: it reads Transform and Sprite
// components, culls them against a Camera, orders them by layer and submits draw commands to
// a Backend.
package render

import (
	"image/color"

	"github.com/plus3/strata/ecs"
)

// Transform places an entity in world space. X and Y name the center of the sprite.
type Transform struct {
	X, Y  float64
	Scale float64 // 0 is treated as 1
}

// Velocity is used to extrapolate positions between fixed steps.
type Velocity struct {
	DX, DY float64
}

type Shape uint8

const (
	ShapeRect Shape = iota
	ShapeCircle
	ShapeGlyph
)

func (s Shape) String() string {
	switch s {
	case ShapeCircle:
		return "circle"
	case ShapeGlyph:
		return "glyph"
	default:
		return "rect"
	}
}

// Color is a straight-alpha RGBA color.
type Color struct {
	R, G, B, A uint8
}

// NRGBA converts c for image based backends.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

var (
	White = Color{255, 255, 255, 255}
	Red   = Color{230, 70, 70, 255}
	Green = Color{90, 200, 110, 255}
	Blue  = Color{80, 140, 230, 255}
)

// Sprite describes how an entity is drawn. Width and Height are in world units.
type Sprite struct {
	Shape  Shape
	Glyph  rune
	Color  Color
	Width  float64
	Height float64
	Layer  int
	Hidden bool
}

// Register adds the render components to registry.
func Register(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[Transform](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Sprite](registry)
}
