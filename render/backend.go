package render

import "github.com/plus3/strata/ecs"

// DrawCommand is one sprite in target coordinates. X and Y are the center.
type DrawCommand struct {
	Entity ecs.Entity
	X, Y   float64
	Width  float64
	Height float64
	Sprite Sprite
}

// Backend receives the draw commands of one frame between Begin and End.
type Backend interface {
	Begin(dims ecs.Dimensions) error
	Draw(cmd DrawCommand) error
	End() error
}

// Resizer is implemented by backends that need to know about target size changes.
type Resizer interface {
	Resize(dims ecs.Dimensions)
}

// Recorder is a headless Backend that keeps every frame it is given.
type Recorder struct {
	Frames  [][]DrawCommand
	Sizes   []ecs.Dimensions
	Resizes []ecs.Dimensions
	open    bool
}

func (r *Recorder) Begin(dims ecs.Dimensions) error {
	r.Frames = append(r.Frames, nil)
	r.Sizes = append(r.Sizes, dims)
	r.open = true
	return nil
}

func (r *Recorder) Draw(cmd DrawCommand) error {
	if !r.open {
		return errNoFrame
	}
	last := len(r.Frames) - 1
	r.Frames[last] = append(r.Frames[last], cmd)
	return nil
}

func (r *Recorder) End() error {
	if !r.open {
		return errNoFrame
	}
	r.open = false
	return nil
}

func (r *Recorder) Resize(dims ecs.Dimensions) {
	r.Resizes = append(r.Resizes, dims)
}

// Last returns the most recent frame.
func (r *Recorder) Last() []DrawCommand {
	if len(r.Frames) == 0 {
		return nil
	}
	return r.Frames[len(r.Frames)-1]
}
