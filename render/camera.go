package render

import "github.com/plus3/strata/ecs"

// Camera maps world coordinates to the render target. X and Y are the world position shown
// at the top-left corner; Zoom is target units per world unit.
type Camera struct {
	X, Y     float64
	Zoom     float64
	Viewport ecs.Dimensions
}

// NewCamera returns a camera at the origin with a zoom of 1.
func NewCamera() Camera {
	return Camera{Zoom: 1}
}

// Resize records the new size of the render target.
func (c *Camera) Resize(dims ecs.Dimensions) {
	c.Viewport = dims
}

// Aspect returns width over height, or 1 before the first resize.
func (c *Camera) Aspect() float64 {
	if c.Viewport.Width == 0 || c.Viewport.Height == 0 {
		return 1
	}
	return float64(c.Viewport.Width) / float64(c.Viewport.Height)
}

func (c *Camera) zoom() float64 {
	if c.Zoom <= 0 {
		return 1
	}
	return c.Zoom
}

// WorldToScreen converts a world position to target coordinates.
func (c *Camera) WorldToScreen(x, y float64) (float64, float64) {
	z := c.zoom()
	return (x - c.X) * z, (y - c.Y) * z
}

// ScreenToWorld is the inverse of WorldToScreen.
func (c *Camera) ScreenToWorld(sx, sy float64) (float64, float64) {
	z := c.zoom()
	return sx/z + c.X, sy/z + c.Y
}

// Visible reports whether a w by h box centered on (x, y) overlaps the viewport. Everything
// is visible until the viewport size is known.
func (c *Camera) Visible(x, y, w, h float64) bool {
	if c.Viewport.Width == 0 || c.Viewport.Height == 0 {
		return true
	}
	sx, sy := c.WorldToScreen(x, y)
	z := c.zoom()
	hw, hh := w*z/2, h*z/2
	return sx+hw >= 0 && sy+hh >= 0 &&
		sx-hw < float64(c.Viewport.Width) && sy-hh < float64(c.Viewport.Height)
}

// CenterOn moves the camera so that (x, y) is in the middle of the viewport.
func (c *Camera) CenterOn(x, y float64) {
	z := c.zoom()
	c.X = x - float64(c.Viewport.Width)/(2*z)
	c.Y = y - float64(c.Viewport.Height)/(2*z)
}
