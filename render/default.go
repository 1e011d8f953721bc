package render

import (
	"cmp"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plus3/strata/ecs"
)

var errNoFrame = eris.New("draw outside of Begin/End")

// FrameStats describes the last rendered frame.
type FrameStats struct {
	Frame  uint64
	Drawn  int
	Culled int
}

type Option func(*Default)

// WithCamera sets the initial camera.
func WithCamera(c Camera) Option {
	return func(d *Default) {
		d.camera = c
	}
}

// WithInterpolation extrapolates entities holding a Velocity by alpha fixed steps of
// interval, smoothing motion between simulation steps.
func WithInterpolation(interval time.Duration) Option {
	return func(d *Default) {
		d.interval = interval
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Default) {
		d.logger = logger
	}
}

// Default is the stock ecs.RenderSystem. It only reads from the world.
type Default struct {
	backend  Backend
	camera   Camera
	interval time.Duration
	logger   *zap.Logger

	plan  *ecs.Plan
	queue []DrawCommand
	stats FrameStats
}

// NewDefault creates a render system drawing to backend.
func NewDefault(backend Backend, opts ...Option) *Default {
	d := &Default{
		backend: backend,
		camera:  NewCamera(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Default) desc(registry *ecs.ComponentRegistry) (ecs.QueryDesc, error) {
	transform, err := ecs.ComponentIDOf[Transform](registry)
	if err != nil {
		return ecs.QueryDesc{}, err
	}
	sprite, err := ecs.ComponentIDOf[Sprite](registry)
	if err != nil {
		return ecs.QueryDesc{}, err
	}
	velocity, err := ecs.ComponentIDOf[Velocity](registry)
	if err != nil {
		return ecs.QueryDesc{}, err
	}
	return ecs.QueryDesc{
		Include:  []ecs.Term{ecs.ReadOf(transform), ecs.ReadOf(sprite)},
		Optional: []ecs.Term{ecs.ReadOf(velocity)},
	}, nil
}

// DeclareAccess reports the components the renderer reads.
func (d *Default) DeclareAccess(registry *ecs.ComponentRegistry) (ecs.AccessSet, error) {
	desc, err := d.desc(registry)
	if err != nil {
		return ecs.AccessSet{}, err
	}
	return desc.Access(), nil
}

func (d *Default) Setup(world *ecs.WorldView) error {
	desc, err := d.desc(world.Registry())
	if err != nil {
		return eris.Wrap(err, "render components must be registered")
	}
	d.plan, err = world.Compile(desc)
	return err
}

func (d *Default) Render(_ *ecs.WorldView, frame *ecs.FrameContext) error {
	d.plan.Refresh()
	d.queue = d.queue[:0]
	culled := 0

	var step float64
	if d.interval > 0 {
		step = frame.Alpha * d.interval.Seconds()
	}

	for row := range d.plan.Iter() {
		sprite, _ := ecs.Read[Sprite](row)
		if sprite.Hidden {
			continue
		}
		t, _ := ecs.Read[Transform](row)
		x, y := t.X, t.Y
		if v, ok := ecs.Read[Velocity](row); ok && step > 0 {
			x += v.DX * step
			y += v.DY * step
		}
		scale := t.Scale
		if scale == 0 {
			scale = 1
		}
		w, h := sprite.Width*scale, sprite.Height*scale
		if !d.camera.Visible(x, y, w, h) {
			culled++
			continue
		}
		sx, sy := d.camera.WorldToScreen(x, y)
		z := d.camera.zoom()
		d.queue = append(d.queue, DrawCommand{
			Entity: row.Entity(),
			X:      sx,
			Y:      sy,
			Width:  w * z,
			Height: h * z,
			Sprite: sprite,
		})
	}

	slices.SortStableFunc(d.queue, func(a, b DrawCommand) int {
		return cmp.Compare(a.Sprite.Layer, b.Sprite.Layer)
	})

	if err := d.backend.Begin(frame.Dimensions); err != nil {
		return eris.Wrap(err, "begin frame")
	}
	for _, cmd := range d.queue {
		if err := d.backend.Draw(cmd); err != nil {
			return eris.Wrapf(err, "draw %s", cmd.Entity)
		}
	}
	if err := d.backend.End(); err != nil {
		return eris.Wrap(err, "end frame")
	}

	d.stats = FrameStats{Frame: frame.Frame, Drawn: len(d.queue), Culled: culled}
	if culled > 0 {
		d.logger.Debug("culled sprites", zap.Uint64("frame", frame.Frame), zap.Int("culled", culled))
	}
	return nil
}

func (d *Default) OnResize(dims ecs.Dimensions) {
	d.camera.Resize(dims)
	if r, ok := d.backend.(Resizer); ok {
		r.Resize(dims)
	}
}

// Camera returns the camera. It is owned by the scheduler goroutine while running.
func (d *Default) Camera() *Camera {
	return &d.camera
}

// Stats returns counters for the last frame.
func (d *Default) Stats() FrameStats {
	return d.stats
}

var (
	_ ecs.RenderSystem   = (*Default)(nil)
	_ ecs.AccessDeclarer = (*Default)(nil)
	_ Resizer            = (*Recorder)(nil)
)
