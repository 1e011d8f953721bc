// Package ebiten draws render commands with Ebiten's vector package and drives a scheduler
// from Ebiten's game loop.
package ebiten

import (
	"context"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plus3/strata/ecs"
	"github.com/plus3/strata/render"
)

var errNoTarget = eris.New("no target image for this frame")

// Backend implements render.Backend on the image handed to Game.Draw.
type Backend struct {
	Background color.Color

	target *ebiten.Image
}

func New() *Backend {
	return &Backend{Background: color.RGBA{245, 245, 240, 255}}
}

// SetTarget selects the image the next frame is drawn into.
func (b *Backend) SetTarget(img *ebiten.Image) {
	b.target = img
}

func (b *Backend) Begin(ecs.Dimensions) error {
	if b.target == nil {
		return errNoTarget
	}
	if b.Background != nil {
		b.target.Fill(b.Background)
	}
	return nil
}

func (b *Backend) Draw(cmd render.DrawCommand) error {
	if b.target == nil {
		return errNoTarget
	}
	c := cmd.Sprite.Color.NRGBA()
	x, y := float32(cmd.X), float32(cmd.Y)
	w, h := float32(cmd.Width), float32(cmd.Height)

	switch cmd.Sprite.Shape {
	case render.ShapeCircle:
		vector.DrawFilledCircle(b.target, x, y, min(w, h)/2, c, true)
	case render.ShapeGlyph:
		ebitenutil.DebugPrintAt(b.target, string(cmd.Sprite.Glyph), int(x), int(y))
	default:
		vector.DrawFilledRect(b.target, x-w/2, y-h/2, w, h, c, false)
	}
	return nil
}

func (b *Backend) End() error {
	b.target = nil
	return nil
}

// Runner implements ebiten.Game. Each Draw runs one scheduler tick with the wall time since
// the previous one, so fixed steps, per-frame systems and rendering share Ebiten's frame.
type Runner struct {
	ctx       context.Context
	scheduler *ecs.Scheduler
	backend   *Backend
	logger    *zap.Logger

	last time.Time
	dims ecs.Dimensions
	err  error
}

func NewRunner(ctx context.Context, scheduler *ecs.Scheduler, backend *Backend, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{ctx: ctx, scheduler: scheduler, backend: backend, logger: logger}
}

func (r *Runner) Update() error {
	if r.err != nil {
		return r.err
	}
	if r.ctx.Err() != nil || r.scheduler.Stopped() {
		return ebiten.Termination
	}
	if ebiten.IsKeyPressed(ebiten.KeyQ) || ebiten.IsKeyPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	return nil
}

func (r *Runner) Draw(screen *ebiten.Image) {
	if r.err != nil {
		return
	}
	now := time.Now()
	var elapsed time.Duration
	if !r.last.IsZero() {
		elapsed = now.Sub(r.last)
	}
	r.last = now

	r.backend.SetTarget(screen)
	if err := r.scheduler.Tick(r.ctx, elapsed); err != nil && !eris.Is(err, ecs.ErrStopped) {
		r.logger.Error("tick failed", zap.Error(err))
		r.err = err
	}
}

func (r *Runner) Layout(outsideWidth, outsideHeight int) (int, int) {
	dims := ecs.Dimensions{Width: outsideWidth, Height: outsideHeight}
	if dims != r.dims {
		r.dims = dims
		r.scheduler.Resize(dims)
	}
	return outsideWidth, outsideHeight
}

// Err returns the failure that ended the game loop, if any.
func (r *Runner) Err() error {
	return r.err
}

// WindowConfig sets up the Ebiten window before Run.
type WindowConfig struct {
	Width, Height int
	Title         string
}

// Run opens a window and blocks until the game loop ends.
func Run(ctx context.Context, scheduler *ecs.Scheduler, backend *Backend, window WindowConfig, logger *zap.Logger) error {
	ebiten.SetWindowSize(window.Width, window.Height)
	ebiten.SetWindowTitle(window.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	runner := NewRunner(ctx, scheduler, backend, logger)
	if err := ebiten.RunGame(runner); err != nil {
		return eris.Wrap(err, "ebiten game loop")
	}
	return nil
}

var (
	_ render.Backend = (*Backend)(nil)
	_ ebiten.Game    = (*Runner)(nil)
)
