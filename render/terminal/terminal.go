// Package terminal draws render commands into a tcell screen, one cell per target unit.
package terminal

import (
	"context"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plus3/strata/ecs"
	"github.com/plus3/strata/render"
)

// Backend implements render.Backend on a tcell screen.
type Backend struct {
	screen        tcell.Screen
	width, height int
	drawing       bool
}

// New wraps an initialized screen.
func New(screen tcell.Screen) *Backend {
	w, h := screen.Size()
	return &Backend{screen: screen, width: w, height: h}
}

func (b *Backend) Begin(ecs.Dimensions) error {
	b.screen.Clear()
	b.width, b.height = b.screen.Size()
	b.drawing = true
	return nil
}

func glyphFor(s render.Sprite) rune {
	switch s.Shape {
	case render.ShapeCircle:
		return '●'
	case render.ShapeGlyph:
		if s.Glyph != 0 {
			return s.Glyph
		}
		return '?'
	default:
		return '█'
	}
}

func (b *Backend) Draw(cmd render.DrawCommand) error {
	if !b.drawing {
		return eris.New("draw outside of Begin/End")
	}
	c := cmd.Sprite.Color
	style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
	glyph := glyphFor(cmd.Sprite)

	// glyphs and sprites smaller than a cell occupy the cell under their center
	if cmd.Sprite.Shape == render.ShapeGlyph || cmd.Width < 1 || cmd.Height < 1 {
		b.set(int(math.Floor(cmd.X)), int(math.Floor(cmd.Y)), glyph, style)
		return nil
	}
	x0 := int(math.Round(cmd.X - cmd.Width/2))
	y0 := int(math.Round(cmd.Y - cmd.Height/2))
	x1 := int(math.Round(cmd.X + cmd.Width/2))
	y1 := int(math.Round(cmd.Y + cmd.Height/2))
	for y := max(y0, 0); y < min(y1, b.height); y++ {
		for x := max(x0, 0); x < min(x1, b.width); x++ {
			b.screen.SetContent(x, y, glyph, nil, style)
		}
	}
	return nil
}

func (b *Backend) set(x, y int, r rune, style tcell.Style) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	b.screen.SetContent(x, y, r, nil, style)
}

func (b *Backend) End() error {
	b.drawing = false
	b.screen.Show()
	return nil
}

func (b *Backend) Resize(ecs.Dimensions) {
	b.screen.Sync()
}

// Runner drives a scheduler from a terminal: it ticks at Interval, forwards resize events
// and stops on Escape or Ctrl-C. The caller owns the screen; finalizing it ends event
// polling.
type Runner struct {
	Screen    tcell.Screen
	Scheduler *ecs.Scheduler
	Interval  time.Duration
	// OnKey receives every other key press. Returning true stops the runner.
	OnKey  func(ev *tcell.EventKey) bool
	Logger *zap.Logger
}

// Run returns nil on a requested or graceful stop and the scheduler's error otherwise.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second / 60
	}

	w, h := r.Screen.Size()
	r.Scheduler.Resize(ecs.Dimensions{Width: w, Height: h})

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := r.Screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				w, h := ev.Size()
				logger.Debug("terminal resized", zap.Int("width", w), zap.Int("height", h))
				r.Scheduler.Resize(ecs.Dimensions{Width: w, Height: h})
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
					return nil
				}
				if r.OnKey != nil && r.OnKey(ev) {
					return nil
				}
			}
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if err := r.Scheduler.Tick(ctx, elapsed); err != nil {
				if eris.Is(err, ecs.ErrStopped) {
					return nil
				}
				return err
			}
		}
	}
}

var _ render.Backend = (*Backend)(nil)
