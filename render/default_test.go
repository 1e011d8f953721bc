package render_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/strata/ecs"
	"github.com/plus3/strata/render"
)

func newWorld(t *testing.T) (*ecs.Storage, *ecs.Scheduler) {
	t.Helper()
	registry := ecs.NewComponentRegistry()
	render.Register(registry)
	storage := ecs.NewStorage(registry)
	return storage, ecs.NewScheduler(storage)
}

func TestDefault(t *testing.T) {
	t.Run("draws visible sprites ordered by layer", func(t *testing.T) {
		storage, scheduler := newWorld(t)
		top := storage.MustSpawn(render.Transform{X: 10, Y: 10}, render.Sprite{Width: 2, Height: 2, Layer: 5})
		bottom := storage.MustSpawn(render.Transform{X: 20, Y: 20}, render.Sprite{Width: 2, Height: 2, Layer: -1})
		storage.MustSpawn(render.Transform{X: 5000, Y: 5000}, render.Sprite{Width: 2, Height: 2})
		storage.MustSpawn(render.Transform{X: 15, Y: 15}, render.Sprite{Width: 2, Height: 2, Hidden: true})

		recorder := &render.Recorder{}
		renderer := render.NewDefault(recorder)
		scheduler.SetRenderSystem(renderer)
		scheduler.Resize(ecs.Dimensions{Width: 100, Height: 100})

		require.NoError(t, scheduler.Tick(context.Background(), 0))
		frame := recorder.Last()
		require.Len(t, frame, 2)
		assert.Equal(t, bottom, frame[0].Entity)
		assert.Equal(t, top, frame[1].Entity)
		assert.Equal(t, ecs.Dimensions{Width: 100, Height: 100}, recorder.Sizes[0])
		assert.Equal(t, []ecs.Dimensions{{Width: 100, Height: 100}}, recorder.Resizes)

		stats := renderer.Stats()
		assert.Equal(t, 2, stats.Drawn)
		assert.Equal(t, 1, stats.Culled)
		assert.Equal(t, uint64(1), stats.Frame)
	})

	t.Run("camera transforms positions and sizes", func(t *testing.T) {
		storage, scheduler := newWorld(t)
		storage.MustSpawn(render.Transform{X: 15, Y: 12, Scale: 2}, render.Sprite{Width: 1, Height: 3})

		recorder := &render.Recorder{}
		camera := render.Camera{X: 10, Y: 10, Zoom: 4}
		scheduler.SetRenderSystem(render.NewDefault(recorder, render.WithCamera(camera)))

		require.NoError(t, scheduler.Tick(context.Background(), 0))
		cmd := recorder.Last()[0]
		assert.Equal(t, 20.0, cmd.X)
		assert.Equal(t, 8.0, cmd.Y)
		assert.Equal(t, 8.0, cmd.Width)
		assert.Equal(t, 24.0, cmd.Height)
	})

	t.Run("velocity is extrapolated by alpha", func(t *testing.T) {
		storage, scheduler := newWorld(t)
		storage.MustSpawn(render.Transform{}, render.Sprite{Width: 1, Height: 1}, render.Velocity{DX: 10})
		storage.MustSpawn(render.Transform{}, render.Sprite{Width: 1, Height: 1})

		interval := 100 * time.Millisecond
		require.NoError(t, scheduler.Register(ecs.SystemFunc(func(*ecs.UpdateFrame) error { return nil }),
			ecs.FixedInterval(interval)))
		recorder := &render.Recorder{}
		scheduler.SetRenderSystem(render.NewDefault(recorder, render.WithInterpolation(interval)))

		require.NoError(t, scheduler.Tick(context.Background(), 150*time.Millisecond))
		frame := recorder.Last()
		require.Len(t, frame, 2)
		lo, hi := min(frame[0].X, frame[1].X), max(frame[0].X, frame[1].X)
		assert.Equal(t, 0.0, lo)
		assert.InDelta(t, 0.5, hi, 1e-9)
	})

	t.Run("renderer declares read access only", func(t *testing.T) {
		storage, scheduler := newWorld(t)
		renderer := render.NewDefault(&render.Recorder{})
		access, err := renderer.DeclareAccess(storage.Registry())
		require.NoError(t, err)
		assert.Empty(t, access.Writes())
		assert.Len(t, access.Reads(), 3)

		scheduler.SetRenderSystem(renderer)
		assert.NoError(t, scheduler.Build())
	})

	t.Run("unregistered render components", func(t *testing.T) {
		storage := ecs.NewStorage(ecs.NewComponentRegistry())
		scheduler := ecs.NewScheduler(storage)
		scheduler.SetRenderSystem(render.NewDefault(&render.Recorder{}))
		assert.ErrorIs(t, scheduler.Build(), ecs.ErrUnknownComponentType)
	})
}

func TestCamera(t *testing.T) {
	c := render.NewCamera()
	assert.Equal(t, 1.0, c.Aspect())
	assert.True(t, c.Visible(1e9, 1e9, 1, 1), "everything is visible before the first resize")

	c.Resize(ecs.Dimensions{Width: 160, Height: 90})
	assert.InDelta(t, 16.0/9.0, c.Aspect(), 1e-9)
	assert.True(t, c.Visible(0, 0, 2, 2))
	assert.True(t, c.Visible(-0.5, -0.5, 2, 2), "partially visible")
	assert.False(t, c.Visible(-5, 0, 2, 2))
	assert.False(t, c.Visible(161, 10, 1, 1))

	c.Zoom = 2
	c.CenterOn(100, 100)
	sx, sy := c.WorldToScreen(100, 100)
	assert.Equal(t, 80.0, sx)
	assert.Equal(t, 45.0, sy)
	wx, wy := c.ScreenToWorld(sx, sy)
	assert.InDelta(t, 100, wx, 1e-9)
	assert.InDelta(t, 100, wy, 1e-9)
}

func TestRecorder(t *testing.T) {
	r := &render.Recorder{}
	assert.Error(t, r.Draw(render.DrawCommand{}))
	require.NoError(t, r.Begin(ecs.Dimensions{}))
	require.NoError(t, r.Draw(render.DrawCommand{X: 1}))
	require.NoError(t, r.End())
	assert.Error(t, r.End())
	assert.Len(t, r.Last(), 1)
}
