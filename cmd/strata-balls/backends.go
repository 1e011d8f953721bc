package main

import (
	"context"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/gdamore/tcell/v2"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plus3/strata/config"
	"github.com/plus3/strata/ecs"
	"github.com/plus3/strata/ecs/debugui"
	debugui_ebiten "github.com/plus3/strata/ecs/debugui/ebiten"
	"github.com/plus3/strata/render"
	ebitenrender "github.com/plus3/strata/render/ebiten"
	"github.com/plus3/strata/render/terminal"
)

func newRenderer(backend render.Backend, cfg *config.Config, logger *zap.Logger) *render.Default {
	return render.NewDefault(backend,
		render.WithInterpolation(cfg.FixedInterval()),
		render.WithLogger(logger))
}

func runTerminal(ctx context.Context, scheduler *ecs.Scheduler, cfg *config.Config, logger *zap.Logger) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return eris.Wrap(err, "open terminal")
	}
	if err := screen.Init(); err != nil {
		return eris.Wrap(err, "init terminal")
	}
	defer screen.Fini()
	return runOnScreen(ctx, screen, scheduler, cfg, logger)
}

func runOnScreen(ctx context.Context, screen tcell.Screen, scheduler *ecs.Scheduler, cfg *config.Config, logger *zap.Logger) error {
	scheduler.SetRenderSystem(newRenderer(terminal.New(screen), cfg, logger))
	runner := &terminal.Runner{
		Screen:    screen,
		Scheduler: scheduler,
		Interval:  cfg.FixedInterval(),
		Logger:    logger,
		OnKey: func(ev *tcell.EventKey) bool {
			return ev.Rune() == 'q'
		},
	}
	return runner.Run(ctx)
}

func registerOverlay(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[debugui.ImguiItem](registry)
}

func runEbiten(ctx context.Context, scheduler *ecs.Scheduler, cfg *config.Config, arena Arena, logger *zap.Logger, debug bool) error {
	backend := ebitenrender.New()
	renderer := newRenderer(backend, cfg, logger)
	renderer.Camera().Zoom = float64(cfg.Render.Width) / arena.Width

	if !debug {
		scheduler.SetRenderSystem(renderer)
		return ebitenrender.Run(ctx, scheduler, backend, ebitenrender.WindowConfig{
			Width:  cfg.Render.Width,
			Height: cfg.Render.Height,
			Title:  cfg.Render.Title,
		}, logger)
	}

	imguiBackend := debugui_ebiten.NewImguiBackend(cfg.Render.Title, cfg.Render.Width, cfg.Render.Height)
	if _, err := scheduler.Storage().Spawn(debugui.ImguiItem{
		Render: func() {
			imgui.Begin("Balls")
			imgui.Text("Q or Esc quits")
			imgui.End()
		},
	}); err != nil {
		return err
	}
	scheduler.SetRenderSystem(debugui.NewOverlay(renderer, debugui.WithStats(scheduler.GetStats)))

	runner := ebitenrender.NewRunner(ctx, scheduler, backend, logger)
	if err := ebiten.RunGame(debugui_ebiten.Wrap(runner, imguiBackend)); err != nil {
		return eris.Wrap(err, "ebiten game loop")
	}
	return runner.Err()
}
