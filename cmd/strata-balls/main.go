// Command strata-balls bounces a handful of balls around an arena. It renders to the
// terminal, an Ebiten window (optionally with the debug overlay) or nowhere at all.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plus3/strata/config"
	"github.com/plus3/strata/ecs"
	"github.com/plus3/strata/internal/logging"
	"github.com/plus3/strata/script"
)

type options struct {
	balls    int
	script   string
	debug    bool
	duration time.Duration
}

func main() {
	configPath := flag.String("config", "", "TOML or YAML config file.")
	balls := flag.Int("balls", 10, "Number of balls; the first half move.")
	scriptPath := flag.String("script", "", "Lua system to run on the fixed step, e.g. gravity.lua.")
	debug := flag.Bool("debug", false, "Show the debug overlay (ebiten backend only).")
	logFile := flag.String("log-file", "strata-balls.log", "Log destination while the terminal backend owns the screen.")
	duration := flag.Duration("duration", 5*time.Second, "How long the headless backend runs.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.Render.Backend == "terminal" {
		logger, err = logging.ToFile(cfg.Logging, *logFile)
	} else {
		logger, err = logging.New(cfg.Logging)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, cfg, logger, options{
		balls:    *balls,
		script:   *scriptPath,
		debug:    *debug,
		duration: *duration,
	})
	if err != nil {
		logger.Error("strata-balls failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts options) error {
	var (
		register func(*ecs.ComponentRegistry)
		arena    = Arena{Width: 80, Height: 24}
	)
	if cfg.Render.Backend == "ebiten" && opts.debug {
		register = registerOverlay
	}

	storage, err := newWorld(arena, opts.balls, register, cfg.StorageOptions()...)
	if err != nil {
		return eris.Wrap(err, "build world")
	}
	scheduler, closeScript, err := newScheduler(storage, cfg, logger, opts.script)
	if err != nil {
		return err
	}
	defer closeScript()

	logger.Info("starting",
		zap.String("backend", cfg.Render.Backend),
		zap.Int("balls", opts.balls),
		zap.Float64("fixed_rate", cfg.Engine.FixedRate))

	switch cfg.Render.Backend {
	case "terminal":
		err = runTerminal(ctx, scheduler, cfg, logger)
	case "ebiten":
		err = runEbiten(ctx, scheduler, cfg, arena, logger, opts.debug)
	default:
		err = runHeadless(ctx, scheduler, cfg, opts.duration)
	}
	if err != nil {
		return err
	}

	stats := scheduler.GetStats()
	logger.Info("stopped", zap.Uint64("ticks", stats.Ticks), zap.Int64("fixed_steps", stats.FixedSteps))
	return nil
}

// newScheduler registers the demo systems and, when scriptPath is set, a Lua system on the
// same fixed step. The returned func releases the script.
func newScheduler(storage *ecs.Storage, cfg *config.Config, logger *zap.Logger, scriptPath string) (*ecs.Scheduler, func(), error) {
	scheduler := ecs.NewScheduler(storage, append(cfg.SchedulerOptions(), ecs.WithLogger(logger))...)
	fixed := ecs.FixedInterval(cfg.FixedInterval())
	closeScript := func() {}

	if err := scheduler.Register(&BounceSystem{}, fixed); err != nil {
		return nil, closeScript, eris.Wrap(err, "register bounce")
	}
	if err := scheduler.Register(&TrailSystem{}, ecs.PerFrame); err != nil {
		return nil, closeScript, eris.Wrap(err, "register trail")
	}
	if scriptPath != "" {
		sys, err := script.Load(scriptPath, logger)
		if err != nil {
			return nil, closeScript, err
		}
		closeScript = sys.Close
		if err := scheduler.Register(sys, fixed); err != nil {
			return nil, closeScript, eris.Wrapf(err, "register %s", scriptPath)
		}
	}
	return scheduler, closeScript, nil
}

func runHeadless(ctx context.Context, scheduler *ecs.Scheduler, cfg *config.Config, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()
	return scheduler.Run(ctx, cfg.FixedInterval())
}
