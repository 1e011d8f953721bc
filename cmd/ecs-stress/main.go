package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pkg/profile"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plus3/strata/config"
	"github.com/plus3/strata/ecs"
	"github.com/plus3/strata/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "TOML or YAML config file.")
	duration := flag.Duration("duration", 10*time.Second, "The total duration the test should run for.")
	entityCount := flag.Int("entities", 10000, "The initial number of entities to create.")
	systemCount := flag.Int("systems", 50, "The number of systems to register.")
	churn := flag.Float64("churn", 0.001, "Chance per step that an entity is replaced by a new one.")
	profileMode := flag.String("profile", "", "Write a cpu, mem or trace profile to the working directory.")
	format := flag.String("format", "markdown", "Report format: markdown or json.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if p := startProfile(*profileMode); p != nil {
		defer p.Stop()
	}

	report, err := run(cfg, logger, options{
		duration: *duration,
		entities: *entityCount,
		systems:  *systemCount,
		churn:    *churn,
	})
	if err != nil {
		logger.Fatal("stress test failed", zap.Error(err))
	}
	report.GCPauseMetrics = *gcPauseMetrics

	switch *format {
	case "json":
		err = report.WriteJSON(os.Stdout)
	default:
		err = report.Generate(os.Stdout)
	}
	if err != nil {
		logger.Fatal("failed to generate report", zap.Error(err))
	}
	logger.Info("stress test complete")
}

func startProfile(mode string) interface{ Stop() } {
	opts := []func(*profile.Profile){profile.ProfilePath("."), profile.NoShutdownHook}
	switch mode {
	case "cpu":
		return profile.Start(append(opts, profile.CPUProfile)...)
	case "mem":
		return profile.Start(append(opts, profile.MemProfileAllocs)...)
	case "trace":
		return profile.Start(append(opts, profile.TraceProfile)...)
	}
	return nil
}

type options struct {
	duration time.Duration
	entities int
	systems  int
	churn    float64
}

func run(cfg *config.Config, logger *zap.Logger, opts options) (*Report, error) {
	logger.Info("starting ECS stress test")

	registry := ecs.NewComponentRegistry()
	w := registerComponents(registry)
	storage := ecs.NewStorage(registry, cfg.StorageOptions()...)
	scheduler := ecs.NewScheduler(storage, append(cfg.SchedulerOptions(), ecs.WithLogger(logger))...)
	if err := registerSystems(scheduler, w, opts.systems, ecs.FixedInterval(cfg.FixedInterval()), opts.churn); err != nil {
		return nil, eris.Wrap(err, "register systems")
	}
	if err := scheduler.Build(); err != nil {
		return nil, eris.Wrap(err, "build schedule")
	}

	logger.Info("populating storage", zap.Int("entities", opts.entities))
	if err := w.populate(storage, opts.entities); err != nil {
		return nil, eris.Wrap(err, "populate")
	}

	report := &Report{
		Duration:   opts.duration,
		Entities:   opts.entities,
		Components: len(w.ids),
		Systems:    opts.systems,
		Workers:    cfg.Engine.Workers,
		FixedRate:  cfg.Engine.FixedRate,
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	logger.Info("running simulation", zap.Duration("duration", opts.duration))
	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	startTime := time.Now()
	lastFrameTime := startTime

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
			now := time.Now()
			delta := now.Sub(lastFrameTime)
			lastFrameTime = now

			updateStart := time.Now()
			err := scheduler.Tick(ctx, delta)
			if eris.Is(err, ecs.ErrStopped) {
				break Loop
			}
			if err != nil {
				return nil, err
			}
			report.UpdateTime.Samples = append(report.UpdateTime.Samples, time.Since(updateStart))
			report.TotalUpdates++
		}
	}

	report.TotalTime = time.Since(startTime)
	report.UpdateTime.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)
	report.Scheduler = scheduler.GetStats()
	report.Storage = storage.CollectStats()

	logger.Info("simulation finished",
		zap.Int64("updates", report.TotalUpdates),
		zap.Int64("fixed_steps", report.Scheduler.FixedSteps),
		zap.Int("live_entities", report.Storage.TotalEntityCount))
	return report, nil
}
