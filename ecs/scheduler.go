package ecs

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SchedulerStats provides statistics about scheduler execution.
type SchedulerStats struct {
	SystemCount     int
	TotalExecutions int64
	Ticks           uint64
	FixedSteps      int64
	LastTick        time.Duration
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	Timing         string
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemStatsInternal struct {
	executionCount int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

func (s *systemStatsInternal) record(d time.Duration) {
	s.executionCount++
	s.lastDuration = d
	s.totalDuration += d
	if d < s.minDuration {
		s.minDuration = d
	}
	if d > s.maxDuration {
		s.maxDuration = d
	}
}

type systemEntry struct {
	index    int
	name     string
	system   System
	timing   Timing
	group    string
	declared AccessSet
	access   AccessSet
	view     *WorldView
	fields   []bindable
	commands *CommandBuffer
	stats    systemStatsInternal
}

type fixedGroup struct {
	interval time.Duration
	acc      time.Duration
	stage    *stage
}

type renderEntry struct {
	system   RenderSystem
	name     string
	declared AccessSet
	commands *CommandBuffer
	ready    bool
	stats    systemStatsInternal
}

type schedulerState uint8

const (
	stateRunning schedulerState = iota
	stateHalted
	stateStopped
)

const (
	stagePerFrame = "per-frame"
	stageRender   = "render"
)

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithWorkers bounds the number of systems executing at once. Zero means unbounded.
func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.workers = n
	}
}

// WithMaxFixedSteps caps the fixed steps run in one tick. Time that cannot be caught up is
// dropped. Zero means unlimited.
func WithMaxFixedSteps(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.maxFixedSteps = n
	}
}

// WithSlowTickThreshold logs a warning for ticks taking longer than d.
func WithSlowTickThreshold(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.slowTick = d
	}
}

// Scheduler runs systems in stages separated by barriers. Each tick accumulates the elapsed
// time, runs every due fixed step with a barrier after each, then the per-frame systems and
// their barrier, then the render system and its barrier. Within a stage, systems whose
// access sets do not conflict run concurrently.
type Scheduler struct {
	storage *Storage
	view    *WorldView
	logger  *zap.Logger

	workers       int
	maxFixedSteps int
	slowTick      time.Duration

	systems []*systemEntry
	render  *renderEntry

	built    bool
	groups   []*fixedGroup
	perFrame *stage

	state    schedulerState
	tick     uint64
	frame    uint64
	steps    int64
	lastTick time.Duration

	resizeMu      sync.Mutex
	dims          Dimensions
	resizePending bool

	statsMu sync.Mutex
}

// NewScheduler creates a new scheduler for the given storage.
func NewScheduler(storage *Storage, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		storage: storage,
		view:    NewWorldView(storage),
		logger:  zap.NewNop(),
		systems: make([]*systemEntry, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Storage returns the storage the scheduler drives.
func (s *Scheduler) Storage() *Storage {
	return s.storage
}

// World returns the read-only view handed to systems.
func (s *Scheduler) World() *WorldView {
	return s.view
}

// Register adds a system. Its access set is the union of the Reads and Writes options, the
// access implied by its Query and Singleton fields, and DeclareAccess for AccessDeclarer
// systems. Fields are bound and the schedule rebuilt on the next Build or Tick.
func (s *Scheduler) Register(system System, timing Timing, opts ...SystemOption) error {
	if !timing.IsPerFrame() && timing.Interval() <= 0 {
		return eris.Errorf("fixed interval must be positive, got %s", timing.Interval())
	}
	cfg := systemConfig{name: systemName(system)}
	for _, opt := range opts {
		opt(&cfg)
	}
	for _, existing := range s.systems {
		if existing.name == cfg.name {
			cfg.name = fmt.Sprintf("%s#%d", cfg.name, len(s.systems))
			break
		}
	}

	s.systems = append(s.systems, &systemEntry{
		index:    len(s.systems),
		name:     cfg.name,
		system:   system,
		timing:   timing,
		group:    cfg.group,
		declared: cfg.access,
		commands: NewCommandBuffer(s.storage),
		stats:    systemStatsInternal{minDuration: time.Duration(1<<63 - 1)},
	})
	s.built = false
	return nil
}

// SetRenderSystem installs the render system. Only read access may be declared.
func (s *Scheduler) SetRenderSystem(r RenderSystem, opts ...SystemOption) {
	cfg := systemConfig{name: systemName(r)}
	for _, opt := range opts {
		opt(&cfg)
	}
	s.render = &renderEntry{
		system:   r,
		name:     cfg.name,
		declared: cfg.access,
		commands: NewCommandBuffer(s.storage),
		stats:    systemStatsInternal{minDuration: time.Duration(1<<63 - 1)},
	}
	s.built = false
}

func systemName(v any) string {
	if named, ok := v.(interface{ Name() string }); ok {
		return named.Name()
	}
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}

// Build binds system fields, resolves access sets and computes the stages. It fails with
// ErrUnknownComponentType for unregistered types and ErrQueryAccessConflict for conflicting
// systems in one parallel group or a render system asking for write access.
func (s *Scheduler) Build() error {
	for _, entry := range s.systems {
		if err := s.bind(entry); err != nil {
			return eris.Wrapf(err, "system %s", entry.name)
		}
	}

	if s.render != nil {
		access := s.render.declared
		if declarer, ok := s.render.system.(AccessDeclarer); ok {
			extra, err := declarer.DeclareAccess(s.storage.registry)
			if err != nil {
				return eris.Wrapf(err, "render system %s", s.render.name)
			}
			access.Merge(extra)
		}
		if err := s.storage.registry.validate(access.IDs()); err != nil {
			return eris.Wrapf(err, "render system %s", s.render.name)
		}
		if writes := access.Writes(); len(writes) > 0 {
			return eris.Wrapf(ErrQueryAccessConflict, "render system %s declares write access to %v", s.render.name, writes)
		}
	}

	byInterval := make(map[time.Duration][]*systemEntry)
	var perFrame []*systemEntry
	for _, entry := range s.systems {
		if entry.timing.IsPerFrame() {
			perFrame = append(perFrame, entry)
			continue
		}
		byInterval[entry.timing.Interval()] = append(byInterval[entry.timing.Interval()], entry)
	}

	previous := make(map[time.Duration]time.Duration, len(s.groups))
	for _, g := range s.groups {
		previous[g.interval] = g.acc
	}

	intervals := make([]time.Duration, 0, len(byInterval))
	for interval := range byInterval {
		intervals = append(intervals, interval)
	}
	slices.Sort(intervals)

	groups := make([]*fixedGroup, 0, len(intervals))
	for _, interval := range intervals {
		systems := byInterval[interval]
		if err := checkParallelGroups(systems); err != nil {
			return err
		}
		groups = append(groups, &fixedGroup{
			interval: interval,
			acc:      previous[interval],
			stage:    newStage(FixedInterval(interval).String(), systems),
		})
	}
	if err := checkParallelGroups(perFrame); err != nil {
		return err
	}

	s.groups = groups
	s.perFrame = newStage(stagePerFrame, perFrame)
	s.built = true

	for _, g := range s.groups {
		s.logger.Debug("fixed stage built",
			zap.String("stage", g.stage.name),
			zap.Int("systems", len(g.stage.systems)),
			zap.Int("edges", g.stage.edges()))
	}
	s.logger.Debug("per-frame stage built",
		zap.Int("systems", len(s.perFrame.systems)),
		zap.Int("edges", s.perFrame.edges()),
		zap.Bool("render", s.render != nil))
	return nil
}

// bind initializes Query and Singleton fields and computes the system's access set.
func (s *Scheduler) bind(entry *systemEntry) error {
	access := entry.declared
	entry.fields = entry.fields[:0]

	v := reflect.ValueOf(entry.system)
	if v.Kind() == reflect.Ptr && !v.IsNil() && v.Elem().Kind() == reflect.Struct {
		elem := v.Elem()
		for i := 0; i < elem.NumField(); i++ {
			field := elem.Field(i)
			if !field.CanSet() || field.Kind() != reflect.Struct {
				continue
			}
			b, ok := field.Addr().Interface().(bindable)
			if !ok {
				continue
			}
			if err := b.Init(s.storage); err != nil {
				return eris.Wrapf(err, "field %s", elem.Type().Field(i).Name)
			}
			access.Merge(b.Access())
			entry.fields = append(entry.fields, b)
		}
	}

	if declarer, ok := entry.system.(AccessDeclarer); ok {
		extra, err := declarer.DeclareAccess(s.storage.registry)
		if err != nil {
			return err
		}
		access.Merge(extra)
	}

	if err := s.storage.registry.validate(access.IDs()); err != nil {
		return err
	}
	entry.access = access
	entry.view = s.view.restrictedTo(access)
	return nil
}

func checkParallelGroups(systems []*systemEntry) error {
	for a := 0; a < len(systems); a++ {
		if systems[a].group == "" {
			continue
		}
		for b := a + 1; b < len(systems); b++ {
			if systems[b].group != systems[a].group {
				continue
			}
			if systems[a].access.Conflicts(systems[b].access) {
				return eris.Wrapf(ErrQueryAccessConflict, "systems %s and %s in parallel group %q",
					systems[a].name, systems[b].name, systems[a].group)
			}
		}
	}
	return nil
}

// Resize records new render dimensions. The render system's OnResize runs on the
// scheduler's goroutine before the next render stage. Safe to call from any goroutine.
func (s *Scheduler) Resize(dims Dimensions) {
	s.resizeMu.Lock()
	defer s.resizeMu.Unlock()
	s.dims = dims
	s.resizePending = true
}

// Tick advances the world by elapsed wall time. ctx is only checked at barriers: when it is
// cancelled the barrier completes, the rest of the tick is skipped and ErrStopped is
// returned. A system failure halts the scheduler and is returned as a
// *SystemExecutionFailure; later calls return ErrHalted.
func (s *Scheduler) Tick(ctx context.Context, elapsed time.Duration) error {
	switch s.state {
	case stateHalted:
		return ErrHalted
	case stateStopped:
		return ErrStopped
	}
	if !s.built {
		if err := s.Build(); err != nil {
			return err
		}
	}

	start := time.Now()
	s.tick++
	tickLogger := s.logger.With(zap.Uint64("tick", s.tick))

	if elapsed < 0 {
		elapsed = 0
	}
	for _, g := range s.groups {
		g.acc += elapsed
	}

	steps := 0
	for {
		g := s.nextDueGroup()
		if g == nil {
			break
		}
		if s.maxFixedSteps > 0 && steps >= s.maxFixedSteps {
			for _, g := range s.groups {
				g.acc %= g.interval
			}
			tickLogger.Warn("fixed step limit reached, dropping simulated time", zap.Int("steps", steps))
			break
		}
		g.acc -= g.interval
		steps++
		s.steps++

		frame := UpdateFrame{
			DeltaTime: g.interval.Seconds(),
			Delta:     g.interval,
			Tick:      s.tick,
			ctx:       ctx,
		}
		if err := s.runStage(ctx, g.stage, frame, tickLogger); err != nil {
			return err
		}
	}

	alpha := s.alpha()
	frame := UpdateFrame{
		DeltaTime: elapsed.Seconds(),
		Delta:     elapsed,
		Tick:      s.tick,
		Alpha:     alpha,
		ctx:       ctx,
	}
	if err := s.runStage(ctx, s.perFrame, frame, tickLogger); err != nil {
		return err
	}

	if s.render != nil {
		if err := s.runRender(ctx, elapsed, alpha, tickLogger); err != nil {
			return err
		}
	}

	s.lastTick = time.Since(start)
	if s.slowTick > 0 && s.lastTick > s.slowTick {
		tickLogger.Warn("tick exceeded threshold",
			zap.Duration("duration", s.lastTick),
			zap.Duration("threshold", s.slowTick))
	}
	return nil
}

// nextDueGroup returns the group whose next step is earliest in simulated time: the one
// with the largest surplus past its interval. Ties go to the shorter interval.
func (s *Scheduler) nextDueGroup() *fixedGroup {
	var best *fixedGroup
	var bestSurplus time.Duration
	for _, g := range s.groups {
		if g.acc < g.interval {
			continue
		}
		surplus := g.acc - g.interval
		if best == nil || surplus > bestSurplus {
			best, bestSurplus = g, surplus
		}
	}
	return best
}

func (s *Scheduler) alpha() float64 {
	if len(s.groups) == 0 {
		return 0
	}
	g := s.groups[0]
	return float64(g.acc) / float64(g.interval)
}

func (s *Scheduler) runStage(ctx context.Context, st *stage, base UpdateFrame, logger *zap.Logger) error {
	failures := st.run(s.workers, func(entry *systemEntry) *SystemExecutionFailure {
		frame := base
		frame.Commands = entry.commands
		frame.World = entry.view
		frame.access = entry.access
		return s.execute(entry, st.name, &frame)
	})

	failed := make(map[*systemEntry]bool, len(failures))
	for _, f := range failures {
		for _, entry := range st.systems {
			if entry.name == f.System {
				failed[entry] = true
			}
		}
		logger.Error("system failed",
			zap.String("system", f.System),
			zap.String("stage", f.Stage),
			zap.Error(f.Err))
	}

	buffers := make([]*CommandBuffer, 0, len(st.systems))
	for _, entry := range st.systems {
		if failed[entry] {
			entry.commands.Discard()
			continue
		}
		buffers = append(buffers, entry.commands)
	}
	if err := s.barrier(ctx, st.name, buffers, logger); err != nil {
		return err
	}
	if len(failures) > 0 {
		s.state = stateHalted
		return failures[0]
	}
	return s.checkShutdown(ctx, logger)
}

func (s *Scheduler) execute(entry *systemEntry, stageName string, frame *UpdateFrame) (failure *SystemExecutionFailure) {
	defer func() {
		if r := recover(); r != nil {
			failure = &SystemExecutionFailure{
				System: entry.name,
				Tick:   s.tick,
				Stage:  stageName,
				Err:    panicError(r),
			}
		}
	}()

	for _, f := range entry.fields {
		f.Refresh()
	}

	start := time.Now()
	err := entry.system.Execute(frame)
	duration := time.Since(start)

	s.statsMu.Lock()
	entry.stats.record(duration)
	s.statsMu.Unlock()

	if err != nil {
		return &SystemExecutionFailure{System: entry.name, Tick: s.tick, Stage: stageName, Err: err}
	}
	return nil
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return eris.Wrap(err, "panic")
	}
	return eris.Errorf("panic: %v", r)
}

func (s *Scheduler) runRender(ctx context.Context, elapsed time.Duration, alpha float64, logger *zap.Logger) error {
	r := s.render

	s.resizeMu.Lock()
	dims, resized := s.dims, s.resizePending
	s.resizePending = false
	s.resizeMu.Unlock()

	failure := func(err error) *SystemExecutionFailure {
		return &SystemExecutionFailure{System: r.name, Tick: s.tick, Stage: stageRender, Err: err}
	}

	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = panicError(rec)
			}
		}()
		if !r.ready {
			if err := r.system.Setup(s.view); err != nil {
				return eris.Wrap(err, "setup")
			}
			r.ready = true
		}
		if resized {
			r.system.OnResize(dims)
		}
		s.frame++
		start := time.Now()
		err = r.system.Render(s.view, &FrameContext{
			Frame:      s.frame,
			Tick:       s.tick,
			DeltaTime:  elapsed.Seconds(),
			Alpha:      alpha,
			Dimensions: dims,
			Commands:   r.commands,
		})
		s.statsMu.Lock()
		r.stats.record(time.Since(start))
		s.statsMu.Unlock()
		return err
	}()

	if err != nil {
		r.commands.Discard()
		f := failure(err)
		logger.Error("render system failed", zap.String("system", r.name), zap.Error(err))
		if err := s.barrier(ctx, stageRender, nil, logger); err != nil {
			return err
		}
		s.state = stateHalted
		return f
	}

	if err := s.barrier(ctx, stageRender, []*CommandBuffer{r.commands}, logger); err != nil {
		return err
	}
	return s.checkShutdown(ctx, logger)
}

// barrier applies buffers in order. Stale commands are logged and skipped; any other
// failure halts the scheduler.
func (s *Scheduler) barrier(_ context.Context, stageName string, buffers []*CommandBuffer, logger *zap.Logger) error {
	for i, buf := range buffers {
		skipped, err := buf.Flush()
		for _, sk := range skipped {
			logger.Debug("skipped stale command",
				zap.String("stage", stageName),
				zap.Stringer("command", sk.Command.Kind),
				zap.Stringer("entity", sk.Command.Entity))
		}
		if err != nil {
			for _, rest := range buffers[i+1:] {
				rest.Discard()
			}
			s.state = stateHalted
			logger.Error("barrier failed", zap.String("stage", stageName), zap.Error(err))
			return eris.Wrapf(err, "barrier after %s", stageName)
		}
	}
	return nil
}

func (s *Scheduler) checkShutdown(ctx context.Context, logger *zap.Logger) error {
	if ctx.Err() == nil {
		return nil
	}
	s.state = stateStopped
	logger.Info("scheduler stopped", zap.Error(ctx.Err()))
	return ErrStopped
}

// Halted reports whether a failure stopped the scheduler.
func (s *Scheduler) Halted() bool {
	return s.state == stateHalted
}

// Stopped reports whether the scheduler shut down gracefully.
func (s *Scheduler) Stopped() bool {
	return s.state == stateStopped
}

// Run ticks at the given interval until ctx is cancelled. A graceful stop returns nil.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.state = stateStopped
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(lastTime)
			lastTime = now
			if err := s.Tick(ctx, elapsed); err != nil {
				if eris.Is(err, ErrStopped) {
					return nil
				}
				return err
			}
		}
	}
}

// GetStats returns statistics about system execution.
func (s *Scheduler) GetStats() *SchedulerStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	stats := &SchedulerStats{
		SystemCount: len(s.systems),
		Ticks:       s.tick,
		FixedSteps:  s.steps,
		LastTick:    s.lastTick,
		Systems:     make([]SystemStats, 0, len(s.systems)+1),
	}

	var totalExecs int64
	add := func(name, timing string, internal *systemStatsInternal) {
		avgDuration := time.Duration(0)
		minDuration := internal.minDuration
		if internal.executionCount > 0 {
			avgDuration = internal.totalDuration / time.Duration(internal.executionCount)
		} else {
			minDuration = 0
		}
		stats.Systems = append(stats.Systems, SystemStats{
			Name:           name,
			Timing:         timing,
			ExecutionCount: internal.executionCount,
			MinDuration:    minDuration,
			MaxDuration:    internal.maxDuration,
			AvgDuration:    avgDuration,
			LastDuration:   internal.lastDuration,
			TotalDuration:  internal.totalDuration,
		})
		totalExecs += internal.executionCount
	}
	for _, entry := range s.systems {
		add(entry.name, entry.timing.String(), &entry.stats)
	}
	if s.render != nil {
		stats.SystemCount++
		add(s.render.name, stageRender, &s.render.stats)
	}

	stats.TotalExecutions = totalExecs
	return stats
}
