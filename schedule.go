package statuslight

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/robfig/cron/v3"
	"gopkg.in/typ.v4/sync2"
)

// Renderer renders a single segment. *StripController implements it.
type Renderer interface {
	RenderSegment(ctx context.Context, name string) error
}

var _ Renderer = (*StripController)(nil)

// Trigger is an armed hourly rule that renders a segment.
type Trigger struct {
	Segment string
	Minute  int
	// Spec is the standard 5-field cron spec of the trigger.
	Spec string
	// Next is the next time the trigger fires. It is zero while the
	// scheduler is not running.
	Next time.Time
	ID   cron.EntryID
}

// FireStatus is the outcome of the last fire of a segment's trigger.
type FireStatus struct {
	Segment    string
	Generation uuid.UUID
	At         time.Time
	Err        error
}

// ScheduleOpts are options for a ScheduleManager.
type ScheduleOpts struct {
	// Location is the time zone the minutes are interpreted in. Defaults to
	// time.Local.
	Location *time.Location
	// Logger is the logger to use for the manager.
	Logger *slog.Logger
	// FireTimeout bounds how long a single fire may wait for the strip.
	// Defaults to 30s.
	FireTimeout time.Duration
}

// ScheduleManager owns the trigger set. The set is only ever replaced as a
// whole by RebuildFromConfiguration.
type ScheduleManager struct {
	renderer Renderer
	logger   *slog.Logger
	opts     ScheduleOpts
	cron     *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	triggers   []Trigger
	generation uuid.UUID
	running    bool

	status sync2.Map[string, FireStatus]
}

// NewScheduleManager creates a new manager with an empty trigger set. Call
// Start or Run to begin firing triggers.
func NewScheduleManager(renderer Renderer, opts ScheduleOpts) *ScheduleManager {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FireTimeout == 0 {
		opts.FireTimeout = 30 * time.Second
	}

	clog := cronLogger{opts.Logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &ScheduleManager{
		renderer: renderer,
		logger:   opts.Logger,
		opts:     opts,
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(clog),
			cron.WithChain(
				cron.Recover(clog),
				cron.SkipIfStillRunning(clog),
			),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

type plannedTrigger struct {
	segment  string
	minute   int
	spec     string
	schedule cron.Schedule
}

// RebuildFromConfiguration replaces the trigger set with one trigger per
// segment, or with an empty set if the scheduler is disabled. The new set is
// computed before the old one is removed; no trigger of the old set fires
// once any trigger of the new set is armed.
func (m *ScheduleManager) RebuildFromConfiguration(cfg *Config) error {
	var plan []plannedTrigger

	if cfg.SchedulerEnabled {
		plan = make([]plannedTrigger, 0, len(SegmentNames))
		for _, name := range SegmentNames {
			minute, ok := cfg.Schedule[name]
			if !ok {
				return &UnknownSegmentError{Segment: name}
			}

			if clamped := clampMinute(minute); clamped != minute {
				m.logger.Warn(
					"schedule minute out of range, clamping",
					"segment", name,
					"minute", minute,
					"clamped", clamped)
				minute = clamped
			}

			spec := fmt.Sprintf("%d * * * *", minute)
			schedule, err := cron.ParseStandard(spec)
			if err != nil {
				return fmt.Errorf("failed to parse trigger %q for %s: %w", spec, name, err)
			}

			plan = append(plan, plannedTrigger{
				segment:  name,
				minute:   minute,
				spec:     spec,
				schedule: schedule,
			})
		}
	}

	generation, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to create trigger set generation: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.triggers {
		m.cron.Remove(t.ID)
	}

	triggers := make([]Trigger, 0, len(plan))
	for _, p := range plan {
		id := m.cron.Schedule(p.schedule, m.job(p.segment, generation))
		triggers = append(triggers, Trigger{
			Segment: p.segment,
			Minute:  p.minute,
			Spec:    p.spec,
			ID:      id,
		})
	}

	m.triggers = triggers
	m.generation = generation

	scheduleRebuilds.Inc()
	armedTriggers.Set(float64(len(triggers)))

	m.logger.Info(
		"rebuilt trigger set",
		"generation", generation,
		"enabled", cfg.SchedulerEnabled,
		"triggers", len(triggers))

	return nil
}

// Triggers returns the live trigger set.
func (m *ScheduleManager) Triggers() []Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()

	triggers := slices.Clone(m.triggers)
	if m.running {
		for i, t := range triggers {
			triggers[i].Next = m.cron.Entry(t.ID).Next
		}
	}
	return triggers
}

// Generation returns the id of the live trigger set.
func (m *ScheduleManager) Generation() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.generation
}

// Status returns the last fire of every segment that has fired, in segment
// order.
func (m *ScheduleManager) Status() []FireStatus {
	var statuses []FireStatus
	m.status.Range(func(_ string, s FireStatus) bool {
		statuses = append(statuses, s)
		return true
	})

	slices.SortFunc(statuses, func(a, b FireStatus) int {
		return slices.Index(SegmentNames, a.Segment) - slices.Index(SegmentNames, b.Segment)
	})

	return statuses
}

// Start starts firing triggers in the background.
func (m *ScheduleManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cron.Start()
	m.running = true
}

// Stop stops firing triggers and waits for running fires to finish, or for
// ctx to expire.
func (m *ScheduleManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	m.cancel()

	select {
	case <-m.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the manager and stops it once ctx is done.
func (m *ScheduleManager) Run(ctx context.Context) error {
	m.Start()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return ctx.Err()
}

func (m *ScheduleManager) job(segment string, generation uuid.UUID) cron.Job {
	return cron.FuncJob(func() { m.fire(segment, generation) })
}

func (m *ScheduleManager) fire(segment string, generation uuid.UUID) {
	ctx, cancel := context.WithTimeout(m.ctx, m.opts.FireTimeout)
	defer cancel()

	err := m.renderer.RenderSegment(ctx, segment)

	m.status.Store(segment, FireStatus{
		Segment:    segment,
		Generation: generation,
		At:         time.Now(),
		Err:        err,
	})
	triggerFires.WithLabelValues(segment, resultLabel(err)).Inc()

	if err != nil {
		m.logger.Warn(
			"scheduled render failed",
			"segment", segment,
			"generation", generation,
			"error", err)
		return
	}

	m.logger.Info(
		"scheduled render",
		"segment", segment,
		"generation", generation)
}

func clampMinute(minute int) int {
	return min(max(minute, 0), 59)
}

// cronLogger adapts slog to cron's logger. cron's informational messages are
// demoted to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
