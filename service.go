package statuslight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ServiceOpts are options for a Service.
type ServiceOpts struct {
	// Store is the configuration store shared with the strip controller.
	Store ConfigStore
	// Strip is the strip controller.
	Strip *StripController
	// Scheduler is the schedule manager.
	Scheduler *ScheduleManager
	// Logger is the logger to use for the service.
	Logger *slog.Logger
}

// Service ties the strip controller and the schedule manager together. It is
// what the HTTP layer and the config watcher call into.
type Service struct {
	opts   ServiceOpts
	logger *slog.Logger

	// applyMu serializes Apply and Reload so that the trigger set is always
	// rebuilt from the configuration that was saved last.
	applyMu sync.Mutex
	applied *Config
}

// NewService creates a new service.
func NewService(opts ServiceOpts) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		opts:   opts,
		logger: opts.Logger,
	}
}

// Strip returns the strip controller.
func (s *Service) Strip() *StripController { return s.opts.Strip }

// Scheduler returns the schedule manager.
func (s *Service) Scheduler() *ScheduleManager { return s.opts.Scheduler }

// Config loads the current configuration.
func (s *Service) Config() (*Config, error) {
	return s.opts.Store.Load()
}

// Apply saves cfg, re-initializes the strip and rebuilds the trigger set.
//
// A ValidationError or PersistenceError leaves both the stored configuration
// and the trigger set as they were. A DeviceError is returned only after the
// trigger set has been rebuilt, since the configuration was already saved.
func (s *Service) Apply(ctx context.Context, cfg *Config) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	cfg = cfg.Clone()

	applyErr := s.opts.Strip.ApplyConfiguration(ctx, cfg)
	if applyErr != nil {
		var deviceErr *DeviceError
		if !errors.As(applyErr, &deviceErr) {
			return applyErr
		}
	}

	if err := s.opts.Scheduler.RebuildFromConfiguration(cfg); err != nil {
		return fmt.Errorf("failed to rebuild schedule: %w", err)
	}
	s.applied = cfg

	if applyErr != nil {
		s.logger.WarnContext(ctx,
			"configuration saved but LED strip failed",
			"error", applyErr)
		return applyErr
	}

	s.logger.InfoContext(ctx,
		"configuration applied",
		"led_count", cfg.LEDCount,
		"scheduler_enabled", cfg.SchedulerEnabled)

	return nil
}

// Reload loads the stored configuration and rebuilds the trigger set from it.
// Nothing is rebuilt if the configuration is the one applied last.
func (s *Service) Reload(ctx context.Context) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	cfg, err := s.opts.Store.Load()
	if err != nil {
		return err
	}

	if cfg.Equal(s.applied) {
		s.logger.DebugContext(ctx, "configuration unchanged, not rebuilding schedule")
		return nil
	}

	if err := s.opts.Scheduler.RebuildFromConfiguration(cfg); err != nil {
		return fmt.Errorf("failed to rebuild schedule: %w", err)
	}
	s.applied = cfg

	s.logger.InfoContext(ctx,
		"configuration reloaded",
		"led_count", cfg.LEDCount,
		"scheduler_enabled", cfg.SchedulerEnabled)

	return nil
}
