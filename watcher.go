package statuslight

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads the service whenever the configuration file changes
// on disk.
type ConfigWatcher struct {
	path     string
	service  *Service
	logger   *slog.Logger
	debounce time.Duration

	// reloaded is called with the result of every reload attempt.
	reloaded func(error)
}

// NewConfigWatcher creates a watcher for the configuration file at path.
// Changes are debounced by debounce, or by 500ms if it is zero.
func NewConfigWatcher(path string, service *Service, logger *slog.Logger, debounce time.Duration) *ConfigWatcher {
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	return &ConfigWatcher{
		path:     filepath.Clean(path),
		service:  service,
		logger:   logger,
		debounce: debounce,
	}
}

// Run watches until ctx is done. The directory is watched rather than the
// file itself because saves replace the file.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info(
		"config watcher started",
		"path", w.path,
		"debounce", w.debounce)

	var timer *time.Timer
	var timerC <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}

			w.logger.Debug(
				"config file change detected",
				"op", event.Op.String())

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			err := w.service.Reload(ctx)
			if err != nil {
				w.logger.Warn(
					"failed to reload changed config, keeping previous schedule",
					"error", err)
			}
			if w.reloaded != nil {
				w.reloaded(err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(
				"config watcher error",
				"error", err)
		}
	}
}
