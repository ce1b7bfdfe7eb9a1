package statuslight

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
)

func TestConfigWatcher(t *testing.T) {
	s := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}

	watcher := NewConfigWatcher(s.store.Path, s.Service, slogt.New(t), 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	cfg := testConfig()
	cfg.Schedule["yellow"] = 42

	// The watcher may not be watching yet, so keep saving until it notices.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for s.Scheduler().Triggers()[0].Minute != 42 {
		select {
		case <-deadline:
			t.Fatal("watcher did not reload the changed config")
		case <-ticker.C:
			if err := s.store.Save(cfg); err != nil {
				t.Fatal(err)
			}
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestConfigWatcherKeepsScheduleOnBadDocument(t *testing.T) {
	s := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	generation := s.Scheduler().Generation()

	reloads := make(chan error, 16)
	watcher := NewConfigWatcher(s.store.Path, s.Service, slogt.New(t), 10*time.Millisecond)
	watcher.reloaded = func(err error) { reloads <- err }
	go watcher.Run(ctx)

	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	// Keep writing the bad document until the watcher has tried to load it.
	for rejected := false; !rejected; {
		select {
		case <-deadline:
			t.Fatal("watcher did not reload the bad config")
		case err := <-reloads:
			var verr *ValidationError
			if err != nil && !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			rejected = err != nil
		case <-ticker.C:
			if err := writeFileAtomic(s.store.Path, []byte("{not json"), 0644); err != nil {
				t.Fatal(err)
			}
		}
	}
	assertEq(t, generation, s.Scheduler().Generation())

	cfg := testConfig()
	cfg.Schedule["yellow"] = 42
	if err := s.store.Save(cfg); err != nil {
		t.Fatal(err)
	}

	// Reloads come in order, so the good document is seen after the bad one.
	for {
		select {
		case <-deadline:
			t.Fatal("watcher did not reload the fixed config")
		case err := <-reloads:
			if err != nil {
				continue
			}
			if s.Scheduler().Generation() == generation {
				t.Fatal("schedule was not rebuilt from the fixed config")
			}
			assertEq(t, 42, s.Scheduler().Triggers()[0].Minute)
			return
		}
	}
}
