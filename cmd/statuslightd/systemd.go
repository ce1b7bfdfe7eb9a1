package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// notifySystemd reports readiness to systemd and pings its watchdog until ctx
// is done. It does nothing when not run as a notify service.
func notifySystemd(ctx context.Context, logger *slog.Logger) error {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn(
			"failed to notify systemd",
			"error", err)
		return nil
	}
	if !sent {
		return nil
	}

	defer daemon.SdNotify(false, daemon.SdNotifyStopping)

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		<-ctx.Done()
		return nil
	}

	logger.Debug(
		"pinging systemd watchdog",
		"interval", interval/2)

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
