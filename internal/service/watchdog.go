package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/pidfile"
)

// Watchdog launches and tears down the detached watchdog process. The loop
// itself lives in internal/watchdog; the spawned child writes its own PID
// file, so a Start here only has to check liveness and fork.
type Watchdog struct {
	cfg   *config.Config
	log   *slog.Logger
	spawn func(args []string, logPath string) (int, error)
}

func NewWatchdog(cfg *config.Config, log *slog.Logger) *Watchdog {
	return &Watchdog{cfg: cfg, log: log, spawn: Detach}
}

func (w *Watchdog) Name() string { return "watchdog" }

func (w *Watchdog) Start(_ context.Context) error {
	if !w.cfg.GastownEnabled {
		return fmt.Errorf("watchdog: %w", ErrDisabled)
	}
	if pid, alive := pidfile.Check(w.cfg.WatchdogPidFile()); alive {
		w.log.Info("watchdog already running", "pid", pid)
		return nil
	}
	args := []string{"watchdog", "--foreground"}
	if w.cfg.Source != "" {
		args = append(args, "--config", w.cfg.Source)
	}
	pid, err := w.spawn(args, w.cfg.WatchdogLogFile())
	if err != nil {
		return fmt.Errorf("spawn watchdog: %w: %w", err, ErrTransient)
	}
	w.log.Info("watchdog started", "pid", pid)
	return nil
}

// Stop kills by PID file regardless of the enabled flag; a watchdog left
// over from before the flag flipped still has to go away.
func (w *Watchdog) Stop(_ context.Context) error {
	pidfile.KillByFile(w.cfg.WatchdogPidFile(), w.log)
	return nil
}

func (w *Watchdog) Status(_ context.Context) Status {
	if !w.cfg.GastownEnabled {
		return Status{State: StateDisabled}
	}
	if pid, alive := pidfile.Check(w.cfg.WatchdogPidFile()); alive {
		return Status{State: StateRunning, PID: pid}
	}
	return Status{State: StateStopped}
}
