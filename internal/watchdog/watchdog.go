// Package watchdog keeps the orchestrator daemon alive. It runs as a
// detached process spawned by the service layer, wakes on a fixed interval,
// probes the daemon and restarts it when the probe fails.
package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/history"
	"github.com/townlab/devservices/internal/metrics"
	"github.com/townlab/devservices/internal/pidfile"
	"github.com/townlab/devservices/internal/runner"
	"github.com/townlab/devservices/internal/server"
	"github.com/townlab/devservices/internal/service"
)

// LogLimit is the size at which the watchdog log rolls over to its single
// backup generation.
const LogLimit = 100 << 10

// Watchdog is the loop state. Construct with New and drive with Run; the
// caller owns signal wiring and cancels the context to stop.
type Watchdog struct {
	cfg  *config.Config
	run  runner.Runner
	log  *slog.Logger
	sink history.Sink
}

func New(cfg *config.Config, run runner.Runner, log *slog.Logger, sink history.Sink) *Watchdog {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = history.Nop{}
	}
	return &Watchdog{cfg: cfg, run: run, log: log, sink: sink}
}

// Run executes the loop until ctx is cancelled. A second instance detects
// the first via the PID file and returns nil immediately. The PID file is
// removed on the way out, so cancellation always leaves a clean slate.
func (w *Watchdog) Run(ctx context.Context) error {
	path := w.cfg.WatchdogPidFile()
	if pid, alive := pidfile.Check(path); alive {
		w.log.Info("watchdog already running", "pid", pid)
		return nil
	}
	if pidfile.CleanStale(path) {
		w.log.Warn("removed stale pid file", "path", path)
	}
	if err := pidfile.Write(path, os.Getpid()); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer pidfile.Remove(path)

	if addr := w.cfg.WatchdogListen; addr != "" {
		sup := service.NewSupervisor(w.cfg, w.run, w.log, w.sink)
		srv, err := server.NewServer(addr, "", sup)
		if err != nil {
			w.log.Warn("observation endpoint unavailable", "addr", addr, "error", err)
		} else {
			defer func() { _ = srv.Close() }()
			w.log.Info("observation endpoint listening", "addr", addr)
		}
	}

	interval := w.cfg.WatchdogInterval
	if interval <= 0 {
		interval = time.Minute
	}
	w.log.Info("watchdog running", "pid", os.Getpid(), "interval", interval)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("watchdog exiting")
			return nil
		case <-t.C:
			w.cycle(ctx)
		}
	}
}

// cycle is one wake-up: skip when the subsystem cannot be probed, otherwise
// probe and restart. Never returns an error; the loop outlives any cycle.
func (w *Watchdog) cycle(ctx context.Context) {
	metrics.IncWatchdogCycle()

	switch {
	case !w.cfg.GastownEnabled:
		w.log.Debug("cycle skipped", "reason", "subsystem disabled")
		return
	case !w.cfg.TownInitialized():
		w.log.Debug("cycle skipped", "reason", "town not initialized")
		return
	case !w.run.Look("gt"):
		w.log.Debug("cycle skipped", "reason", "gt not on PATH")
		return
	}

	if res, err := w.run.Run(ctx, "gt", "daemon", "status"); err == nil && res.OK() {
		w.log.Debug("daemon healthy")
		return
	}

	w.log.Warn("daemon unhealthy, restarting")
	res, err := w.run.Run(ctx, "gt", "daemon", "start")
	ok := err == nil && res.OK()
	var detail string
	switch {
	case ok:
		w.log.Info("daemon restarted")
		metrics.IncWatchdogRestart("ok")
	case err != nil:
		detail = err.Error()
		w.log.Error("daemon restart failed", "error", err)
		metrics.IncWatchdogRestart("failed")
	default:
		detail = fmt.Sprintf("gt daemon start exited %d", res.Code)
		w.log.Error("daemon restart failed", "code", res.Code)
		metrics.IncWatchdogRestart("failed")
	}

	ev := history.Event{
		At:      time.Now().UTC(),
		Service: "gastown",
		Action:  history.ActionWatchdogRestart,
		OK:      ok,
		Detail:  detail,
	}
	if aerr := w.sink.Append(ctx, ev); aerr != nil {
		w.log.Warn("history append failed", "error", aerr)
	}
}
