package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/pidfile"
	"github.com/townlab/devservices/internal/runner"
)

// Beads supervises the issue database daemon (`bd`). It owns the daemon and
// dolt PID files under <town>/daemon/.
type Beads struct {
	cfg *config.Config
	run runner.Runner
	log *slog.Logger
}

func NewBeads(cfg *config.Config, run runner.Runner, log *slog.Logger) *Beads {
	return &Beads{cfg: cfg, run: run, log: log}
}

func (b *Beads) Name() string { return "beads-daemon" }

func (b *Beads) preflight() error {
	if !b.cfg.GastownEnabled {
		return fmt.Errorf("beads daemon: %w", ErrDisabled)
	}
	if !b.run.Look("bd") {
		return fmt.Errorf("bd: %w", ErrToolMissing)
	}
	if _, err := os.Stat(b.cfg.TownHome); err != nil {
		return fmt.Errorf("town home %s: %w", b.cfg.TownHome, ErrNotInitialized)
	}
	return nil
}

func (b *Beads) Start(ctx context.Context) error {
	if err := b.preflight(); err != nil {
		return err
	}

	for _, p := range []string{b.cfg.DaemonPidFile(), b.cfg.DoltPidFile()} {
		if pidfile.CleanStale(p) {
			b.log.Warn("removed pid file", "path", p, "error", ErrStale)
		}
	}

	if res, err := b.run.Run(ctx, "bd", "daemon", "status"); err == nil && res.OK() {
		b.log.Info("beads daemon already running")
		return nil
	}

	// Schema drift is common after image rebuilds; a failed migrate is a
	// notice because `bd daemon start` revalidates anyway.
	if res, err := b.run.Run(ctx, "bd", "migrate"); err != nil || !res.OK() {
		b.log.Warn("bd migrate failed, continuing", "code", res.Code, "output", runner.FirstLine(res.Output))
	}

	if res, err := b.run.Run(ctx, "bd", "daemon", "start"); err != nil || !res.OK() {
		return fmt.Errorf("bd daemon start exited %d: %w", res.Code, ErrTransient)
	}
	if res, err := b.run.Run(ctx, "bd", "daemon", "status"); err != nil || !res.OK() {
		return fmt.Errorf("beads daemon unhealthy after start: %w", ErrTransient)
	}
	return nil
}

func (b *Beads) Stop(ctx context.Context) error {
	if err := b.preflight(); err != nil {
		return err
	}

	if res, err := b.run.Run(ctx, "bd", "daemon", "stop"); err != nil || !res.OK() {
		b.log.Warn("bd daemon stop failed", "code", res.Code)
	}
	// Backstop for daemons that ignored the polite stop.
	pidfile.KillByFile(b.cfg.DaemonPidFile(), b.log)
	pidfile.KillByFile(b.cfg.DoltPidFile(), b.log)
	return nil
}

func (b *Beads) Status(ctx context.Context) Status {
	if !b.cfg.GastownEnabled {
		return Status{State: StateDisabled}
	}
	if !b.run.Look("bd") {
		return Status{State: StateNotConfigured, Detail: "bd not on PATH"}
	}
	if _, err := os.Stat(b.cfg.TownHome); err != nil {
		return Status{State: StateNotInitialized, Detail: "town home missing"}
	}
	if res, err := b.run.Run(ctx, "bd", "daemon", "status"); err == nil && res.OK() {
		st := Status{State: StateRunning}
		if pid, ok := pidfile.Check(b.cfg.DaemonPidFile()); ok {
			st.PID = pid
		}
		return st
	}
	return Status{State: StateStopped}
}
