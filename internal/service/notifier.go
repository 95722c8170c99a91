package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/notify"
	"github.com/townlab/devservices/internal/pidfile"
	"github.com/townlab/devservices/internal/runner"
)

// Notifier launches and tears down the detached Slack notifier for the
// project. The daemon loop lives in internal/notify.
type Notifier struct {
	cfg   *config.Config
	run   runner.Runner
	log   *slog.Logger
	spawn func(args []string, logPath string) (int, error)
}

func NewNotifier(cfg *config.Config, run runner.Runner, log *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, run: run, log: log, spawn: Detach}
}

func (n *Notifier) Name() string { return "notifier" }

func (n *Notifier) preflight(ctx context.Context) error {
	if !n.cfg.GastownEnabled {
		return fmt.Errorf("notifier: %w", ErrDisabled)
	}
	if _, err := os.Stat(n.cfg.BeadsDir()); err != nil {
		return fmt.Errorf("no .beads in %s: %w", n.cfg.ProjectDir, ErrNotInitialized)
	}
	if !n.run.Look("git") {
		return fmt.Errorf("git: %w", ErrToolMissing)
	}
	if res, err := n.run.Run(ctx, "git", "-C", n.cfg.ProjectDir, "rev-parse", "--is-inside-work-tree"); err != nil || !res.OK() {
		return fmt.Errorf("%s is not a git work tree: %w", n.cfg.ProjectDir, ErrNotConfigured)
	}
	if !notify.Resolve(n.cfg).Configured() {
		return fmt.Errorf("no slack webhook: %w", ErrNotConfigured)
	}
	return nil
}

func (n *Notifier) Start(ctx context.Context) error {
	if err := n.preflight(ctx); err != nil {
		return err
	}
	if pid, alive := pidfile.Check(n.cfg.NotifierPidFile()); alive {
		n.log.Info("notifier already running", "pid", pid)
		return nil
	}
	args := []string{"notifier", "--foreground", "--project", n.cfg.ProjectDir}
	if n.cfg.Source != "" {
		args = append(args, "--config", n.cfg.Source)
	}
	pid, err := n.spawn(args, n.cfg.NotifierLogFile())
	if err != nil {
		return fmt.Errorf("spawn notifier: %w: %w", err, ErrTransient)
	}
	n.log.Info("notifier started", "pid", pid)
	return nil
}

func (n *Notifier) Stop(_ context.Context) error {
	pidfile.KillByFile(n.cfg.NotifierPidFile(), n.log)
	return nil
}

func (n *Notifier) Status(ctx context.Context) Status {
	if !n.cfg.GastownEnabled {
		return Status{State: StateDisabled}
	}
	if err := n.preflight(ctx); err != nil {
		if pid, alive := pidfile.Check(n.cfg.NotifierPidFile()); alive {
			// configured enough to have been started once; report it
			return Status{State: StateRunning, PID: pid}
		}
		return statusFor(err)
	}
	if pid, alive := pidfile.Check(n.cfg.NotifierPidFile()); alive {
		return Status{State: StateRunning, PID: pid}
	}
	return Status{State: StateStopped}
}
