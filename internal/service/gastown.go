package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/heartbeat"
	"github.com/townlab/devservices/internal/runner"
)

// Gastown supervises the orchestrator daemon (`gt`).
type Gastown struct {
	cfg *config.Config
	run runner.Runner
	log *slog.Logger
}

func NewGastown(cfg *config.Config, run runner.Runner, log *slog.Logger) *Gastown {
	return &Gastown{cfg: cfg, run: run, log: log}
}

func (g *Gastown) Name() string { return "gastown" }

func (g *Gastown) preflight() error {
	if !g.cfg.GastownEnabled {
		return fmt.Errorf("gastown: %w", ErrDisabled)
	}
	if !g.run.Look("gt") {
		return fmt.Errorf("gt: %w", ErrToolMissing)
	}
	if !g.cfg.TownInitialized() {
		return fmt.Errorf("town at %s: %w", g.cfg.TownHome, ErrNotInitialized)
	}
	return nil
}

func (g *Gastown) Start(ctx context.Context) error {
	if err := g.preflight(); err != nil {
		return err
	}

	// The deacon reads the heartbeat on its first patrol; seeding before
	// `gt up` keeps an absent or stale document from reading as a huge idle
	// gap and triggering a restart loop.
	if err := heartbeat.Seed(g.cfg.HeartbeatFile()); err != nil {
		g.log.Warn("cannot seed heartbeat", "path", g.cfg.HeartbeatFile(), "error", err)
	}

	if res, err := g.run.Run(ctx, "gt", "up"); err != nil || !res.OK() {
		return fmt.Errorf("gt up exited %d: %w", res.Code, ErrTransient)
	}
	if res, err := g.run.Run(ctx, "gt", "daemon", "status"); err != nil || !res.OK() {
		return fmt.Errorf("gastown unhealthy after gt up: %w", ErrTransient)
	}
	return nil
}

func (g *Gastown) Stop(ctx context.Context) error {
	if err := g.preflight(); err != nil {
		return err
	}
	if res, err := g.run.Run(ctx, "gt", "down"); err != nil || !res.OK() {
		g.log.Warn("gt down failed", "code", res.Code, "output", runner.FirstLine(res.Output))
	}
	return nil
}

func (g *Gastown) Status(ctx context.Context) Status {
	if !g.cfg.GastownEnabled {
		return Status{State: StateDisabled}
	}
	if !g.run.Look("gt") {
		return Status{State: StateNotConfigured, Detail: "gt not on PATH"}
	}
	if !g.cfg.TownInitialized() {
		return Status{State: StateNotInitialized, Detail: "town not initialized"}
	}
	if res, err := g.run.Run(ctx, "gt", "daemon", "status"); err == nil && res.OK() {
		return Status{State: StateRunning}
	}
	return Status{State: StateStopped}
}
