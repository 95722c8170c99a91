package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/history"
	"github.com/townlab/devservices/internal/metrics"
	"github.com/townlab/devservices/internal/runner"
)

// Service is one supervised unit. Implementations never abort the sweep:
// missing prerequisites come back as skippable sentinel errors, real
// failures wrap ErrTransient, and Status always answers.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status(ctx context.Context) Status
}

// Supervisor drives the closed, ordered service set: credentials, then the
// beads daemon, then gastown, then the watchdog, then the notifier. Stops
// run in reverse.
type Supervisor struct {
	cfg      *config.Config
	services []Service
	log      *slog.Logger
	sink     history.Sink
}

// NewSupervisor wires the standard service set. sink may be nil.
func NewSupervisor(cfg *config.Config, run runner.Runner, log *slog.Logger, sink history.Sink) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = history.Nop{}
	}
	services := []Service{
		NewCredentials(cfg, log),
		NewBeads(cfg, run, log),
		NewGastown(cfg, run, log),
		NewWatchdog(cfg, log),
		NewNotifier(cfg, run, log),
	}
	return &Supervisor{cfg: cfg, services: services, log: log, sink: sink}
}

// Services exposes the ordered set, mainly for status rendering.
func (s *Supervisor) Services() []Service { return s.services }

// Config returns the configuration the supervisor was built with.
func (s *Supervisor) Config() *config.Config { return s.cfg }

// StartAll starts every service in order. Individual failures are logged
// and recorded; the sweep always completes.
func (s *Supervisor) StartAll(ctx context.Context) {
	for _, svc := range s.services {
		s.apply(ctx, svc, history.ActionStart, svc.Start)
	}
}

// StopAll stops every service in reverse order with the same error policy
// as StartAll.
func (s *Supervisor) StopAll(ctx context.Context) {
	for i := len(s.services) - 1; i >= 0; i-- {
		svc := s.services[i]
		s.apply(ctx, svc, history.ActionStop, svc.Stop)
	}
}

// RestartAll cold-cycles the whole set: the complete stop sweep runs before
// any start action.
func (s *Supervisor) RestartAll(ctx context.Context) {
	s.StopAll(ctx)
	s.StartAll(ctx)
}

// StatusAll probes every service in start order.
func (s *Supervisor) StatusAll(ctx context.Context) []Report {
	reports := make([]Report, 0, len(s.services))
	for _, svc := range s.services {
		reports = append(reports, Report{Name: svc.Name(), Status: svc.Status(ctx)})
	}
	return reports
}

// Failed reports whether at least one service is stopped. Disabled,
// not-configured and not-initialized services are not failures.
func Failed(reports []Report) bool {
	for _, r := range reports {
		if r.Status.State == StateStopped {
			return true
		}
	}
	return false
}

func (s *Supervisor) apply(ctx context.Context, svc Service, action string, op func(context.Context) error) {
	err := op(ctx)
	switch {
	case err == nil:
		s.log.Info(action+" ok", "service", svc.Name())
		s.record(ctx, svc.Name(), action, true, "")
		if action == history.ActionStart {
			metrics.IncStart(svc.Name())
		} else {
			metrics.IncStop(svc.Name())
		}
	case skippable(err):
		s.log.Info("skipping "+action, "service", svc.Name(), "reason", err)
		s.record(ctx, svc.Name(), history.ActionSkip, true, err.Error())
	default:
		s.log.Error(action+" failed", "service", svc.Name(), "error", err)
		s.record(ctx, svc.Name(), action, false, err.Error())
		metrics.IncFailure(svc.Name())
	}
}

func (s *Supervisor) record(ctx context.Context, name, action string, ok bool, detail string) {
	ev := history.Event{At: time.Now().UTC(), Service: name, Action: action, OK: ok, Detail: detail}
	if err := s.sink.Append(ctx, ev); err != nil {
		s.log.Warn("history append failed", "service", name, "error", err)
	}
}
