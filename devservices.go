package devservices

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/history"
	"github.com/townlab/devservices/internal/metrics"
	"github.com/townlab/devservices/internal/runner"
	iapi "github.com/townlab/devservices/internal/server"
	"github.com/townlab/devservices/internal/service"
	"github.com/townlab/devservices/internal/watchdog"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type State = service.State

type Status = service.Status

type Report = service.Report

type Event = history.Event

type HistorySink = history.Sink

const (
	StateDisabled       = service.StateDisabled
	StateNotConfigured  = service.StateNotConfigured
	StateNotInitialized = service.StateNotInitialized
	StateRunning        = service.StateRunning
	StateStopped        = service.StateStopped
)

// LoadConfig resolves configuration from path (empty means the default
// location), environment variables and built-in defaults.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// Supervisor is a thin facade over internal/service.Supervisor.
// It provides a stable public API for embedding.

type Supervisor struct{ inner *service.Supervisor }

func New(cfg *Config) *Supervisor {
	return &Supervisor{inner: service.NewSupervisor(cfg, runner.NewExec(cfg.TownHome, 0), nil, nil)}
}

// NewWithSink is New with a logger and a lifecycle event store attached.
// Either may be nil.
func NewWithSink(cfg *Config, log *slog.Logger, sink HistorySink) *Supervisor {
	return &Supervisor{inner: service.NewSupervisor(cfg, runner.NewExec(cfg.TownHome, 0), log, sink)}
}

func (s *Supervisor) StartAll(ctx context.Context)           { s.inner.StartAll(ctx) }
func (s *Supervisor) StopAll(ctx context.Context)            { s.inner.StopAll(ctx) }
func (s *Supervisor) RestartAll(ctx context.Context)         { s.inner.RestartAll(ctx) }
func (s *Supervisor) StatusAll(ctx context.Context) []Report { return s.inner.StatusAll(ctx) }

// Failed reports whether any service in reports is stopped. Disabled and
// unconfigured services do not count.
func Failed(reports []Report) bool { return service.Failed(reports) }

// OpenHistory opens a lifecycle event store. typ is "sqlite", "postgres"
// or "off"; an empty dsn picks the default SQLite location only when the
// caller computed one (see Config.HistoryLocation).
func OpenHistory(typ, dsn string) (HistorySink, error) {
	return history.Open(typ, dsn)
}

// Watchdog facade

type Watchdog struct{ inner *watchdog.Watchdog }

// NewWatchdog builds the keepalive loop for embedding. log and sink may be
// nil.
func NewWatchdog(cfg *Config, log *slog.Logger, sink HistorySink) *Watchdog {
	return &Watchdog{inner: watchdog.New(cfg, runner.NewExec(cfg.TownHome, 0), log, sink)}
}

// Run blocks until ctx is canceled. It refuses to run when another watchdog
// instance holds the PID file.
func (w *Watchdog) Run(ctx context.Context) error { return w.inner.Run(ctx) }

// NewHTTPServer starts the read-only observation endpoint for s on addr.
func NewHTTPServer(addr, basePath string, s *Supervisor) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, s.inner)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
