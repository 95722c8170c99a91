package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/heartbeat"
	"github.com/townlab/devservices/internal/history"
	"github.com/townlab/devservices/internal/logger"
	"github.com/townlab/devservices/internal/metrics"
	"github.com/townlab/devservices/internal/notify"
	"github.com/townlab/devservices/internal/runner"
	"github.com/townlab/devservices/internal/server"
	"github.com/townlab/devservices/internal/service"
	"github.com/townlab/devservices/internal/watchdog"
)

// toolTimeout bounds every external CLI invocation; the dispatcher itself
// never sets a global deadline.
const toolTimeout = 2 * time.Minute

type command struct {
	flags *GlobalFlags
}

func (c command) load() (config.Config, error) {
	return config.Load(c.flags.ConfigPath)
}

// sink opens the lifecycle event store. Failures downgrade to the no-op
// sink: history must never block supervision.
func (c command) sink(cfg *config.Config, log *slog.Logger) history.Sink {
	s, err := history.Open(cfg.HistoryType, cfg.HistoryLocation())
	if err != nil {
		log.Warn("history store unavailable", "type", cfg.HistoryType, "error", err)
		return history.Nop{}
	}
	return s
}

func (c command) supervisor(cfg *config.Config, log *slog.Logger) (*service.Supervisor, history.Sink) {
	sink := c.sink(cfg, log)
	run := runner.NewExec(cfg.TownHome, toolTimeout)
	return service.NewSupervisor(cfg, run, log, sink), sink
}

func cliLogger() *slog.Logger {
	return logger.NewCLI(os.Stderr, slog.LevelInfo)
}

func (c command) Start() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	log := cliLogger()
	sup, sink := c.supervisor(&cfg, log)
	defer func() { _ = sink.Close() }()
	sup.StartAll(context.Background())
	return nil
}

func (c command) Stop() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	log := cliLogger()
	sup, sink := c.supervisor(&cfg, log)
	defer func() { _ = sink.Close() }()
	sup.StopAll(context.Background())
	return nil
}

func (c command) Restart() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	log := cliLogger()
	sup, sink := c.supervisor(&cfg, log)
	defer func() { _ = sink.Close() }()
	sup.RestartAll(context.Background())
	return nil
}

func (c command) Status(f StatusFlags) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	log := cliLogger()
	sup, sink := c.supervisor(&cfg, log)
	defer func() { _ = sink.Close() }()

	reports := sup.StatusAll(context.Background())
	if f.JSON {
		resp := server.StatusResp{Services: reports, Failed: service.Failed(reports)}
		if doc, err := heartbeat.Read(cfg.HeartbeatFile()); err == nil {
			resp.Heartbeat = &doc
		}
		printJSON(resp)
	} else {
		renderReports(os.Stdout, reports)
	}
	if service.Failed(reports) {
		return errors.New("one or more services stopped")
	}
	return nil
}

func renderReports(w io.Writer, reports []service.Report) {
	for _, r := range reports {
		pid := ""
		if r.Status.PID != 0 {
			pid = fmt.Sprintf("pid %d", r.Status.PID)
		}
		line := fmt.Sprintf("%-14s %-16s %s", r.Name, r.Status.State, pid)
		if r.Status.Detail != "" {
			line = strings.TrimRight(line, " ") + "  (" + r.Status.Detail + ")"
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// signalContext is the daemon shutdown contract: SIGTERM or SIGINT cancels,
// the loop removes its PID file and exits zero.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (c command) Watchdog(f DaemonFlags) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}

	if !f.Foreground {
		pid, err := service.Detach(c.detachArgs("watchdog"), cfg.WatchdogLogFile())
		if err != nil {
			return err
		}
		fmt.Printf("watchdog started (pid %d)\n", pid)
		return nil
	}

	w, err := logger.NewRotatingWriter(cfg.WatchdogLogFile(), watchdog.LogLimit)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	log := logger.NewDaemon(w, parseLevel(f.LogLevel))

	_ = metrics.Register(prometheus.DefaultRegisterer)
	sink := c.sink(&cfg, log)
	defer func() { _ = sink.Close() }()

	ctx, stop := signalContext()
	defer stop()
	run := runner.NewExec(cfg.TownHome, toolTimeout)
	return watchdog.New(&cfg, run, log, sink).Run(ctx)
}

func (c command) Notifier(f DaemonFlags) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if f.Project != "" {
		cfg.ProjectDir = f.Project
	}

	if !f.Foreground {
		args := c.detachArgs("notifier", "--project", cfg.ProjectDir)
		pid, err := service.Detach(args, cfg.NotifierLogFile())
		if err != nil {
			return err
		}
		fmt.Printf("notifier started (pid %d)\n", pid)
		return nil
	}

	nc := notify.Resolve(&cfg)
	if !nc.Configured() {
		return errors.New("no slack webhook configured")
	}

	w := logger.Config{}.FileWriter(cfg.NotifierLogFile())
	defer func() { _ = w.Close() }()
	log := logger.NewDaemon(w, parseLevel(f.LogLevel))

	_ = metrics.Register(prometheus.DefaultRegisterer)

	ctx, stop := signalContext()
	defer stop()
	d := &notify.Daemon{Cfg: &cfg, Notifier: notify.New(nc, log), Log: log}
	return d.Run(ctx)
}

// detachArgs builds the child command line for a daemonized subcommand,
// carrying the config path through.
func (c command) detachArgs(sub string, extra ...string) []string {
	args := []string{sub, "--foreground"}
	if c.flags.ConfigPath != "" {
		args = append(args, "--config", c.flags.ConfigPath)
	}
	return append(args, extra...)
}

func (c command) History(f HistoryFlags, out io.Writer) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	sink, err := history.Open(cfg.HistoryType, cfg.HistoryLocation())
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	events, err := sink.Recent(context.Background(), f.Service, f.Limit)
	if err != nil {
		return err
	}
	if f.JSON {
		printJSON(events)
		return nil
	}
	if len(events) == 0 {
		_, _ = fmt.Fprintln(out, "no recorded events")
		return nil
	}
	for _, e := range events {
		mark := "ok"
		if !e.OK {
			mark = "FAIL"
		}
		line := fmt.Sprintf("%s  %-14s %-17s %-4s", e.At.Format(time.RFC3339), e.Service, e.Action, mark)
		if e.PID != 0 {
			line += fmt.Sprintf("  pid %d", e.PID)
		}
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		_, _ = fmt.Fprintln(out, line)
	}
	return nil
}
