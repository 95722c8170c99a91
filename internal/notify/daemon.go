package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/pidfile"
)

const defaultDebounce = time.Second

// Daemon watches the project issue database and announces changes to Slack.
// One instance per project, enforced through the notifier PID file.
type Daemon struct {
	Cfg      *config.Config
	Notifier *Notifier
	Log      *slog.Logger
	Debounce time.Duration
}

// Run blocks until ctx is canceled and returns nil on a clean shutdown. It
// also returns nil immediately when another instance already holds the PID
// file.
func (d *Daemon) Run(ctx context.Context) error {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Debounce <= 0 {
		d.Debounce = defaultDebounce
	}

	pidPath := d.Cfg.NotifierPidFile()
	if pid, alive := pidfile.Check(pidPath); alive {
		d.Log.Info("notifier already running", "pid", pid)
		return nil
	}
	if err := pidfile.Write(pidPath, os.Getpid()); err != nil {
		return fmt.Errorf("write notifier pid file: %w", err)
	}
	defer pidfile.Remove(pidPath)

	issuesPath := d.Cfg.IssuesFile()
	state := LoadState(d.Cfg.NotifierStateFile())

	// Fold unseen issues into the snapshot without announcing them so a
	// fresh install does not replay the whole backlog.
	cur, err := ParseIssues(issuesPath)
	if err != nil {
		d.Log.Warn("cannot read issues file", "path", issuesPath, "error", err)
		cur = map[string]Issue{}
	}
	for id, is := range cur {
		if _, ok := state.Issues[id]; !ok {
			state.Issues[id] = is
		}
	}
	if err := state.Save(); err != nil {
		d.Log.Warn("cannot persist notifier state", "error", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(d.Cfg.BeadsDir()); err != nil {
		return fmt.Errorf("watch %s: %w", d.Cfg.BeadsDir(), err)
	}

	d.Log.Info("notifier started",
		"watching", issuesPath,
		"webhook", MaskURL(d.Notifier.cfg.WebhookURL),
		"rate_limit", fmt.Sprintf("%d/%s", rateLimitMax, rateLimitWindow))

	// Editors and bd rewrite issues.jsonl in bursts; a short debounce lets
	// the file settle before one diff pass.
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			d.Log.Info("notifier stopping")
			return nil
		case err := <-w.Errors:
			d.Log.Warn("watch error", "error", err)
		case ev := <-w.Events:
			if filepath.Base(ev.Name) != filepath.Base(issuesPath) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(d.Debounce)
		case <-debounce:
			debounce = nil
			d.scan(ctx, state, issuesPath)
		}
	}
}

func (d *Daemon) scan(ctx context.Context, state *State, issuesPath string) {
	cur, err := ParseIssues(issuesPath)
	if err != nil {
		d.Log.Warn("cannot read issues file", "path", issuesPath, "error", err)
		return
	}
	for _, c := range DiffIssues(state.Issues, cur) {
		if !d.Notifier.cfg.Notify.allows(c.Kind) {
			continue
		}
		d.Log.Info("issue change", "kind", c.Kind, "issue", c.Issue.ID, "status", c.Issue.Status)
		if err := d.Notifier.Send(ctx, c.Kind, c.Message()); err != nil {
			d.Log.Warn("send failed", "kind", c.Kind, "issue", c.Issue.ID, "error", err)
		}
	}
	state.Issues = cur
	if err := state.Save(); err != nil {
		d.Log.Warn("cannot persist notifier state", "error", err)
	}
}
