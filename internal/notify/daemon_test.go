package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/pidfile"
)

// waitUntil polls fn until it returns true or timeout expires.
func waitUntil(timeout, step time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(step)
	}
	return false
}

type postLog struct {
	mu    sync.Mutex
	texts []string
}

func (p *postLog) add(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
}

func (p *postLog) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

func webhookServer(t *testing.T, log *postLog) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]string
		if err := json.Unmarshal(body, &payload); err == nil {
			log.add(payload["text"])
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDaemonAnnouncesNewIssue(t *testing.T) {
	var posts postLog
	srv := webhookServer(t, &posts)

	cfg := &config.Config{ProjectDir: t.TempDir(), SecretsDir: t.TempDir()}
	if err := os.MkdirAll(cfg.BeadsDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	seed := `{"id":"dev-1","title":"existing work","status":"open","priority":2}` + "\n"
	if err := os.WriteFile(cfg.IssuesFile(), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	d := &Daemon{
		Cfg:      cfg,
		Notifier: New(Config{WebhookURL: srv.URL}, discardLogger()),
		Log:      discardLogger(),
		Debounce: 50 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	if !waitUntil(5*time.Second, 10*time.Millisecond, func() bool {
		_, alive := pidfile.Check(cfg.NotifierPidFile())
		return alive
	}) {
		t.Fatal("daemon never wrote its pid file")
	}

	f, err := os.OpenFile(cfg.IssuesFile(), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"id":"dev-2","title":"new bug","status":"open","priority":1}` + "\n"); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	if !waitUntil(5*time.Second, 20*time.Millisecond, func() bool {
		return len(posts.snapshot()) >= 1
	}) {
		t.Fatal("no notification arrived for the new issue")
	}

	got := posts.snapshot()
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1 (seeded backlog must stay silent): %q", len(got), got)
	}
	if !strings.Contains(got[0], "Issue Created: dev-2") {
		t.Fatalf("notification text = %q", got[0])
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if _, err := os.Stat(cfg.NotifierPidFile()); !os.IsNotExist(err) {
		t.Fatal("pid file not removed on shutdown")
	}
}

func TestDaemonAnnouncesStatusChange(t *testing.T) {
	var posts postLog
	srv := webhookServer(t, &posts)

	cfg := &config.Config{ProjectDir: t.TempDir(), SecretsDir: t.TempDir()}
	if err := os.MkdirAll(cfg.BeadsDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	seed := `{"id":"dev-1","title":"existing work","status":"open","assignee":"kit"}` + "\n"
	if err := os.WriteFile(cfg.IssuesFile(), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	d := &Daemon{
		Cfg:      cfg,
		Notifier: New(Config{WebhookURL: srv.URL}, discardLogger()),
		Log:      discardLogger(),
		Debounce: 50 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	if !waitUntil(5*time.Second, 10*time.Millisecond, func() bool {
		_, alive := pidfile.Check(cfg.NotifierPidFile())
		return alive
	}) {
		t.Fatal("daemon never wrote its pid file")
	}

	// bd rewrites the whole file on status changes
	update := `{"id":"dev-1","title":"existing work","status":"in_progress","assignee":"kit"}` + "\n"
	if err := os.WriteFile(cfg.IssuesFile(), []byte(update), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitUntil(5*time.Second, 20*time.Millisecond, func() bool {
		return len(posts.snapshot()) >= 1
	}) {
		t.Fatal("no notification arrived for the status change")
	}
	if got := posts.snapshot(); !strings.Contains(got[0], "Work Started: dev-1") {
		t.Fatalf("notification text = %q", got[0])
	}

	cancel()
	<-done
}

func TestDaemonSecondInstanceExitsCleanly(t *testing.T) {
	cfg := &config.Config{ProjectDir: t.TempDir(), SecretsDir: t.TempDir()}
	if err := os.MkdirAll(cfg.BeadsDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	// the test process itself plays the running instance
	if err := pidfile.Write(cfg.NotifierPidFile(), os.Getpid()); err != nil {
		t.Fatal(err)
	}

	d := &Daemon{
		Cfg:      cfg,
		Notifier: New(Config{WebhookURL: "https://hooks.example.com/h"}, discardLogger()),
		Log:      discardLogger(),
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("second instance should exit cleanly, got %v", err)
	}
	if _, alive := pidfile.Check(cfg.NotifierPidFile()); !alive {
		t.Fatal("second instance must not remove the holder's pid file")
	}
}
