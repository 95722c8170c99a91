package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/history"
	"github.com/townlab/devservices/internal/runner"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("pid liveness probing differs on Windows")
	}
}

// journal records side effects with timestamps so ordering can be asserted.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeService struct {
	name     string
	j        *journal
	startErr error
	stopErr  error
	status   Status
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(context.Context) error {
	f.j.add(f.name + ":start")
	return f.startErr
}

func (f *fakeService) Stop(context.Context) error {
	f.j.add(f.name + ":stop")
	return f.stopErr
}

func (f *fakeService) Status(context.Context) Status { return f.status }

// captureSink records history events in memory.
type captureSink struct {
	mu     sync.Mutex
	events []history.Event
}

func (c *captureSink) Append(_ context.Context, e history.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captureSink) Recent(context.Context, string, int) ([]history.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]history.Event(nil), c.events...), nil
}

func (c *captureSink) Close() error { return nil }

func fakeSet(j *journal, names ...string) []Service {
	out := make([]Service, 0, len(names))
	for _, n := range names {
		out = append(out, &fakeService{name: n, j: j})
	}
	return out
}

func TestStartAllRunsInOrderAndSurvivesFailure(t *testing.T) {
	j := &journal{}
	svcs := fakeSet(j, "a", "b", "c")
	svcs[1].(*fakeService).startErr = fmt.Errorf("boom: %w", ErrTransient)

	sink := &captureSink{}
	s := &Supervisor{services: svcs, log: discardLogger(), sink: sink}
	s.StartAll(context.Background())

	got := j.list()
	want := []string{"a:start", "b:start", "c:start"}
	if len(got) != len(want) {
		t.Fatalf("journal = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("journal[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	var failed int
	for _, e := range sink.events {
		if !e.OK {
			failed++
			if e.Service != "b" || e.Detail == "" {
				t.Fatalf("failure event wrong: %+v", e)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("recorded %d failures, want 1", failed)
	}
}

func TestStopAllReverseOrder(t *testing.T) {
	j := &journal{}
	s := &Supervisor{services: fakeSet(j, "a", "b", "c"), log: discardLogger(), sink: history.Nop{}}
	s.StopAll(context.Background())

	got := j.list()
	want := []string{"c:stop", "b:stop", "a:stop"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("journal = %v, want %v", got, want)
		}
	}
}

func TestRestartAllStopsEverythingFirst(t *testing.T) {
	j := &journal{}
	s := &Supervisor{services: fakeSet(j, "a", "b"), log: discardLogger(), sink: history.Nop{}}
	s.RestartAll(context.Background())

	got := j.list()
	lastStop, firstStart := -1, len(got)
	for i, e := range got {
		if strings.HasSuffix(e, ":stop") && i > lastStop {
			lastStop = i
		}
		if strings.HasSuffix(e, ":start") && i < firstStart {
			firstStart = i
		}
	}
	if lastStop == -1 || firstStart == len(got) {
		t.Fatalf("journal incomplete: %v", got)
	}
	if lastStop > firstStart {
		t.Fatalf("restart interleaved stop and start: %v", got)
	}
	if got[0] != "b:stop" || got[len(got)-1] != "b:start" {
		t.Fatalf("restart order wrong: %v", got)
	}
}

func TestSkippableErrorsRecordSkips(t *testing.T) {
	j := &journal{}
	svcs := fakeSet(j, "a")
	svcs[0].(*fakeService).startErr = fmt.Errorf("gt: %w", ErrToolMissing)

	sink := &captureSink{}
	s := &Supervisor{services: svcs, log: discardLogger(), sink: sink}
	s.StartAll(context.Background())

	if len(sink.events) != 1 {
		t.Fatalf("events = %+v", sink.events)
	}
	e := sink.events[0]
	if e.Action != history.ActionSkip || !e.OK {
		t.Fatalf("skip recorded as %+v", e)
	}
}

func TestFailedPredicate(t *testing.T) {
	ok := []Report{
		{Name: "credentials", Status: Status{State: StateRunning}},
		{Name: "beads-daemon", Status: Status{State: StateDisabled}},
		{Name: "gastown", Status: Status{State: StateNotConfigured}},
		{Name: "watchdog", Status: Status{State: StateNotInitialized}},
	}
	if Failed(ok) {
		t.Fatal("no stopped service, Failed must be false")
	}

	bad := append(ok, Report{Name: "notifier", Status: Status{State: StateStopped}})
	if !Failed(bad) {
		t.Fatal("a stopped service must flip Failed")
	}
}

func TestStatusAllKeepsStartOrder(t *testing.T) {
	j := &journal{}
	svcs := fakeSet(j, "a", "b")
	svcs[0].(*fakeService).status = Status{State: StateRunning, PID: 42}
	svcs[1].(*fakeService).status = Status{State: StateStopped}

	s := &Supervisor{services: svcs, log: discardLogger(), sink: history.Nop{}}
	reports := s.StatusAll(context.Background())
	if len(reports) != 2 || reports[0].Name != "a" || reports[1].Name != "b" {
		t.Fatalf("reports = %+v", reports)
	}
	if reports[0].Status.PID != 42 {
		t.Fatalf("pid lost: %+v", reports[0])
	}
}

// The orchestrator-disable flag must reduce a full start sweep to the
// credential step alone; no orchestrator tool may run.
func TestDisabledFlagSkipsEverythingButCredentials(t *testing.T) {
	cfg := &config.Config{
		GastownEnabled: false,
		TownHome:       t.TempDir(),
		SecretsDir:     t.TempDir(),
		ProjectDir:     t.TempDir(),
	}
	rec := &runner.Recorder{}
	sink := &captureSink{}
	s := NewSupervisor(cfg, rec, discardLogger(), sink)

	s.StartAll(context.Background())

	if lines := rec.Lines(); len(lines) != 0 {
		t.Fatalf("orchestrator tools were invoked: %v", lines)
	}

	actions := map[string]string{}
	for _, e := range sink.events {
		actions[e.Service] = e.Action
	}
	if actions["credentials"] != history.ActionStart {
		t.Fatalf("credentials did not start: %+v", actions)
	}
	for _, name := range []string{"beads-daemon", "gastown", "watchdog", "notifier"} {
		if actions[name] != history.ActionSkip {
			t.Fatalf("%s recorded %q, want skip", name, actions[name])
		}
	}
}

// Stopping a system that never started is routine teardown, not an error.
func TestStopNothingStartedStaysQuiet(t *testing.T) {
	cfg := &config.Config{
		GastownEnabled: true,
		TownHome:       t.TempDir(),
		SecretsDir:     t.TempDir(),
		ProjectDir:     t.TempDir(),
	}
	rec := &runner.Recorder{Tools: map[string]bool{"bd": false, "gt": false, "git": false}}

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := NewSupervisor(cfg, rec, log, history.Nop{})

	done := make(chan struct{})
	go func() {
		s.StopAll(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("StopAll hung")
	}

	if out := buf.String(); strings.Contains(out, "level=ERROR") {
		t.Fatalf("stop with nothing running produced errors:\n%s", out)
	}
}
