package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenDispatch(t *testing.T) {
	for _, typ := range []string{"", "off", "none"} {
		s, err := Open(typ, "")
		if err != nil {
			t.Fatalf("Open(%q): %v", typ, err)
		}
		if _, ok := s.(Nop); !ok {
			t.Fatalf("Open(%q) = %T, want Nop", typ, s)
		}
	}
	if _, err := Open("cassandra", "whatever"); err == nil {
		t.Fatal("expected error for unsupported history type")
	}
	if _, err := Open("sqlite", ""); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestNopSink(t *testing.T) {
	var s Sink = Nop{}
	if err := s.Append(context.Background(), Event{Service: "gastown", Action: ActionStart}); err != nil {
		t.Fatalf("Nop.Append: %v", err)
	}
	evs, err := s.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Nop.Recent: %v", err)
	}
	if len(evs) != 0 {
		t.Fatalf("Nop.Recent returned %d events", len(evs))
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Nop.Close: %v", err)
	}
}

func TestSQLiteAppendAndRecent(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "state", "devservices.db")

	sink, err := Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{At: base, Service: "credentials", Action: ActionStart, OK: true},
		{At: base.Add(time.Second), Service: "beads-daemon", Action: ActionStart, OK: true, PID: 4321},
		{At: base.Add(2 * time.Second), Service: "gastown", Action: ActionStart, OK: false, Detail: "gt up exited 1"},
		{At: base.Add(3 * time.Second), Service: "gastown", Action: ActionStop, OK: true},
	}
	for _, e := range events {
		if err := sink.Append(ctx, e); err != nil {
			t.Fatalf("Append(%s/%s): %v", e.Service, e.Action, err)
		}
	}

	all, err := sink.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d events, want 4", len(all))
	}
	// newest first
	if all[0].Service != "gastown" || all[0].Action != ActionStop {
		t.Fatalf("newest event = %s/%s, want gastown/stop", all[0].Service, all[0].Action)
	}
	if all[3].Service != "credentials" {
		t.Fatalf("oldest event = %s, want credentials", all[3].Service)
	}
	if all[2].PID != 4321 {
		t.Fatalf("pid not persisted: %d", all[2].PID)
	}
	if all[1].OK || all[1].Detail != "gt up exited 1" {
		t.Fatalf("failure event not persisted: ok=%v detail=%q", all[1].OK, all[1].Detail)
	}

	gastown, err := sink.Recent(ctx, "gastown", 10)
	if err != nil {
		t.Fatalf("Recent(gastown): %v", err)
	}
	if len(gastown) != 2 {
		t.Fatalf("filter returned %d events, want 2", len(gastown))
	}
	for _, e := range gastown {
		if e.Service != "gastown" {
			t.Fatalf("filter leaked service %q", e.Service)
		}
	}

	limited, err := sink.Recent(ctx, "", 2)
	if err != nil {
		t.Fatalf("Recent(limit=2): %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit returned %d events, want 2", len(limited))
	}
	if limited[0].Action != ActionStop {
		t.Fatalf("limit did not keep newest first")
	}
}

func TestSQLitePrefixDSN(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open("sqlite", "sqlite://"+filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("Open with sqlite:// prefix: %v", err)
	}
	defer func() { _ = sink.Close() }()

	e := Event{At: time.Now().UTC(), Service: "watchdog", Action: ActionWatchdogRestart, OK: true}
	if err := sink.Append(context.Background(), e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := sink.Recent(context.Background(), "watchdog", 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Action != ActionWatchdogRestart {
		t.Fatalf("round trip failed: %+v", got)
	}
}
