package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncStart("gastown")
	IncStart("gastown")
	IncStop("gastown")
	IncFailure("beads-daemon")
	IncWatchdogCycle()
	IncWatchdogRestart("ok")
	IncNotifierSent("status")
	IncNotifierRateLimited()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	want := map[string]bool{
		"devservices_service_starts_total":        false,
		"devservices_service_stops_total":         false,
		"devservices_service_failures_total":      false,
		"devservices_watchdog_cycles_total":       false,
		"devservices_watchdog_restarts_total":     false,
		"devservices_notifier_messages_total":     false,
		"devservices_notifier_rate_limited_total": false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", mf.GetName())
			}
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("metric %s not gathered", name)
		}
	}
}

func TestHandlerServesText(t *testing.T) {
	// Uses the default gatherer; register there too so output is non-empty.
	_ = Register(prometheus.DefaultRegisterer)
	IncStart("credentials")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("metrics endpoint unusable: %d", resp.StatusCode)
	}
}
