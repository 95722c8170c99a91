package history

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	sink, err := Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	base := time.Now().UTC().Truncate(time.Second)
	events := []Event{
		{At: base, Service: "beads-daemon", Action: ActionStart, OK: true, PID: 777},
		{At: base.Add(time.Second), Service: "beads-daemon", Action: ActionStop, OK: true},
		{At: base.Add(2 * time.Second), Service: "notifier", Action: ActionSkip, OK: true, Detail: "not configured"},
	}
	for _, e := range events {
		if err := sink.Append(ctx, e); err != nil {
			t.Fatalf("Failed to append event: %v", err)
		}
	}

	got, err := sink.Recent(ctx, "beads-daemon", 10)
	if err != nil {
		t.Fatalf("Failed to query recent events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 beads-daemon events, got %d", len(got))
	}
	if got[0].Action != ActionStop || got[1].Action != ActionStart {
		t.Fatalf("Events out of order: %s then %s", got[0].Action, got[1].Action)
	}
	if got[1].PID != 777 {
		t.Fatalf("PID not persisted: %d", got[1].PID)
	}

	all, err := sink.Recent(ctx, "", 2)
	if err != nil {
		t.Fatalf("Failed to query with limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected limit of 2, got %d", len(all))
	}
}
