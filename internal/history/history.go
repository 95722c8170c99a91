package history

import (
	"context"
	"time"
)

// Actions recorded for a service.
const (
	ActionStart           = "start"
	ActionStop            = "stop"
	ActionSkip            = "skip"
	ActionWatchdogRestart = "watchdog-restart"
)

// Event is one supervisor decision about one service.
type Event struct {
	ID      int64     `json:"id"`
	At      time.Time `json:"at"`
	Service string    `json:"service"`
	Action  string    `json:"action"`
	OK      bool      `json:"ok"`
	PID     int       `json:"pid,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Sink persists lifecycle events. Implementations must be safe for
// concurrent use. Persistence is best-effort everywhere: a failing sink
// never breaks supervision.
type Sink interface {
	Append(ctx context.Context, e Event) error
	Recent(ctx context.Context, service string, limit int) ([]Event, error)
	Close() error
}

// Nop discards events; used when history is configured off.
type Nop struct{}

func (Nop) Append(context.Context, Event) error { return nil }
func (Nop) Recent(context.Context, string, int) ([]Event, error) {
	return nil, nil
}
func (Nop) Close() error { return nil }
