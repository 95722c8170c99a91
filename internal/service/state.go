package service

// State is a service's observed condition. It is derived at probe time and
// never stored.
type State string

const (
	// StateDisabled means the subsystem is turned off by configuration.
	StateDisabled State = "disabled"
	// StateNotConfigured means a prerequisite tool or credential is absent.
	StateNotConfigured State = "not-configured"
	// StateNotInitialized means tools are present but the data directory was
	// never set up.
	StateNotInitialized State = "not-initialized"
	// StateRunning means a live process was observed.
	StateRunning State = "running"
	// StateStopped means prerequisites are satisfied but nothing runs. This
	// is the only state that counts as a failure.
	StateStopped State = "stopped"
)

// Status is one service's probed condition. PID is set when a live process
// is known.
type Status struct {
	State  State  `json:"state"`
	PID    int    `json:"pid,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Report pairs a service name with its status, in start order.
type Report struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}
