package main

// Flag structs decouple cobra from the handlers so tests can drive the
// handlers directly.

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

type StatusFlags struct {
	JSON bool
}

// DaemonFlags configure the long-running commands (watchdog, notifier).
type DaemonFlags struct {
	Foreground bool
	Project    string
	LogLevel   string
}

type NotifyFlags struct {
	Issue string
}

type SecretSetFlags struct {
	Value string
}

type HistoryFlags struct {
	Service string
	Limit   int
	JSON    bool
}
