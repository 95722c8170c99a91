package config

import (
	"os"
	"path/filepath"
)

// The supervisor's filesystem contract, all derived from TownHome and
// ProjectDir. Nothing else in the tree hardcodes these locations.

func (c Config) DaemonDir() string { return filepath.Join(c.TownHome, "daemon") }

// DaemonPidFile and DoltPidFile belong to the issue-tracker daemon and its
// embedded database server; the supervisor only cleans stale entries and
// kills by them as a stop backstop.
func (c Config) DaemonPidFile() string { return filepath.Join(c.TownHome, "daemon", "daemon.pid") }
func (c Config) DoltPidFile() string   { return filepath.Join(c.TownHome, "daemon", "dolt.pid") }

func (c Config) WatchdogPidFile() string { return filepath.Join(c.TownHome, ".daemon_watchdog.pid") }
func (c Config) WatchdogLogFile() string {
	return filepath.Join(c.TownHome, "logs", "daemon_watchdog.log")
}

func (c Config) HeartbeatFile() string { return filepath.Join(c.TownHome, "deacon", "heartbeat.json") }
func (c Config) TownConfigFile() string { return filepath.Join(c.TownHome, "mayor", "town.json") }

func (c Config) BeadsDir() string { return filepath.Join(c.ProjectDir, ".beads") }
func (c Config) NotifierPidFile() string {
	return filepath.Join(c.BeadsDir(), "slack_notifier.pid")
}
func (c Config) NotifierStateFile() string {
	return filepath.Join(c.BeadsDir(), "slack_notifier_state.json")
}
func (c Config) NotifierLogFile() string {
	return filepath.Join(c.BeadsDir(), "slack_notifier.log")
}
func (c Config) SlackConfigFile() string {
	return filepath.Join(c.BeadsDir(), "slack_config.yaml")
}
func (c Config) IssuesFile() string { return filepath.Join(c.BeadsDir(), "issues.jsonl") }

// HistoryLocation resolves the event store DSN, defaulting to a SQLite file
// under the town home.
func (c Config) HistoryLocation() string {
	if c.HistoryDSN != "" {
		return c.HistoryDSN
	}
	return filepath.Join(c.TownHome, "state", "devservices.db")
}

// TownInitialized reports whether the orchestrator's data directory has been
// set up. The town config is written by the orchestrator's own installer, so
// its presence is the initialization marker.
func (c Config) TownInitialized() bool {
	_, err := os.Stat(c.TownConfigFile())
	return err == nil
}
