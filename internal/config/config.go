package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every environment-derived setting the supervisor needs.
// It is resolved once at startup; nothing else reads the environment.
// Precedence: built-in defaults, then the optional TOML file, then
// environment variables.
type Config struct {
	// GastownEnabled gates every service except credentials. Only an
	// explicit falsy value (0/false/no/off) disables it.
	GastownEnabled bool
	// TownHome is the orchestrator's data directory.
	TownHome string
	// CredentialServices are the tools whose credentials get cached.
	CredentialServices []string
	// WatchdogInterval is the pause between watchdog cycles.
	WatchdogInterval time.Duration
	// WatchdogListen enables the watchdog's HTTP endpoint when non-empty.
	WatchdogListen string
	// ProjectDir is the work tree that owns .beads.
	ProjectDir string
	// SecretsDir holds cached credential material (0700/0600).
	SecretsDir string
	// SlackWebhook is the last-resort webhook source; see notify.Resolve.
	SlackWebhook string
	// HistoryType selects the lifecycle event store: sqlite, postgres, off.
	HistoryType string
	// HistoryDSN overrides the store location. Empty picks the default
	// SQLite file under TownHome.
	HistoryDSN string
	// Source is the config file Load actually read; empty when only
	// defaults and environment applied. Spawned children get it back as
	// their --config so parent and child resolve the same settings.
	Source string
}

var envBindings = map[string]string{
	"gastown_enabled":     "GASTOWN_ENABLED",
	"town_home":           "GT_HOME",
	"credential_services": "CREDENTIAL_SERVICES",
	"watchdog_interval":   "WATCHDOG_INTERVAL",
	"watchdog_listen":     "WATCHDOG_LISTEN",
	"project_dir":         "DEV_PROJECT_DIR",
	"secrets_dir":         "DEV_SECRETS_DIR",
	"slack_webhook":       "SLACK_WEBHOOK_URL",
	"history_type":        "DEV_HISTORY_TYPE",
	"history_dsn":         "DEV_HISTORY_DSN",
}

// Load resolves the configuration. path points at a TOML file; empty means
// the default location (~/.config/dev-services/config.toml). A missing file
// is only an error when the path was given explicitly.
func Load(path string) (Config, error) {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()

	v := viper.New()
	v.SetConfigType("toml")
	v.SetDefault("gastown_enabled", "true")
	v.SetDefault("town_home", filepath.Join(home, "gt"))
	v.SetDefault("credential_services", "gh claude wrangler")
	v.SetDefault("watchdog_interval", 60)
	v.SetDefault("watchdog_listen", "")
	v.SetDefault("project_dir", cwd)
	v.SetDefault("secrets_dir", filepath.Join(home, ".secrets"))
	v.SetDefault("slack_webhook", "")
	v.SetDefault("history_type", "sqlite")
	v.SetDefault("history_dsn", "")
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	explicit := path != ""
	if !explicit {
		if dir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(dir, "dev-services", "config.toml")
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if explicit || !missingFile(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			path = ""
		}
	}

	interval := v.GetInt("watchdog_interval")
	if interval <= 0 {
		interval = 60
	}
	c := Config{
		GastownEnabled:     !falsy(v.GetString("gastown_enabled")),
		TownHome:           expandHome(v.GetString("town_home"), home),
		CredentialServices: strings.Fields(v.GetString("credential_services")),
		WatchdogInterval:   time.Duration(interval) * time.Second,
		WatchdogListen:     v.GetString("watchdog_listen"),
		ProjectDir:         expandHome(v.GetString("project_dir"), home),
		SecretsDir:         expandHome(v.GetString("secrets_dir"), home),
		SlackWebhook:       v.GetString("slack_webhook"),
		HistoryType:        strings.ToLower(strings.TrimSpace(v.GetString("history_type"))),
		HistoryDSN:         v.GetString("history_dsn"),
		Source:             path,
	}
	return c, nil
}

// falsy recognizes the disable spellings; anything else keeps the default.
func falsy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "false", "no", "off":
		return true
	}
	return false
}

func expandHome(p, home string) string {
	if home == "" {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}

func missingFile(err error) bool {
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		return true
	}
	return errors.Is(err, os.ErrNotExist)
}
