package notify

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/env"
	"github.com/townlab/devservices/internal/secrets"
)

// WebhookSecret is the secrets store entry consulted first when resolving
// the webhook URL.
const WebhookSecret = "slack-webhook"

// Config carries the resolved Slack delivery settings for one project.
type Config struct {
	WebhookURL string
	Channel    string
	Notify     Filters
}

// Filters toggles individual notification kinds, read from the notify_on
// section of slack_config.yaml. Everything defaults to on.
type Filters struct {
	Created       bool
	InProgress    bool
	Closed        bool
	AgentComplete bool
}

func (f Filters) allows(kind string) bool {
	switch kind {
	case ChangeCreated:
		return f.Created
	case ChangeInProgress:
		return f.InProgress
	case ChangeClosed:
		return f.Closed
	case ChangeAgentComplete:
		return f.AgentComplete
	}
	return true
}

// Configured reports whether a webhook URL resolved.
func (c Config) Configured() bool { return c.WebhookURL != "" }

// Resolve builds the Slack settings for a project. The webhook URL comes
// from the secrets store first, then from slack_config.yaml (values may
// reference environment variables as ${VAR}), then from SLACK_WEBHOOK_URL.
func Resolve(cfg *config.Config) Config {
	out := Config{Notify: Filters{Created: true, InProgress: true, Closed: true, AgentComplete: true}}

	sec := secrets.Manager{Dir: cfg.SecretsDir}
	if v, ok, _ := sec.Get(WebhookSecret); ok {
		out.WebhookURL = v
	}

	path := cfg.SlackConfigFile()
	if fi, err := os.Stat(path); err == nil {
		if fi.Mode().Perm() != 0o600 {
			_ = os.Chmod(path, 0o600)
		}
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		v.SetDefault("notify_on.created", true)
		v.SetDefault("notify_on.in_progress", true)
		v.SetDefault("notify_on.closed", true)
		v.SetDefault("notify_on.agent_complete", true)
		if err := v.ReadInConfig(); err == nil {
			if out.WebhookURL == "" {
				e := env.New()
				e.FromOS()
				u := e.Expand(v.GetString("webhook_url"))
				if !strings.Contains(u, "${") {
					out.WebhookURL = u
				}
			}
			out.Channel = v.GetString("channel")
			out.Notify.Created = v.GetBool("notify_on.created")
			out.Notify.InProgress = v.GetBool("notify_on.in_progress")
			out.Notify.Closed = v.GetBool("notify_on.closed")
			out.Notify.AgentComplete = v.GetBool("notify_on.agent_complete")
		}
	}

	if out.WebhookURL == "" {
		out.WebhookURL = cfg.SlackWebhook
	}
	return out
}
