package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/townlab/devservices/internal/notify"
	"github.com/townlab/devservices/internal/secrets"
)

// Notification kinds, used as log and metrics labels.
const (
	kindReview   = "review"
	kindBlocked  = "blocked"
	kindMessage  = "message"
	kindComplete = "complete"
)

// Field caps, in runes. The composed text is escaped once when it is sent.
const (
	maxAgentRunes  = 100
	maxIssueRunes  = 100
	maxDetailRunes = 1000
	maxUpdateRunes = 2000
)

// agentID identifies the sender: BEADS_AGENT_ID when set, else the hostname.
func agentID() string {
	if v := os.Getenv("BEADS_AGENT_ID"); v != "" {
		return v
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}

// currentIssue resolves the issue reference: the --issue flag wins, then
// BEADS_ISSUE_ID.
func currentIssue(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("BEADS_ISSUE_ID")
}

// composeNotification renders one of the fixed announcement layouts. The
// update kind is a single line; the rest are indented blocks.
func composeNotification(kind, agent, issue, msg string) string {
	agent = notify.Clip(agent, maxAgentRunes)
	issue = notify.Clip(issue, maxIssueRunes)

	if kind == kindMessage {
		issueText := ""
		if issue != "" {
			issueText = " (" + issue + ")"
		}
		return fmt.Sprintf("Agent Update [%s]%s: %s", agent, issueText, notify.Clip(msg, maxUpdateRunes))
	}

	issueText := ""
	if issue != "" {
		issueText = "\n   Issue: " + issue
	}
	msg = notify.Clip(msg, maxDetailRunes)
	switch kind {
	case kindReview:
		return fmt.Sprintf("Review Requested\n   Agent: %s%s\n   Message: %s", agent, issueText, msg)
	case kindBlocked:
		return fmt.Sprintf("Agent Blocked\n   Agent: %s%s\n   Blocker: %s", agent, issueText, msg)
	default: // kindComplete
		return fmt.Sprintf("Work Complete\n   Agent: %s%s\n   %s", agent, issueText, msg)
	}
}

// NotifySend posts a one-shot announcement and exits. Unlike the sweeps,
// delivery failures here are real errors: the caller asked for exactly this.
func (c command) NotifySend(kind, message string, f NotifyFlags) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	n := notify.New(notify.Resolve(&cfg), cliLogger())
	text := composeNotification(kind, agentID(), currentIssue(f.Issue), message)
	if err := n.Send(context.Background(), kind, text); err != nil {
		return err
	}
	fmt.Println("notification sent")
	return nil
}

// NotifyCheck reports how a notification would be attributed and delivered
// without sending anything.
func (c command) NotifyCheck(out io.Writer) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}

	issue := currentIssue("")
	if issue == "" {
		issue = "(none)"
	}
	_, _ = fmt.Fprintf(out, "Agent:   %s\n", agentID())
	_, _ = fmt.Fprintf(out, "Issue:   %s\n", issue)

	sec := secrets.Manager{Dir: cfg.SecretsDir}
	if _, ok, _ := sec.Get(notify.WebhookSecret); ok {
		_, _ = fmt.Fprintf(out, "Secret:  %s stored\n", notify.WebhookSecret)
	} else {
		_, _ = fmt.Fprintf(out, "Secret:  %s not stored\n", notify.WebhookSecret)
	}

	nc := notify.Resolve(&cfg)
	_, _ = fmt.Fprintf(out, "Webhook: %s\n", notify.MaskURL(nc.WebhookURL))
	if !nc.Configured() {
		return notify.ErrNoWebhook
	}
	_, _ = fmt.Fprintln(out, "configuration ok")
	return nil
}
