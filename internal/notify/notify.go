package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/townlab/devservices/internal/metrics"
)

const (
	sendTimeout     = 10 * time.Second
	rateLimitMax    = 30
	rateLimitWindow = 60 * time.Second
)

var (
	ErrNoWebhook   = errors.New("no slack webhook configured")
	ErrRateLimited = errors.New("notification rate limit exceeded")
)

// Notifier posts messages to a Slack incoming webhook. Sends are sanitized
// and rate limited, and the webhook URL never reaches logs or errors.
type Notifier struct {
	cfg     Config
	client  *http.Client
	limiter *limiter
	log     *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Notify == (Filters{}) {
		cfg.Notify = Filters{Created: true, InProgress: true, Closed: true, AgentComplete: true}
	}
	return &Notifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: sendTimeout},
		limiter: newLimiter(rateLimitMax, rateLimitWindow),
		log:     log,
	}
}

// Send posts text to the webhook. kind labels the notification in logs and
// metrics only; it is not part of the payload.
func (n *Notifier) Send(ctx context.Context, kind, text string) error {
	if n.cfg.WebhookURL == "" {
		return ErrNoWebhook
	}
	if !n.limiter.allow() {
		metrics.IncNotifierRateLimited()
		n.log.Warn("rate limit exceeded, dropping notification",
			"kind", kind, "in_window", n.limiter.inWindow(), "max", rateLimitMax)
		return ErrRateLimited
	}

	payload := map[string]string{"text": Sanitize(text, MaxMessageRunes)}
	if n.cfg.Channel != "" {
		payload["channel"] = n.cfg.Channel
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %s", n.maskErr(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %s", MaskURL(n.cfg.WebhookURL), n.maskErr(err))
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned HTTP %d", resp.StatusCode)
	}

	metrics.IncNotifierSent(kind)
	n.log.Info("notification sent", "kind", kind, "chars", len(text))
	return nil
}

// maskErr scrubs the webhook URL out of transport errors before they
// propagate.
func (n *Notifier) maskErr(err error) string {
	return strings.ReplaceAll(err.Error(), n.cfg.WebhookURL, MaskURL(n.cfg.WebhookURL))
}
