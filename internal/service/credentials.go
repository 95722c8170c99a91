package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/townlab/devservices/internal/config"
	"github.com/townlab/devservices/internal/secrets"
)

// Credentials fills the secrets store for the configured tool list. Nothing
// runs in the background; Stop is a no-op. Acquisition is tiered: an entry
// already in the store wins, then the <NAME>_TOKEN environment variable,
// then a hidden terminal prompt. A tool left unconfigured is a notice, not
// an error.
type Credentials struct {
	names  []string
	sec    secrets.Manager
	log    *slog.Logger
	getenv func(string) string
	prompt func(name string) (string, error)
}

func NewCredentials(cfg *config.Config, log *slog.Logger) *Credentials {
	return &Credentials{
		names:  cfg.CredentialServices,
		sec:    secrets.Manager{Dir: cfg.SecretsDir},
		log:    log,
		getenv: os.Getenv,
		prompt: promptToken,
	}
}

func (c *Credentials) Name() string { return "credentials" }

func (c *Credentials) Start(_ context.Context) error {
	for _, name := range c.names {
		if _, ok, err := c.sec.Get(name); err == nil && ok {
			c.log.Debug("credential cached", "tool", name)
			continue
		}

		if tok := c.getenv(TokenVar(name)); strings.TrimSpace(tok) != "" {
			if err := c.sec.Set(name, tok); err != nil {
				c.log.Warn("cannot cache credential", "tool", name, "error", err)
				continue
			}
			c.log.Info("credential imported from environment", "tool", name)
			continue
		}

		tok, err := c.prompt(name)
		if err != nil {
			c.log.Warn("credential prompt failed", "tool", name, "error", err)
			continue
		}
		if strings.TrimSpace(tok) == "" {
			c.log.Info("credential left unconfigured", "tool", name)
			continue
		}
		if err := c.sec.Set(name, tok); err != nil {
			c.log.Warn("cannot cache credential", "tool", name, "error", err)
			continue
		}
		c.log.Info("credential cached", "tool", name)
	}
	return nil
}

func (c *Credentials) Stop(_ context.Context) error { return nil }

func (c *Credentials) Status(_ context.Context) Status {
	var missing []string
	for _, name := range c.names {
		if _, ok, _ := c.sec.Get(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return Status{State: StateRunning}
	}
	return Status{State: StateNotConfigured, Detail: "missing: " + strings.Join(missing, " ")}
}

// TokenVar maps a tool name to its token environment variable, for example
// beads-ci -> BEADS_CI_TOKEN.
func TokenVar(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_TOKEN"
}

// promptToken asks for a token without echo. Non-interactive sessions skip
// silently so container builds never hang on a prompt.
func promptToken(name string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprintf(os.Stderr, "Enter %s token (empty to skip): ", name)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
