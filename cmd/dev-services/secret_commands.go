package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/townlab/devservices/internal/secrets"
)

func (c command) secretsManager() (secrets.Manager, error) {
	cfg, err := c.load()
	if err != nil {
		return secrets.Manager{}, err
	}
	return secrets.Manager{Dir: cfg.SecretsDir}, nil
}

// SecretSet stores one named value. The value comes from --value, an
// interactive hidden prompt, or piped stdin, in that order.
func (c command) SecretSet(name string, f SecretSetFlags) error {
	m, err := c.secretsManager()
	if err != nil {
		return err
	}

	value := f.Value
	if value == "" {
		value, err = readSecretValue(name)
		if err != nil {
			return err
		}
	}
	if err := m.Set(name, value); err != nil {
		return err
	}
	fmt.Printf("secret %q stored\n", name)
	return nil
}

func readSecretValue(name string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprintf(os.Stderr, "Value for %s: ", name)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read secret from stdin: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// SecretGet prints a stored value. A missing entry is an error so scripts
// can branch on the exit code.
func (c command) SecretGet(name string, out io.Writer) error {
	m, err := c.secretsManager()
	if err != nil {
		return err
	}
	value, ok, err := m.Get(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("secret %q not set", name)
	}
	_, _ = fmt.Fprintln(out, value)
	return nil
}

// SecretCheck audits the store, tightening drifted permissions.
func (c command) SecretCheck(out io.Writer) error {
	m, err := c.secretsManager()
	if err != nil {
		return err
	}
	fixed, err := m.Check()
	if err != nil {
		return err
	}
	for _, p := range fixed {
		_, _ = fmt.Fprintf(out, "tightened permissions: %s\n", p)
	}
	names, err := m.List()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%d secret(s) stored\n", len(names))
	return nil
}
