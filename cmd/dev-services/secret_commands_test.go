package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestSecretSetGetRoundTrip(t *testing.T) {
	c := testCommand(t, "")

	if err := c.SecretSet("gh-token", SecretSetFlags{Value: "abc123"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	var buf bytes.Buffer
	if err := c.SecretGet("gh-token", &buf); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "abc123" {
		t.Errorf("got %q, want abc123", got)
	}
}

func TestSecretGetMissing(t *testing.T) {
	c := testCommand(t, "")
	var buf bytes.Buffer
	err := c.SecretGet("nope", &buf)
	if err == nil || !strings.Contains(err.Error(), "not set") {
		t.Fatalf("expected not-set error, got %v", err)
	}
}

func TestSecretSetFromStdin(t *testing.T) {
	c := testCommand(t, "")

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	old := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = old })

	if _, err := w.WriteString("  tok-55\n"); err != nil {
		t.Fatalf("write pipe: %v", err)
	}
	_ = w.Close()

	if err := c.SecretSet("ci-token", SecretSetFlags{}); err != nil {
		t.Fatalf("set from stdin: %v", err)
	}
	var buf bytes.Buffer
	if err := c.SecretGet("ci-token", &buf); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "tok-55" {
		t.Errorf("got %q, want tok-55 (trimmed)", got)
	}
}

func TestSecretSetRejectsEmpty(t *testing.T) {
	c := testCommand(t, "")

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	old := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = old })
	_ = w.Close()

	if err := c.SecretSet("empty", SecretSetFlags{}); err == nil {
		t.Fatal("empty value must be rejected")
	}
}

func TestSecretCheckRepairsPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are POSIX-only")
	}
	c := testCommand(t, "")

	if err := c.SecretSet("a", SecretSetFlags{Value: "1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.SecretSet("b", SecretSetFlags{Value: "2"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg, err := c.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loose := filepath.Join(cfg.SecretsDir, "a")
	if err := os.Chmod(loose, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	var buf bytes.Buffer
	if err := c.SecretCheck(&buf); err != nil {
		t.Fatalf("check: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "tightened permissions") || !strings.Contains(out, loose) {
		t.Errorf("missing repair report: %s", out)
	}
	if !strings.Contains(out, "2 secret(s) stored") {
		t.Errorf("missing count: %s", out)
	}

	info, err := os.Stat(loose)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("permissions not repaired: %v", info.Mode().Perm())
	}
}
