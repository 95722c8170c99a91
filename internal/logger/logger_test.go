package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileWriterCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notifier.log")
	w := Config{}.FileWriter(path)
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestNewCLIColorsAndHidesTime(t *testing.T) {
	var buf bytes.Buffer
	log := NewCLI(&buf, slog.LevelInfo)
	log.Info("ready", "service", "gastown")
	out := buf.String()
	if !strings.Contains(out, "\033[32m") {
		t.Fatalf("no color code in output: %q", out)
	}
	if strings.Contains(out, "time=") {
		t.Fatalf("CLI output should not carry timestamps: %q", out)
	}
	if !strings.Contains(out, "service=gastown") {
		t.Fatalf("attr missing: %q", out)
	}

	buf.Reset()
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug leaked at info level: %q", buf.String())
	}
}

func TestNewDaemonKeepsTime(t *testing.T) {
	var buf bytes.Buffer
	log := NewDaemon(&buf, slog.LevelDebug)
	log.Info("cycle")
	if !strings.Contains(buf.String(), "time=") {
		t.Fatalf("daemon output should carry timestamps: %q", buf.String())
	}
}
