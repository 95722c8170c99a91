package pidfile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	termPollInterval = 100 * time.Millisecond
	termPollAttempts = 10
)

// Check returns the PID recorded at path when, and only when, the file
// exists, parses as a positive integer and names a live process. A missing
// file, unreadable content or a dead PID all report ok == false, so a stale
// file is indistinguishable from an absent one.
func Check(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if !Alive(pid) {
		return 0, false
	}
	return pid, true
}

// Write records pid at path, creating parent directories as needed.
func Write(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600)
}

// Remove deletes the PID file. Absence is not an error.
func Remove(path string) {
	_ = os.Remove(path)
}

// CleanStale removes the file when it exists but no longer names a live
// process. Reports whether a stale file was removed.
func CleanStale(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	if _, ok := Check(path); ok {
		return false
	}
	_ = os.Remove(path)
	return true
}

// KillByFile terminates the process named by the PID file: SIGTERM first,
// then up to termPollAttempts liveness probes, then SIGKILL if the process
// is still around. The PID file is removed no matter what happened, and the
// caller never sees a failure; anomalies are only logged.
func KillByFile(path string, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	defer Remove(path)

	pid, ok := Check(path)
	if !ok {
		return
	}
	if err := terminate(pid); err != nil {
		log.Warn("term signal failed", "pid", pid, "err", err)
		return
	}
	for i := 0; i < termPollAttempts; i++ {
		time.Sleep(termPollInterval)
		if !Alive(pid) {
			return
		}
	}
	log.Warn("process ignored term, killing", "pid", pid, "pidfile", path)
	if err := kill(pid); err != nil {
		log.Warn("kill signal failed", "pid", pid, "err", err)
	}
}
