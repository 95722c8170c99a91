package service

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Detach re-executes this binary with args in its own session, stdout and
// stderr appended to logPath. The child is fully released; it owns its PID
// file and its shutdown.
func Detach(args []string, logPath string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return 0, err
	}
	// #nosec G304 -- logPath is derived from the configured town home
	out, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return 0, fmt.Errorf("open daemon log: %w", err)
	}
	defer func() { _ = out.Close() }()

	// #nosec G204 -- exe is our own binary, args are fixed by the caller
	cmd := exec.Command(exe, args...)
	cmd.Stdin = nil
	cmd.Stdout = out
	cmd.Stderr = out
	configureDaemonAttrs(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon process: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
