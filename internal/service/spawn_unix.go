//go:build !windows

package service

import (
	"os/exec"
	"syscall"
)

// configureDaemonAttrs detaches the child into a new session so it survives
// the parent's terminal.
func configureDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
