//go:build windows

package service

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

func configureDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | createNoWindow,
	}
}
