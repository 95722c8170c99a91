package runner

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/townlab/devservices/internal/env"
)

const defaultTimeout = 30 * time.Second

// Result is the outcome of one external tool invocation. Only the exit code
// carries meaning for callers; Output is kept for narrow substring checks and
// log lines.
type Result struct {
	Code   int
	Output string
}

// OK reports a zero exit.
func (r Result) OK() bool { return r.Code == 0 }

// Runner executes the external collaborators (gt, bd, git). The supervisor
// treats them as black boxes, so the whole surface is lookup plus run.
type Runner interface {
	// Look reports whether the named tool resolves on PATH.
	Look(name string) bool
	// Run executes the tool with args and returns its exit code and
	// combined output. A non-zero exit is not an error; err is reserved
	// for failures to execute at all.
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// NewExec builds the real runner with the environment every tool needs:
// the OS environment plus the GT_HOME override, so gt and bd agree with the
// supervisor about the town home regardless of where the setting came from.
func NewExec(townHome string, timeout time.Duration) *Exec {
	e := env.New()
	e.Set("GT_HOME", townHome)
	return &Exec{Env: e.Merge(nil), Timeout: timeout}
}

// Exec is the real Runner backed by os/exec.
type Exec struct {
	// Env is the full environment for spawned tools. Empty means inherit.
	Env []string
	// Dir is the working directory. Empty means inherit.
	Dir string
	// Timeout bounds a single invocation when the caller's context has no
	// earlier deadline.
	Timeout time.Duration
}

func (e *Exec) Look(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (e *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	// #nosec G204 -- tool names and args are fixed by the supervisor
	cmd := exec.CommandContext(ctx, name, args...)
	if len(e.Env) > 0 {
		cmd.Env = e.Env
	}
	if e.Dir != "" {
		cmd.Dir = e.Dir
	}
	out, err := cmd.CombinedOutput()
	res := Result{Code: 0, Output: string(out)}
	if err == nil {
		return res, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		res.Code = ee.ExitCode()
		return res, nil
	}
	res.Code = -1
	return res, err
}

// FirstLine trims a result's output down to its first non-empty line, which
// is all a notice ever needs.
func FirstLine(out string) string {
	for _, ln := range strings.Split(out, "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			return s
		}
	}
	return ""
}
