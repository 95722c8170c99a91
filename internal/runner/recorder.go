package runner

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Call is one recorded invocation.
type Call struct {
	At   time.Time
	Name string
	Args []string
}

// Line renders the invocation as a single command line.
func (c Call) Line() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Recorder is a scripted Runner for tests. Responses are keyed by the full
// command line; unscripted commands succeed with empty output. Every
// invocation is recorded with a timestamp so tests can assert both presence
// and ordering of tool calls.
type Recorder struct {
	mu sync.Mutex
	// Tools maps tool name to PATH presence. A nil map means every tool
	// resolves.
	Tools map[string]bool
	// Responses maps a command line ("gt daemon status") to its result.
	Responses map[string]Result
	// Queue maps a command line to successive results; each invocation pops
	// one. Checked before Responses, so probes that change answer between
	// calls can be scripted.
	Queue map[string][]Result
	// Errs maps a command line to an execution error.
	Errs  map[string]error
	calls []Call
}

func (r *Recorder) Look(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Tools == nil {
		return true
	}
	return r.Tools[name]
}

func (r *Recorder) Run(_ context.Context, name string, args ...string) (Result, error) {
	c := Call{At: time.Now(), Name: name, Args: args}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	line := c.Line()
	res, scripted := r.Responses[line]
	if q := r.Queue[line]; len(q) > 0 {
		res, scripted = q[0], true
		r.Queue[line] = q[1:]
	}
	err := r.Errs[line]
	r.mu.Unlock()
	if err != nil {
		return Result{Code: -1}, err
	}
	if !scripted {
		return Result{Code: 0}, nil
	}
	return res, nil
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Lines returns the recorded command lines in order.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Line())
	}
	return out
}

// Reset clears the recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
