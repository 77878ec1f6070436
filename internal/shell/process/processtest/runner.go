// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/artpar/devstack/internal/shell/process"
)

// Response is the scripted outcome of one command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Runner answers commands by their rendered string and records every call.
// Unscripted commands fail with process.ErrNotFound.
type Runner struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []process.Command
}

var _ process.Runner = (*Runner)(nil)

// New creates an empty scripted runner.
func New() *Runner {
	return &Runner{responses: make(map[string]Response)}
}

// On scripts the response of the command rendered as line, e.g.
// "php /cache/composer/latest-2.x/composer.phar --version".
func (r *Runner) On(line string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[line] = resp
	return r
}

// Calls returns the commands run so far.
func (r *Runner) Calls() []process.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Command(nil), r.calls...)
}

// Ran reports whether the command rendered as line was run.
func (r *Runner) Ran(line string) bool {
	for _, c := range r.Calls() {
		if c.String() == line {
			return true
		}
	}
	return false
}

func (r *Runner) Run(_ context.Context, cmd process.Command) (process.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd)

	resp, ok := r.responses[cmd.String()]
	if !ok {
		return process.Result{ExitCode: 127}, fmt.Errorf("%s: %w", cmd.Name, process.ErrNotFound)
	}
	res := process.Result{Stdout: []byte(resp.Stdout), Stderr: []byte(resp.Stderr), ExitCode: resp.ExitCode}
	if resp.Err != nil {
		return res, resp.Err
	}
	if resp.ExitCode != 0 {
		return res, fmt.Errorf("%s: exit status %d", cmd, resp.ExitCode)
	}
	return res, nil
}
