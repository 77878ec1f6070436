// Package process runs external programs from structured command
// descriptors. Commands are never assembled as shell strings.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// =============================================================================
// Command
// =============================================================================

// Command describes one program invocation.
type Command struct {
	Name string            // executable, resolved through PATH
	Args []string          // arguments, passed verbatim
	Dir  string            // working directory, "" for the current one
	Env  map[string]string // variables added to the inherited environment
}

// String renders the command for logs. The rendering is not shell-safe.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// ErrNotFound is returned when the executable cannot be found.
var ErrNotFound = errors.New("executable not found")

// Runner runs commands. A non-zero exit returns the Result together with an
// error so callers can inspect the output.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// =============================================================================
// ExecRunner
// =============================================================================

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

// Run executes cmd and captures its output.
func (ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), envList(cmd.Env)...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, fmt.Errorf("%s: exit status %d: %s", cmd, res.ExitCode, strings.TrimSpace(stderr.String()))
	}

	res.ExitCode = 1
	if errors.Is(err, exec.ErrNotFound) {
		res.ExitCode = 127
		return res, fmt.Errorf("%s: %w", cmd.Name, ErrNotFound)
	}
	return res, fmt.Errorf("%s: %w", cmd, err)
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
