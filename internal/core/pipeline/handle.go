package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// =============================================================================
// Task Handle
// =============================================================================

// Handle is a running task's view of the runner.
type Handle[C any] struct {
	runner *Runner[C]
	task   *Task[C]
	depth  int

	mu       sync.Mutex
	title    string
	skip     bool
	reason   string
	output   []string
	children []TaskResult
}

// Title returns the task's current title.
func (h *Handle[C]) Title() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.title
}

// SetTitle renames the running task.
func (h *Handle[C]) SetTitle(title string) {
	h.mu.Lock()
	h.title = title
	h.mu.Unlock()
	h.runner.emit(Event{Kind: EventTitle, Depth: h.depth, Title: title, Message: title})
}

// Skip marks the task skipped once Run returns without error.
func (h *Handle[C]) Skip(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.skip = true
	h.reason = reason
}

// Output records a progress line for the task.
func (h *Handle[C]) Output(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	h.mu.Lock()
	h.output = append(h.output, line)
	title := h.title
	h.mu.Unlock()
	h.runner.emit(Event{Kind: EventOutput, Depth: h.depth, Title: title, Message: line})
}

// Prompt suspends the task until the runner's prompter chooses one of the
// question's resolutions. Only prompt-capable tasks may prompt.
func (h *Handle[C]) Prompt(ctx context.Context, q Question) (Resolution, error) {
	if !h.task.PromptCapable {
		return "", fmt.Errorf("%w: %s", ErrNotPromptCapable, h.task.Title)
	}
	return h.runner.prompt(ctx, q)
}

// Run executes a nested task list over the same context value. Its results
// become children of this task.
func (h *Handle[C]) Run(ctx context.Context, c C, tasks []Task[C], opts Options) error {
	results, err := h.runner.runList(ctx, c, tasks, opts, h.depth+1)
	h.mu.Lock()
	h.children = append(h.children, results...)
	h.mu.Unlock()
	return err
}

func (h *Handle[C]) skipped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.skip
}

func (h *Handle[C]) skipReason() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

func (h *Handle[C]) outputLines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.output
}

func (h *Handle[C]) childResults() []TaskResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.children
}
