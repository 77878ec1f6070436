// Package pipeline runs ordered and concurrent task lists over a shared
// context value, with skip predicates, fail-fast error handling and
// interactive suspension points.
//
// The context value C is shared, not copied: every mutation a task makes is
// visible to every later task of the same run. Tasks running concurrently
// must write disjoint fields of C.
package pipeline

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrNotPromptCapable  = errors.New("task is not prompt capable")
	ErrNoPrompter        = errors.New("no prompter configured")
	ErrInvalidResolution = errors.New("resolution is not one of the offered choices")
)

// =============================================================================
// Tasks
// =============================================================================

// Task is one step of a pipeline.
type Task[C any] struct {
	Title string

	// Run performs the step. It may mutate c and use h to retitle, skip,
	// prompt or run nested task lists.
	Run func(ctx context.Context, c C, h *Handle[C]) error

	// Skip, when set, is evaluated right before Run. A true result marks the
	// task skipped with the returned reason; Run is not called.
	Skip func(c C) (bool, string)

	// PromptCapable allows Run to suspend on Handle.Prompt.
	PromptCapable bool
}

// Options controls how a task list executes. The zero value runs tasks
// sequentially and stops at the first failure.
type Options struct {
	Concurrent      bool // run siblings in parallel
	ContinueOnError bool // keep running remaining tasks after a failure
	Limit           int  // max parallel siblings; 0 means unbounded
}

// =============================================================================
// Results
// =============================================================================

// Status is the final state of a task in a report.
type Status string

const (
	StatusPending   Status = "pending" // never started
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// TaskResult is the outcome of one task and its nested tasks.
type TaskResult struct {
	Title    string // final title, after any SetTitle
	Status   Status
	Reason   string // skip reason
	Err      error
	Output   []string
	Duration time.Duration
	Children []TaskResult
}

// Report is the outcome of one pipeline run.
type Report struct {
	Tasks []TaskResult
}

// Find returns the first task, depth first, whose title is title.
func (r Report) Find(title string) (TaskResult, bool) {
	return find(r.Tasks, title)
}

func find(results []TaskResult, title string) (TaskResult, bool) {
	for _, res := range results {
		if res.Title == title {
			return res, true
		}
		if child, ok := find(res.Children, title); ok {
			return child, true
		}
	}
	return TaskResult{}, false
}

// Count returns how many tasks, at any depth, ended in status.
func (r Report) Count(status Status) int {
	return count(r.Tasks, status)
}

func count(results []TaskResult, status Status) int {
	n := 0
	for _, res := range results {
		if res.Status == status {
			n++
		}
		n += count(res.Children, status)
	}
	return n
}

// =============================================================================
// Events
// =============================================================================

// EventKind identifies a task lifecycle event.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventTitle     EventKind = "title"
	EventOutput    EventKind = "output"
	EventCompleted EventKind = "completed"
	EventSkipped   EventKind = "skipped"
	EventFailed    EventKind = "failed"
)

// Event is emitted to the Reporter as tasks progress.
type Event struct {
	Kind     EventKind
	Depth    int // nesting level, 0 for top-level tasks
	Title    string
	Message  string // output line, skip reason or new title
	Err      error
	Duration time.Duration
}

// Reporter receives task events. Calls are serialized by the runner.
type Reporter interface {
	OnEvent(e Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(e Event)

// OnEvent calls f(e).
func (f ReporterFunc) OnEvent(e Event) { f(e) }
