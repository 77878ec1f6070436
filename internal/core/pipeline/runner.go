package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Runner
// =============================================================================

// Config wires the runner's collaborators. Both are optional.
type Config struct {
	Prompter Prompter
	Reporter Reporter
}

// Runner executes task lists over a shared context value of type C.
type Runner[C any] struct {
	prompter Prompter
	reporter Reporter

	eventMu  sync.Mutex // serializes reporter calls
	promptMu sync.Mutex // one question at a time
}

// NewRunner creates a runner.
func NewRunner[C any](cfg Config) *Runner[C] {
	return &Runner[C]{prompter: cfg.Prompter, reporter: cfg.Reporter}
}

// Run executes tasks over c and returns the report of the run. The returned
// error is the first task failure (fail-fast) or every failure joined when
// opts.ContinueOnError is set. Concurrent siblings that already started are
// always awaited before Run returns; they are never cancelled.
//
// Example:
//
//	r := NewRunner[*State](Config{})
//	report, err := r.Run(ctx, state, []Task[*State]{
//	    {Title: "Pull images", Run: pull},
//	    {Title: "Start containers", Run: start, Skip: nothingToStart},
//	}, Options{})
func (r *Runner[C]) Run(ctx context.Context, c C, tasks []Task[C], opts Options) (Report, error) {
	results, err := r.runList(ctx, c, tasks, opts, 0)
	return Report{Tasks: results}, err
}

func (r *Runner[C]) runList(ctx context.Context, c C, tasks []Task[C], opts Options, depth int) ([]TaskResult, error) {
	results := make([]TaskResult, len(tasks))
	for i, t := range tasks {
		results[i] = TaskResult{Title: t.Title, Status: StatusPending}
	}
	if opts.Concurrent {
		return results, r.runConcurrent(ctx, c, tasks, opts, depth, results)
	}
	return results, r.runSequential(ctx, c, tasks, opts, depth, results)
}

func (r *Runner[C]) runSequential(ctx context.Context, c C, tasks []Task[C], opts Options, depth int, results []TaskResult) error {
	var errs []error
	for i := range tasks {
		results[i] = r.runTask(ctx, c, &tasks[i], depth)
		if results[i].Status != StatusFailed {
			continue
		}
		if !opts.ContinueOnError {
			return results[i].Err
		}
		errs = append(errs, results[i].Err)
	}
	return errors.Join(errs...)
}

// runConcurrent starts every sibling in its own goroutine. errgroup.Group is
// used without a derived context so a failure does not cancel siblings that
// are already running. Siblings queued behind Limit are not started once a
// failure occurred under fail-fast; without a Limit every sibling runs.
func (r *Runner[C]) runConcurrent(ctx context.Context, c C, tasks []Task[C], opts Options, depth int, results []TaskResult) error {
	var g errgroup.Group
	if opts.Limit > 0 {
		g.SetLimit(opts.Limit)
	}

	var (
		failed atomic.Bool
		mu     sync.Mutex
		errs   []error
	)
	for i := range tasks {
		queued := opts.Limit > 0 && i >= opts.Limit
		g.Go(func() error {
			if queued && failed.Load() && !opts.ContinueOnError {
				return nil
			}
			res := r.runTask(ctx, c, &tasks[i], depth)
			results[i] = res
			if res.Status != StatusFailed {
				return nil
			}
			failed.Store(true)
			mu.Lock()
			errs = append(errs, res.Err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == 0 {
		return nil
	}
	if opts.ContinueOnError {
		return errors.Join(errs...)
	}
	return errs[0]
}

func (r *Runner[C]) runTask(ctx context.Context, c C, t *Task[C], depth int) TaskResult {
	res := TaskResult{Title: t.Title}

	if t.Skip != nil {
		if skip, reason := t.Skip(c); skip {
			res.Status = StatusSkipped
			res.Reason = reason
			r.emit(Event{Kind: EventSkipped, Depth: depth, Title: t.Title, Message: reason})
			return res
		}
	}

	h := &Handle[C]{runner: r, task: t, depth: depth, title: t.Title}
	r.emit(Event{Kind: EventStarted, Depth: depth, Title: t.Title})
	start := time.Now()

	var err error
	if t.Run != nil {
		err = r.invoke(ctx, c, t, h)
	}

	res.Duration = time.Since(start)
	res.Title = h.Title()
	res.Output = h.outputLines()
	res.Children = h.childResults()

	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Err = err
		r.emit(Event{Kind: EventFailed, Depth: depth, Title: res.Title, Err: err, Duration: res.Duration})
	case h.skipped():
		res.Status = StatusSkipped
		res.Reason = h.skipReason()
		r.emit(Event{Kind: EventSkipped, Depth: depth, Title: res.Title, Message: res.Reason, Duration: res.Duration})
	default:
		res.Status = StatusCompleted
		r.emit(Event{Kind: EventCompleted, Depth: depth, Title: res.Title, Duration: res.Duration})
	}
	return res
}

// invoke runs the task and turns a panic into a task failure so concurrent
// siblings still get awaited.
func (r *Runner[C]) invoke(ctx context.Context, c C, t *Task[C], h *Handle[C]) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %q panicked: %v", t.Title, p)
		}
	}()
	return t.Run(ctx, c, h)
}

func (r *Runner[C]) emit(e Event) {
	if r.reporter == nil {
		return
	}
	r.eventMu.Lock()
	defer r.eventMu.Unlock()
	r.reporter.OnEvent(e)
}

func (r *Runner[C]) prompt(ctx context.Context, q Question) (Resolution, error) {
	if r.prompter == nil {
		return "", ErrNoPrompter
	}
	r.promptMu.Lock()
	defer r.promptMu.Unlock()

	answer, err := r.prompter.Select(ctx, q)
	if err != nil {
		return "", err
	}
	if !q.Allows(answer) {
		return "", fmt.Errorf("%w: %q", ErrInvalidResolution, answer)
	}
	return answer, nil
}
