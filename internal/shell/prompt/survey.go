// Package prompt asks the operator to resolve suspended pipeline tasks on
// the terminal.
package prompt

import (
	"context"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"

	"github.com/artpar/devstack/internal/core/pipeline"
)

// SurveyPrompter renders a question as an arrow-key selection list.
type SurveyPrompter struct {
	opts []survey.AskOpt
}

var _ pipeline.Prompter = (*SurveyPrompter)(nil)

// NewSurveyPrompter creates a terminal prompter. opts are passed to every
// survey.AskOne call, e.g. survey.WithStdio in tests.
func NewSurveyPrompter(opts ...survey.AskOpt) *SurveyPrompter {
	return &SurveyPrompter{opts: opts}
}

// Select asks q and returns the chosen resolution. The terminal read cannot
// be interrupted; a done ctx returns immediately and abandons the read.
func (p *SurveyPrompter) Select(ctx context.Context, q pipeline.Question) (pipeline.Resolution, error) {
	if len(q.Choices) == 0 {
		return "", fmt.Errorf("question %q has no choices", q.Message)
	}
	prompt := selectPrompt(q)

	type answer struct {
		index int
		err   error
	}
	done := make(chan answer, 1)
	go func() {
		var index int
		err := survey.AskOne(prompt, &index, p.opts...)
		done <- answer{index: index, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-done:
		if a.err != nil {
			return "", fmt.Errorf("prompt failed: %w", a.err)
		}
		return resolutionAt(q, a.index)
	}
}

// selectPrompt converts q into a survey select with the default preselected.
func selectPrompt(q pipeline.Question) *survey.Select {
	options := make([]string, 0, len(q.Choices))
	var def any
	for _, c := range q.Choices {
		label := c.Label
		if label == "" {
			label = string(c.Value)
		}
		options = append(options, label)
		if c.Value == q.Default {
			def = label
		}
	}
	return &survey.Select{
		Message: q.Message,
		Options: options,
		Default: def,
	}
}

func resolutionAt(q pipeline.Question, index int) (pipeline.Resolution, error) {
	if index < 0 || index >= len(q.Choices) {
		return "", fmt.Errorf("choice %d out of range", index)
	}
	return q.Choices[index].Value, nil
}

// =============================================================================
// Prompter Selection
// =============================================================================

// IsInteractive reports whether stdin and stdout are terminals.
func IsInteractive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Choose returns the prompter for an invocation. A fixed resolution always
// wins; otherwise terminals get a survey prompt and everything else answers
// with each question's default.
func Choose(fixed pipeline.Resolution, nonInteractive bool) pipeline.Prompter {
	if fixed != "" {
		return pipeline.DefaultPrompter{Answer: fixed}
	}
	if nonInteractive || !IsInteractive() {
		return pipeline.DefaultPrompter{}
	}
	return NewSurveyPrompter()
}
