package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// =============================================================================
// Interactive Resolution
// =============================================================================

// Resolution is one enumerated outcome of a suspended task.
type Resolution string

// Choice is one selectable resolution.
type Choice struct {
	Value Resolution
	Label string
}

// Question is what a suspended task asks.
type Question struct {
	Message string
	Choices []Choice
	Default Resolution
}

// Allows reports whether r is one of the question's choices.
func (q Question) Allows(r Resolution) bool {
	for _, c := range q.Choices {
		if c.Value == r {
			return true
		}
	}
	return false
}

// Prompter resolves a question, typically by asking the operator. Select
// blocks until a resolution is chosen or ctx is done.
type Prompter interface {
	Select(ctx context.Context, q Question) (Resolution, error)
}

// =============================================================================
// Non-interactive Prompters
// =============================================================================

// DefaultPrompter answers every question with its default, or with a fixed
// resolution when Answer is set.
type DefaultPrompter struct {
	Answer Resolution
}

// Select returns the fixed answer or the question default.
func (p DefaultPrompter) Select(_ context.Context, q Question) (Resolution, error) {
	if p.Answer != "" {
		return p.Answer, nil
	}
	if q.Default == "" {
		return "", fmt.Errorf("no default resolution for %q", q.Message)
	}
	return q.Default, nil
}

// ScriptedPrompter replays a fixed list of answers and records every question
// it was asked.
type ScriptedPrompter struct {
	mu      sync.Mutex
	answers []Resolution
	asked   []Question
}

// NewScriptedPrompter creates a prompter answering with answers in order.
func NewScriptedPrompter(answers ...Resolution) *ScriptedPrompter {
	return &ScriptedPrompter{answers: answers}
}

// Select returns the next scripted answer.
func (p *ScriptedPrompter) Select(_ context.Context, q Question) (Resolution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.asked = append(p.asked, q)
	if len(p.answers) == 0 {
		return "", fmt.Errorf("no scripted answer for %q", q.Message)
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

// Asked returns the questions asked so far.
func (p *ScriptedPrompter) Asked() []Question {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Question(nil), p.asked...)
}
