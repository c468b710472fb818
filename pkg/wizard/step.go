package wizard

import (
	"context"
	"encoding/json"
)

// StepController is the capability every wizard page exposes: validate the
// operator's form and submit it.
type StepController interface {
	Submit(ctx context.Context, session Snapshot, form json.RawMessage) (StepResult, error)
}

// StepControllerFunc adapts a function to StepController.
type StepControllerFunc func(ctx context.Context, session Snapshot, form json.RawMessage) (StepResult, error)

func (f StepControllerFunc) Submit(ctx context.Context, session Snapshot, form json.RawMessage) (StepResult, error) {
	return f(ctx, session, form)
}

// StepResult carries what a step hands forward through the session.
type StepResult struct {
	// NodeIDs replaces the session's selected nodes when non-nil.
	NodeIDs []string
}

// FailurePolicy decides what a non-validation failure of a step does.
type FailurePolicy int

const (
	// HardBlock keeps the session on the step and surfaces the error.
	HardBlock FailurePolicy = iota
	// FailSoft reports the error and advances anyway.
	FailSoft
)

func (p FailurePolicy) String() string {
	if p == FailSoft {
		return "fail_soft"
	}
	return "hard_block"
}

// TransitionHook runs after a step submitted successfully and before the
// session advances. It sees the session as it will be committed.
type TransitionHook func(ctx context.Context, session Snapshot) error

// StepDefinition is one entry of the ordered list of active steps.
type StepDefinition struct {
	Key   string
	Label string

	// Controller may be nil for pass-through pages.
	Controller StepController
	Policy     FailurePolicy

	// ResolvesKnowledgeBase makes the sequencer read the stored knowledge base
	// id once the step has submitted.
	ResolvesKnowledgeBase bool
	After                 TransitionHook
}
