package wizard

import (
	"errors"
	"fmt"
)

var (
	ErrTransitionInFlight   = errors.New("wizard transition already in progress")
	ErrSessionClosed        = errors.New("wizard is not open")
	ErrNotClosable          = errors.New("wizard cannot be dismissed at this step")
	ErrMissingKnowledgeBase = errors.New("knowledge base id is empty")
	ErrMissingApp           = errors.New("knowledge base has no app of the requested type")
	ErrNoSteps              = errors.New("wizard needs at least one step")
)

// Operation names carried by DependencyError.
const (
	OpResolveKnowledgeBase = "resolve_kb"
	OpFetchSettings        = "fetch_settings"
	OpMergeSettings        = "merge_settings"
	OpPersistSettings      = "persist_settings"
	OpStepSubmit           = "step_submit"
)

// ValidationError is raised by a step when the operator's input is rejected.
// It always blocks the transition and its message is shown to the operator.
type ValidationError struct {
	Step    string
	Message string
	Err     error
}

func NewValidationError(step, message string) *ValidationError {
	return &ValidationError{Step: step, Message: message}
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "step validation failed"
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DependencyError wraps a failure of a non-critical collaborator call made
// during a transition (settings fetch, merge, persist).
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// PublishError wraps a failed release submission.
type PublishError struct {
	KbId string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish knowledge base %q: %v", e.KbId, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
