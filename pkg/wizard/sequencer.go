package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"wiki-console-be/internal/pkg/logger"
)

const (
	module = "WIZARD"

	DefaultResetDelay = 300 * time.Millisecond
)

// KnowledgeBaseIDSource reads the knowledge base id persisted by the
// configuration step.
type KnowledgeBaseIDSource interface {
	StoredKnowledgeBaseID(ctx context.Context) (string, error)
}

// KnowledgeBaseIDSourceFunc adapts a function to KnowledgeBaseIDSource.
type KnowledgeBaseIDSourceFunc func(ctx context.Context) (string, error)

func (f KnowledgeBaseIDSourceFunc) StoredKnowledgeBaseID(ctx context.Context) (string, error) {
	return f(ctx)
}

// Reporter receives failures that were swallowed by the fail-soft policy.
type Reporter interface {
	ReportFailSoft(ctx context.Context, session Snapshot, step string, err error)
}

type Options struct {
	ResetDelay     time.Duration
	KnowledgeBases KnowledgeBaseIDSource
	Reporter       Reporter
	Logger         logger.ILogger

	// OnChange is called outside the lock after every state change.
	OnChange func(Snapshot)
	// OnClose is called once when an open session is closed.
	OnClose func(Snapshot)
}

// Sequencer drives one Session across an ordered list of steps. At most one
// transition is in flight; requests arriving meanwhile are dropped.
type Sequencer struct {
	mu         sync.Mutex
	steps      []StepDefinition
	session    Session
	epoch      uint64
	resetTimer *time.Timer

	resetDelay time.Duration
	kbSource   KnowledgeBaseIDSource
	reporter   Reporter
	logger     logger.ILogger
	onChange   func(Snapshot)
	onClose    func(Snapshot)
}

func NewSequencer(sessionID string, steps []StepDefinition, opts Options) (*Sequencer, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	if opts.ResetDelay <= 0 {
		opts.ResetDelay = DefaultResetDelay
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}

	defs := make([]StepDefinition, len(steps))
	copy(defs, steps)

	return &Sequencer{
		steps:      defs,
		session:    newSession(sessionID),
		resetDelay: opts.ResetDelay,
		kbSource:   opts.KnowledgeBases,
		reporter:   opts.Reporter,
		logger:     opts.Logger,
		onChange:   opts.OnChange,
		onClose:    opts.OnClose,
	}, nil
}

func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.snapshot(s.steps)
}

// Open shows the wizard. forced marks a session opened because the operator
// has no knowledge base yet; such a session is not closable from step 0.
// A reset still pending from a previous close is applied first.
func (s *Sequencer) Open(forced bool) Snapshot {
	s.mu.Lock()
	if s.session.isOpen {
		if forced && !s.session.forced {
			s.session.forced = true
		}
		snap := s.session.snapshot(s.steps)
		s.mu.Unlock()
		s.notify(snap)
		return snap
	}

	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
		s.resetLocked()
	}
	s.session.isOpen = true
	s.session.forced = forced
	snap := s.session.snapshot(s.steps)
	s.mu.Unlock()

	s.logger.Info(module, "Wizard opened", map[string]interface{}{"session_id": snap.SessionID, "forced": forced})
	s.notify(snap)
	return snap
}

// SetForced updates whether the session must stay open on step 0.
func (s *Sequencer) SetForced(forced bool) Snapshot {
	s.mu.Lock()
	s.session.forced = forced
	snap := s.session.snapshot(s.steps)
	s.mu.Unlock()
	s.notify(snap)
	return snap
}

// Close hides the wizard on behalf of the operator and schedules the reset
// of the session after the reset delay. An open session that is not closable
// is left untouched and ErrNotClosable is returned. In-flight calls are not
// cancelled.
func (s *Sequencer) Close() (Snapshot, error) {
	return s.close(true)
}

func (s *Sequencer) close(requireClosable bool) (Snapshot, error) {
	s.mu.Lock()
	if snap := s.session.snapshot(s.steps); requireClosable && snap.IsOpen && !snap.Closable {
		s.mu.Unlock()
		return snap, ErrNotClosable
	}
	wasOpen := s.session.isOpen
	s.session.isOpen = false
	if s.resetTimer != nil {
		s.resetTimer.Stop()
	}
	epoch := s.epoch
	s.resetTimer = time.AfterFunc(s.resetDelay, func() { s.resetAfterClose(epoch) })
	snap := s.session.snapshot(s.steps)
	s.mu.Unlock()

	s.notify(snap)
	if wasOpen {
		s.logger.Info(module, "Wizard closed", map[string]interface{}{"session_id": snap.SessionID, "kb_id": snap.KnowledgeBaseID})
		if s.onClose != nil {
			s.onClose(snap)
		}
	}
	return snap, nil
}

func (s *Sequencer) resetAfterClose(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.session.isOpen {
		s.mu.Unlock()
		return
	}
	s.resetTimer = nil
	s.resetLocked()
	snap := s.session.snapshot(s.steps)
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Sequencer) resetLocked() {
	s.session = newSession(s.session.ID)
	s.epoch++
}

// Retreat moves one step back. It is a no-op on the first step.
func (s *Sequencer) Retreat() (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkIdleLocked(); err != nil {
		snap := s.session.snapshot(s.steps)
		s.mu.Unlock()
		return snap, err
	}
	changed := s.session.activeStepIndex > 0
	if changed {
		s.session.activeStepIndex--
		s.session.lastError = ""
		s.session.lastWarning = ""
	}
	snap := s.session.snapshot(s.steps)
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
	return snap, nil
}

// Advance submits the active step with form and moves forward. On the last
// step it closes the wizard.
func (s *Sequencer) Advance(ctx context.Context, form json.RawMessage) (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkIdleLocked(); err != nil {
		snap := s.session.snapshot(s.steps)
		s.mu.Unlock()
		if errors.Is(err, ErrTransitionInFlight) {
			s.logger.Debug(module, "Dropped transition request", map[string]interface{}{"session_id": snap.SessionID})
		}
		return snap, err
	}

	idx := s.session.activeStepIndex
	if idx == len(s.steps)-1 {
		s.mu.Unlock()
		return s.close(false)
	}

	step := s.steps[idx]
	s.session.isSubmitting = true
	s.session.lastError = ""
	s.session.lastWarning = ""
	epoch := s.epoch
	view := s.session.snapshot(s.steps)
	s.mu.Unlock()
	s.notify(view)

	next, warning, err := s.runTransition(ctx, step, view, form)
	if err != nil {
		return s.finish(epoch, func(sess *Session) {
			sess.lastError = err.Error()
		}, err)
	}

	return s.finish(epoch, func(sess *Session) {
		if sess.knowledgeBaseID == "" {
			sess.knowledgeBaseID = next.KnowledgeBaseID
		}
		sess.selectedNodeIDs = next.SelectedNodeIDs
		if sess.activeStepIndex < len(s.steps)-1 {
			sess.activeStepIndex++
		}
		sess.lastWarning = warning
	}, nil)
}

// runTransition performs submit, knowledge base resolution and the after hook
// in that order. It returns the session view to commit, an optional warning
// for swallowed failures, or the error that blocks the transition.
func (s *Sequencer) runTransition(ctx context.Context, step StepDefinition, view Snapshot, form json.RawMessage) (Snapshot, string, error) {
	var warning string

	if step.Controller != nil {
		result, err := step.Controller.Submit(ctx, view, form)
		switch {
		case err == nil:
			if result.NodeIDs != nil {
				view.SelectedNodeIDs = append([]string{}, result.NodeIDs...)
			}
		case IsValidation(err) || step.Policy == HardBlock:
			s.logger.Info(module, "Step rejected", map[string]interface{}{
				"session_id": view.SessionID,
				"step":       step.Key,
				"error":      err.Error(),
			})
			return view, "", err
		default:
			warning = err.Error()
			s.failSoft(ctx, step, view, err)
		}
	}

	if step.ResolvesKnowledgeBase && view.KnowledgeBaseID == "" {
		view.KnowledgeBaseID = s.storedKnowledgeBaseID(ctx, view)
	}

	if step.After != nil {
		if err := step.After(ctx, view); err != nil {
			if step.Policy == HardBlock {
				return view, "", err
			}
			warning = err.Error()
			s.failSoft(ctx, step, view, err)
		}
	}

	return view, warning, nil
}

func (s *Sequencer) storedKnowledgeBaseID(ctx context.Context, view Snapshot) string {
	if s.kbSource == nil {
		return ""
	}
	id, err := s.kbSource.StoredKnowledgeBaseID(ctx)
	if err != nil {
		s.logger.Error(module, "Failed to read stored knowledge base id", map[string]interface{}{
			"session_id": view.SessionID,
			"error":      err.Error(),
		})
		return ""
	}
	return id
}

func (s *Sequencer) failSoft(ctx context.Context, step StepDefinition, view Snapshot, err error) {
	op := OpStepSubmit
	var depErr *DependencyError
	if errors.As(err, &depErr) {
		op = depErr.Op
	}
	s.logger.Warn(module, "Transition side effect failed, advancing anyway", map[string]interface{}{
		"policy":     FailSoft.String(),
		"session_id": view.SessionID,
		"step":       step.Key,
		"op":         op,
		"kb_id":      view.KnowledgeBaseID,
		"error":      err.Error(),
	})
	if s.reporter != nil {
		s.reporter.ReportFailSoft(ctx, view, step.Key, err)
	}
}

// finish commits the outcome of a transition unless the session was reset
// while it was in flight.
func (s *Sequencer) finish(epoch uint64, apply func(*Session), err error) (Snapshot, error) {
	s.mu.Lock()
	if s.epoch != epoch {
		snap := s.session.snapshot(s.steps)
		s.mu.Unlock()
		s.logger.Warn(module, "Discarded transition of a reset session", map[string]interface{}{"session_id": snap.SessionID})
		return snap, ErrSessionClosed
	}
	apply(&s.session)
	s.session.isSubmitting = false
	snap := s.session.snapshot(s.steps)
	s.mu.Unlock()

	s.notify(snap)
	return snap, err
}

func (s *Sequencer) checkIdleLocked() error {
	if !s.session.isOpen {
		return ErrSessionClosed
	}
	if s.session.isSubmitting {
		return ErrTransitionInFlight
	}
	return nil
}

func (s *Sequencer) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
