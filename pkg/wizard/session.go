package wizard

// Session is the in-memory state of one onboarding run. It is owned by a
// Sequencer and only mutated under its lock.
type Session struct {
	ID string

	activeStepIndex int
	knowledgeBaseID string
	selectedNodeIDs []string
	isOpen          bool
	isSubmitting    bool
	forced          bool
	lastError       string
	lastWarning     string
}

func newSession(id string) Session {
	return Session{ID: id, selectedNodeIDs: []string{}}
}

// StepView is the render-only part of a step definition.
type StepView struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Snapshot is a read-only copy of the session for rendering and for steps.
type Snapshot struct {
	SessionID       string     `json:"session_id"`
	ActiveStepIndex int        `json:"active_step_index"`
	ActiveStep      string     `json:"active_step"`
	IsLastStep      bool       `json:"is_last_step"`
	Steps           []StepView `json:"steps"`
	KnowledgeBaseID string     `json:"kb_id,omitempty"`
	SelectedNodeIDs []string   `json:"selected_node_ids"`
	IsOpen          bool       `json:"is_open"`
	IsSubmitting    bool       `json:"is_submitting"`
	Closable        bool       `json:"closable"`
	Forced          bool       `json:"forced"`
	LastError       string     `json:"last_error,omitempty"`
	LastWarning     string     `json:"last_warning,omitempty"`
}

func (s *Session) snapshot(steps []StepDefinition) Snapshot {
	views := make([]StepView, len(steps))
	for i, st := range steps {
		views[i] = StepView{Key: st.Key, Label: st.Label}
	}
	nodeIDs := make([]string, len(s.selectedNodeIDs))
	copy(nodeIDs, s.selectedNodeIDs)

	snap := Snapshot{
		SessionID:       s.ID,
		ActiveStepIndex: s.activeStepIndex,
		IsLastStep:      s.activeStepIndex == len(steps)-1,
		Steps:           views,
		KnowledgeBaseID: s.knowledgeBaseID,
		SelectedNodeIDs: nodeIDs,
		IsOpen:          s.isOpen,
		IsSubmitting:    s.isSubmitting,
		Closable:        s.isOpen && s.activeStepIndex == 0 && !s.forced,
		Forced:          s.forced,
		LastError:       s.lastError,
		LastWarning:     s.lastWarning,
	}
	if s.activeStepIndex < len(steps) {
		snap.ActiveStep = steps[s.activeStepIndex].Key
	}
	return snap
}
