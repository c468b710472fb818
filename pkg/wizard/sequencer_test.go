package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"wiki-console-be/pkg/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAppSettingsAPI struct {
	mock.Mock
}

func (m *mockAppSettingsAPI) GetAppSettings(ctx context.Context, kbID, appType string) (*settings.App, error) {
	args := m.Called(ctx, kbID, appType)
	app, _ := args.Get(0).(*settings.App)
	return app, args.Error(1)
}

func (m *mockAppSettingsAPI) PutAppSettings(ctx context.Context, appID, kbID string, doc settings.Document) error {
	args := m.Called(ctx, appID, kbID, doc)
	return args.Error(0)
}

type recordingReporter struct {
	mu    sync.Mutex
	steps []string
	errs  []error
	kbIDs []string
}

func (r *recordingReporter) ReportFailSoft(ctx context.Context, session Snapshot, step string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
	r.errs = append(r.errs, err)
	r.kbIDs = append(r.kbIDs, session.KnowledgeBaseID)
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func ok() StepController {
	return StepControllerFunc(func(ctx context.Context, session Snapshot, form json.RawMessage) (StepResult, error) {
		return StepResult{}, nil
	})
}

func failing(err error) StepController {
	return StepControllerFunc(func(ctx context.Context, session Snapshot, form json.RawMessage) (StepResult, error) {
		return StepResult{}, err
	})
}

func staticKB(id string) KnowledgeBaseIDSource {
	return KnowledgeBaseIDSourceFunc(func(ctx context.Context) (string, error) { return id, nil })
}

func onboardingSteps(model StepController, decorate TransitionHook) []StepDefinition {
	return []StepDefinition{
		{Key: "model", Label: "模型配置", Controller: model, Policy: HardBlock},
		{Key: "kb_config", Label: "配置监听", Controller: ok(), Policy: FailSoft, ResolvesKnowledgeBase: true, After: decorate},
		{Key: "complete", Label: "完成配置"},
	}
}

func newOpenSequencer(t *testing.T, steps []StepDefinition, opts Options) *Sequencer {
	t.Helper()
	if opts.ResetDelay == 0 {
		opts.ResetDelay = 20 * time.Millisecond
	}
	seq, err := NewSequencer("session-1", steps, opts)
	require.NoError(t, err)
	seq.Open(false)
	return seq
}

func TestNewSequencerRequiresSteps(t *testing.T) {
	_, err := NewSequencer("s", nil, Options{})
	assert.ErrorIs(t, err, ErrNoSteps)
}

func TestRetreatAtFirstStepIsNoop(t *testing.T) {
	seq := newOpenSequencer(t, onboardingSteps(ok(), nil), Options{})

	snap, err := seq.Retreat()

	require.NoError(t, err)
	assert.Equal(t, 0, snap.ActiveStepIndex)
}

func TestRetreatMovesBack(t *testing.T) {
	seq := newOpenSequencer(t, onboardingSteps(ok(), nil), Options{})
	_, err := seq.Advance(context.Background(), nil)
	require.NoError(t, err)

	snap, err := seq.Retreat()

	require.NoError(t, err)
	assert.Equal(t, 0, snap.ActiveStepIndex)
	assert.Equal(t, "model", snap.ActiveStep)
}

func TestValidationErrorBlocksTransition(t *testing.T) {
	seq := newOpenSequencer(t, onboardingSteps(failing(NewValidationError("model", "bad model")), nil), Options{})

	snap, err := seq.Advance(context.Background(), json.RawMessage(`{}`))

	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, snap.ActiveStepIndex)
	assert.Equal(t, "bad model", snap.LastError)
	assert.False(t, snap.IsSubmitting)
	assert.False(t, seq.Snapshot().IsSubmitting)
}

func TestHardBlockStepKeepsIndexOnAnyError(t *testing.T) {
	seq := newOpenSequencer(t, onboardingSteps(failing(errors.New("backend down")), nil), Options{})

	snap, err := seq.Advance(context.Background(), nil)

	assert.EqualError(t, err, "backend down")
	assert.Equal(t, 0, snap.ActiveStepIndex)
}

func TestValidationErrorBlocksEvenFailSoftSteps(t *testing.T) {
	steps := []StepDefinition{
		{Key: "kb_config", Controller: failing(NewValidationError("kb_config", "name is required")), Policy: FailSoft},
		{Key: "complete"},
	}
	seq := newOpenSequencer(t, steps, Options{})

	snap, err := seq.Advance(context.Background(), nil)

	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, snap.ActiveStepIndex)
}

func TestAdvanceWhileSubmittingIsDropped(t *testing.T) {
	release := make(chan struct{})
	blocking := StepControllerFunc(func(ctx context.Context, session Snapshot, form json.RawMessage) (StepResult, error) {
		<-release
		return StepResult{}, nil
	})
	seq := newOpenSequencer(t, onboardingSteps(blocking, nil), Options{})

	done := make(chan Snapshot)
	go func() {
		snap, _ := seq.Advance(context.Background(), nil)
		done <- snap
	}()

	require.Eventually(t, func() bool { return seq.Snapshot().IsSubmitting }, time.Second, time.Millisecond)

	snap, err := seq.Advance(context.Background(), nil)
	assert.ErrorIs(t, err, ErrTransitionInFlight)
	assert.Equal(t, 0, snap.ActiveStepIndex)

	_, err = seq.Retreat()
	assert.ErrorIs(t, err, ErrTransitionInFlight)

	close(release)
	first := <-done
	assert.Equal(t, 1, first.ActiveStepIndex)
	assert.False(t, first.IsSubmitting)
}

func TestKnowledgeBaseStepFailsSoftWhenPersistFails(t *testing.T) {
	api := new(mockAppSettingsAPI)
	base := settings.Document{"footer_settings": map[string]interface{}{"corp_name": "Acme"}}
	api.On("GetAppSettings", mock.Anything, "kb-42", DefaultAppType).Return(&settings.App{Id: "app-1", Settings: base}, nil)
	api.On("PutAppSettings", mock.Anything, "app-1", "kb-42", mock.AnythingOfType("settings.Document")).Return(errors.New("503"))

	reporter := &recordingReporter{}
	decorator := NewDecorator(api, settings.LandingDefaults(), DefaultAppType, nil)
	seq := newOpenSequencer(t, onboardingSteps(ok(), decorator.Hook()), Options{
		KnowledgeBases: staticKB("kb-42"),
		Reporter:       reporter,
	})

	_, err := seq.Advance(context.Background(), nil)
	require.NoError(t, err)

	snap, err := seq.Advance(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, snap.ActiveStepIndex)
	assert.Equal(t, "kb-42", snap.KnowledgeBaseID)
	assert.NotEmpty(t, snap.LastWarning)
	require.Equal(t, 1, reporter.count())
	var depErr *DependencyError
	require.ErrorAs(t, reporter.errs[0], &depErr)
	assert.Equal(t, OpPersistSettings, depErr.Op)
	assert.Equal(t, "kb_config", reporter.steps[0])
	api.AssertExpectations(t)

	put := api.Calls[1].Arguments.Get(3).(settings.Document)
	assert.Equal(t, "Acme", put.Footer()["corp_name"])
}

func TestKnowledgeBaseStepWithoutStoredIDFailsFastAndAdvances(t *testing.T) {
	api := new(mockAppSettingsAPI)
	reporter := &recordingReporter{}
	decorator := NewDecorator(api, settings.LandingDefaults(), "", nil)
	seq := newOpenSequencer(t, onboardingSteps(ok(), decorator.Hook()), Options{
		KnowledgeBases: staticKB(""),
		Reporter:       reporter,
	})
	_, err := seq.Advance(context.Background(), nil)
	require.NoError(t, err)

	snap, err := seq.Advance(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, snap.ActiveStepIndex)
	require.Equal(t, 1, reporter.count())
	assert.ErrorIs(t, reporter.errs[0], ErrMissingKnowledgeBase)
	api.AssertNotCalled(t, "GetAppSettings", mock.Anything, mock.Anything, mock.Anything)
}

func TestSuccessfulDecorationLeavesNoWarning(t *testing.T) {
	api := new(mockAppSettingsAPI)
	api.On("GetAppSettings", mock.Anything, "kb-7", DefaultAppType).Return(&settings.App{Id: "app-7"}, nil)
	api.On("PutAppSettings", mock.Anything, "app-7", "kb-7", mock.Anything).Return(nil)
	reporter := &recordingReporter{}
	decorator := NewDecorator(api, settings.LandingDefaults(), DefaultAppType, nil)
	seq := newOpenSequencer(t, onboardingSteps(ok(), decorator.Hook()), Options{
		KnowledgeBases: staticKB("kb-7"),
		Reporter:       reporter,
	})

	_, _ = seq.Advance(context.Background(), nil)
	snap, err := seq.Advance(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, snap.ActiveStepIndex)
	assert.Empty(t, snap.LastWarning)
	assert.Equal(t, 0, reporter.count())
}

func TestKnowledgeBaseIDIsImmutableOnceSet(t *testing.T) {
	current := "kb-1"
	source := KnowledgeBaseIDSourceFunc(func(ctx context.Context) (string, error) { return current, nil })
	steps := []StepDefinition{
		{Key: "kb_config", Controller: ok(), Policy: FailSoft, ResolvesKnowledgeBase: true},
		{Key: "test"},
		{Key: "complete"},
	}
	seq := newOpenSequencer(t, steps, Options{KnowledgeBases: source})

	snap, err := seq.Advance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "kb-1", snap.KnowledgeBaseID)

	_, err = seq.Retreat()
	require.NoError(t, err)
	current = "kb-2"

	snap, err = seq.Advance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "kb-1", snap.KnowledgeBaseID)
}

func TestStepResultSetsSelectedNodes(t *testing.T) {
	importer := StepControllerFunc(func(ctx context.Context, session Snapshot, form json.RawMessage) (StepResult, error) {
		return StepResult{NodeIDs: []string{"n1", "n2"}}, nil
	})
	var seen []string
	publisher := StepControllerFunc(func(ctx context.Context, session Snapshot, form json.RawMessage) (StepResult, error) {
		seen = session.SelectedNodeIDs
		return StepResult{}, nil
	})
	steps := []StepDefinition{
		{Key: "import", Controller: importer},
		{Key: "publish", Controller: publisher, Policy: FailSoft},
		{Key: "complete"},
	}
	seq := newOpenSequencer(t, steps, Options{})

	snap, err := seq.Advance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, snap.SelectedNodeIDs)

	_, err = seq.Advance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, seen)
}

func TestFailSoftSubmitErrorStillAdvances(t *testing.T) {
	reporter := &recordingReporter{}
	steps := []StepDefinition{
		{Key: "publish", Controller: failing(&PublishError{KbId: "kb-1", Err: errors.New("boom")}), Policy: FailSoft},
		{Key: "complete"},
	}
	seq := newOpenSequencer(t, steps, Options{Reporter: reporter})

	snap, err := seq.Advance(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 1, snap.ActiveStepIndex)
	assert.Equal(t, 1, reporter.count())
}

func TestAdvanceOnLastStepClosesAndResetsAfterDelay(t *testing.T) {
	var closed []Snapshot
	var mu sync.Mutex
	steps := []StepDefinition{
		{Key: "import", Controller: StepControllerFunc(func(ctx context.Context, session Snapshot, form json.RawMessage) (StepResult, error) {
			return StepResult{NodeIDs: []string{"n1"}}, nil
		})},
		{Key: "complete"},
	}
	seq := newOpenSequencer(t, steps, Options{
		ResetDelay: 50 * time.Millisecond,
		OnClose: func(s Snapshot) {
			mu.Lock()
			closed = append(closed, s)
			mu.Unlock()
		},
	})
	_, err := seq.Advance(context.Background(), nil)
	require.NoError(t, err)

	snap, err := seq.Advance(context.Background(), nil)

	require.NoError(t, err)
	assert.False(t, snap.IsOpen)
	// not reset synchronously
	assert.Equal(t, 1, snap.ActiveStepIndex)
	assert.Equal(t, []string{"n1"}, snap.SelectedNodeIDs)

	require.Eventually(t, func() bool {
		s := seq.Snapshot()
		return s.ActiveStepIndex == 0 && len(s.SelectedNodeIDs) == 0
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Len(t, closed, 1)
	mu.Unlock()
}

func TestClosedSessionRejectsTransitions(t *testing.T) {
	seq := newOpenSequencer(t, onboardingSteps(ok(), nil), Options{})
	_, err := seq.Close()
	require.NoError(t, err)

	_, err = seq.Advance(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = seq.Retreat()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestReopenBeforeResetStartsFresh(t *testing.T) {
	seq := newOpenSequencer(t, onboardingSteps(ok(), nil), Options{ResetDelay: time.Hour})
	for i := 0; i < 3; i++ {
		_, err := seq.Advance(context.Background(), nil)
		require.NoError(t, err)
	}
	require.False(t, seq.Snapshot().IsOpen)
	require.Equal(t, 2, seq.Snapshot().ActiveStepIndex)

	snap := seq.Open(false)

	assert.True(t, snap.IsOpen)
	assert.Equal(t, 0, snap.ActiveStepIndex)
}

func TestCommitAfterResetIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	blocking := StepControllerFunc(func(ctx context.Context, session Snapshot, form json.RawMessage) (StepResult, error) {
		<-release
		return StepResult{}, nil
	})
	seq := newOpenSequencer(t, onboardingSteps(blocking, nil), Options{ResetDelay: 5 * time.Millisecond})

	errCh := make(chan error)
	go func() {
		_, err := seq.Advance(context.Background(), nil)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return seq.Snapshot().IsSubmitting }, time.Second, time.Millisecond)

	_, err := seq.Close()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !seq.Snapshot().IsSubmitting }, time.Second, time.Millisecond)

	close(release)
	assert.ErrorIs(t, <-errCh, ErrSessionClosed)
	assert.Equal(t, 0, seq.Snapshot().ActiveStepIndex)
}

func TestClosableDependsOnForcedAndStep(t *testing.T) {
	seq, err := NewSequencer("s", onboardingSteps(ok(), nil), Options{})
	require.NoError(t, err)

	snap := seq.Open(true)
	assert.False(t, snap.Closable)
	assert.True(t, snap.Forced)

	snap = seq.SetForced(false)
	assert.True(t, snap.Closable)

	snap, err = seq.Advance(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, snap.Closable)
}

func TestCloseRejectedWhenNotClosable(t *testing.T) {
	tests := []struct {
		name    string
		forced  bool
		advance int
	}{
		{name: "forced at first step", forced: true},
		{name: "middle step", advance: 1},
		{name: "last step", advance: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closed := 0
			seq, err := NewSequencer("s", onboardingSteps(ok(), nil), Options{
				ResetDelay: 5 * time.Millisecond,
				OnClose:    func(Snapshot) { closed++ },
			})
			require.NoError(t, err)
			seq.Open(tt.forced)
			for i := 0; i < tt.advance; i++ {
				_, err := seq.Advance(context.Background(), nil)
				require.NoError(t, err)
			}

			snap, err := seq.Close()

			assert.ErrorIs(t, err, ErrNotClosable)
			assert.True(t, snap.IsOpen)
			assert.Equal(t, tt.advance, snap.ActiveStepIndex)
			time.Sleep(20 * time.Millisecond)
			assert.True(t, seq.Snapshot().IsOpen)
			assert.Equal(t, tt.advance, seq.Snapshot().ActiveStepIndex)
			assert.Zero(t, closed)
		})
	}
}

func TestCloseAllowedOnceNoLongerForced(t *testing.T) {
	seq, err := NewSequencer("s", onboardingSteps(ok(), nil), Options{ResetDelay: time.Hour})
	require.NoError(t, err)
	seq.Open(true)
	seq.SetForced(false)

	snap, err := seq.Close()

	require.NoError(t, err)
	assert.False(t, snap.IsOpen)
}

func TestCloseWhenAlreadyClosedIsAllowed(t *testing.T) {
	seq, err := NewSequencer("s", onboardingSteps(ok(), nil), Options{ResetDelay: time.Hour})
	require.NoError(t, err)

	_, err = seq.Close()

	assert.NoError(t, err)
}

func TestOnChangeReceivesSubmittingState(t *testing.T) {
	var mu sync.Mutex
	var states []bool
	seq := newOpenSequencer(t, onboardingSteps(ok(), nil), Options{
		OnChange: func(s Snapshot) {
			mu.Lock()
			states = append(states, s.IsSubmitting)
			mu.Unlock()
		},
	})

	_, err := seq.Advance(context.Background(), nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	// open, submitting, committed
	assert.Equal(t, []bool{false, true, false}, states)
}
