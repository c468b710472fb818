package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wiki-console-be/internal/dto"
	"wiki-console-be/internal/entity"
	"wiki-console-be/internal/pkg/logger"
	"wiki-console-be/internal/repository/contract"
	"wiki-console-be/internal/repository/kbstore"
	"wiki-console-be/internal/repository/memory"
	"wiki-console-be/internal/repository/specification"
	"wiki-console-be/pkg/wikiapi"
	"wiki-console-be/pkg/wizard"
	wizardEvents "wiki-console-be/pkg/wizard/events"
	"wiki-console-be/pkg/wizard/steps"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const wizardModule = "WIZARD"

type IWizardService interface {
	Snapshot(ctx context.Context, operatorID uuid.UUID) (wizard.Snapshot, error)
	Open(ctx context.Context, operatorID uuid.UUID) (wizard.Snapshot, error)
	Close(ctx context.Context, operatorID uuid.UUID) (wizard.Snapshot, error)
	Advance(ctx context.Context, operatorID uuid.UUID, form json.RawMessage) (wizard.Snapshot, error)
	Retreat(ctx context.Context, operatorID uuid.UUID) (wizard.Snapshot, error)

	// ReportKnowledgeBases queues an observation of the operator's knowledge
	// base list size; ApplyObservation acts on it.
	ReportKnowledgeBases(ctx context.Context, operatorID uuid.UUID, count int) error
	ApplyObservation(ctx context.Context, operatorID uuid.UUID, count int) (wizard.Snapshot, error)
	ListKnowledgeBases(ctx context.Context, operatorID uuid.UUID) ([]*dto.KnowledgeBaseResponse, error)

	Publish(ctx context.Context, operatorID uuid.UUID) (*dto.PublishResponse, error)
	ListEvents(ctx context.Context, operatorID uuid.UUID, req *dto.ListOnboardingEventsRequest) (*dto.ListOnboardingEventsResponse, error)
}

// SnapshotNotifier pushes state changes to the operator's consoles.
type SnapshotNotifier interface {
	SendSnapshot(operatorID uuid.UUID, snap wizard.Snapshot)
}

type KnowledgeBaseLister interface {
	ListKnowledgeBases(ctx context.Context) ([]wikiapi.KnowledgeBase, error)
}

type WizardServiceConfig struct {
	StepKeys   []string
	ResetDelay time.Duration
	SessionTTL time.Duration
}

type wizardService struct {
	cfg          WizardServiceConfig
	deps         steps.Dependencies
	sessions     *memory.SessionRepository
	kbStore      kbstore.Store
	lister       KnowledgeBaseLister
	publisher    *wizard.PublishCoordinator
	events       wizardEvents.Publisher
	audit        contract.OnboardingEventRepository
	notifier     SnapshotNotifier
	observations IPublisherService
	lastObserved *cache.Cache
	logger       logger.ILogger
}

func NewWizardService(
	cfg WizardServiceConfig,
	deps steps.Dependencies,
	sessions *memory.SessionRepository,
	kbStore kbstore.Store,
	lister KnowledgeBaseLister,
	events wizardEvents.Publisher,
	audit contract.OnboardingEventRepository,
	notifier SnapshotNotifier,
	observations IPublisherService,
	log logger.ILogger,
) (IWizardService, error) {
	// fail at startup on a bad step list rather than on first use
	if _, err := steps.Build(cfg.StepKeys, deps); err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if events == nil {
		events = wizardEvents.NewNatsPublisher(nil, log)
	}

	return &wizardService{
		cfg:          cfg,
		deps:         deps,
		sessions:     sessions,
		kbStore:      kbStore,
		lister:       lister,
		publisher:    deps.Publisher,
		events:       events,
		audit:        audit,
		notifier:     notifier,
		observations: observations,
		lastObserved: cache.New(cfg.SessionTTL, 10*time.Minute),
		logger:       log,
	}, nil
}

func (s *wizardService) sequencer(operatorID uuid.UUID) (*wizard.Sequencer, error) {
	return s.sessions.GetOrCreate(operatorID, func() (*wizard.Sequencer, error) {
		deps := s.deps
		deps.StoreKbID = func(ctx context.Context, kbID string) error {
			return s.kbStore.Save(ctx, operatorID, kbID)
		}
		defs, err := steps.Build(s.cfg.StepKeys, deps)
		if err != nil {
			return nil, err
		}

		return wizard.NewSequencer(uuid.NewString(), defs, wizard.Options{
			ResetDelay: s.cfg.ResetDelay,
			KnowledgeBases: wizard.KnowledgeBaseIDSourceFunc(func(ctx context.Context) (string, error) {
				return s.kbStore.Get(ctx, operatorID)
			}),
			Reporter: &operatorReporter{service: s, operatorID: operatorID},
			Logger:   s.logger,
			OnChange: func(snap wizard.Snapshot) {
				if s.notifier != nil {
					s.notifier.SendSnapshot(operatorID, snap)
				}
			},
			OnClose: func(snap wizard.Snapshot) { s.closed(operatorID, snap) },
		})
	})
}

func (s *wizardService) Snapshot(ctx context.Context, operatorID uuid.UUID) (wizard.Snapshot, error) {
	seq, err := s.sequencer(operatorID)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	return seq.Snapshot(), nil
}

func (s *wizardService) Open(ctx context.Context, operatorID uuid.UUID) (wizard.Snapshot, error) {
	seq, err := s.sequencer(operatorID)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	return seq.Open(false), nil
}

func (s *wizardService) Close(ctx context.Context, operatorID uuid.UUID) (wizard.Snapshot, error) {
	seq, err := s.sequencer(operatorID)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	return seq.Close()
}

func (s *wizardService) Advance(ctx context.Context, operatorID uuid.UUID, form json.RawMessage) (wizard.Snapshot, error) {
	seq, err := s.sequencer(operatorID)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	return seq.Advance(ctx, form)
}

func (s *wizardService) Retreat(ctx context.Context, operatorID uuid.UUID) (wizard.Snapshot, error) {
	seq, err := s.sequencer(operatorID)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	return seq.Retreat()
}

func (s *wizardService) ReportKnowledgeBases(ctx context.Context, operatorID uuid.UUID, count int) error {
	if s.observations == nil {
		_, err := s.ApplyObservation(ctx, operatorID, count)
		return err
	}
	payload, err := json.Marshal(dto.KnowledgeBaseObservedMessage{
		OperatorId: operatorID,
		Count:      count,
		ObservedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	return s.observations.Publish(ctx, payload)
}

// ApplyObservation opens the wizard as forced when the operator's list
// becomes empty and lifts the force once a knowledge base exists.
func (s *wizardService) ApplyObservation(ctx context.Context, operatorID uuid.UUID, count int) (wizard.Snapshot, error) {
	seq, err := s.sequencer(operatorID)
	if err != nil {
		return wizard.Snapshot{}, err
	}

	key := operatorID.String()
	previous, seen := s.lastObserved.Get(key)
	s.lastObserved.Set(key, count, cache.DefaultExpiration)

	if count > 0 {
		if snap := seq.Snapshot(); snap.Forced {
			return seq.SetForced(false), nil
		}
		return seq.Snapshot(), nil
	}

	if seen && previous.(int) == 0 {
		return seq.Snapshot(), nil
	}

	snap := seq.Open(true)
	s.logger.Info(wizardModule, "Wizard forced open, no knowledge base", map[string]interface{}{
		"operator_id": key,
		"session_id":  snap.SessionID,
	})
	s.record(ctx, &entity.OnboardingEvent{
		OperatorId: operatorID,
		SessionId:  snap.SessionID,
		Kind:       entity.OnboardingEventForced,
		Message:    "knowledge base list is empty",
	})
	return snap, nil
}

func (s *wizardService) ListKnowledgeBases(ctx context.Context, operatorID uuid.UUID) ([]*dto.KnowledgeBaseResponse, error) {
	kbs, err := s.lister.ListKnowledgeBases(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.ReportKnowledgeBases(ctx, operatorID, len(kbs)); err != nil {
		s.logger.Warn(wizardModule, "Failed to report knowledge base observation", map[string]interface{}{
			"operator_id": operatorID.String(),
			"error":       err.Error(),
		})
	}

	res := make([]*dto.KnowledgeBaseResponse, 0, len(kbs))
	for _, kb := range kbs {
		res = append(res, &dto.KnowledgeBaseResponse{Id: kb.Id, Name: kb.Name})
	}
	return res, nil
}

func (s *wizardService) Publish(ctx context.Context, operatorID uuid.UUID) (*dto.PublishResponse, error) {
	seq, err := s.sequencer(operatorID)
	if err != nil {
		return nil, err
	}
	snap := seq.Snapshot()

	kbID := snap.KnowledgeBaseID
	if kbID == "" {
		if kbID, err = s.kbStore.Get(ctx, operatorID); err != nil {
			return nil, fmt.Errorf("read kb id: %w", err)
		}
	}

	handle, err := s.publisher.Publish(ctx, kbID, snap.SelectedNodeIDs)
	if err != nil {
		return nil, err
	}

	s.events.PublishReleaseCreated(ctx, operatorID, kbID, handle.Id, handle.Tag, snap.SelectedNodeIDs)
	s.record(ctx, &entity.OnboardingEvent{
		OperatorId: operatorID,
		SessionId:  snap.SessionID,
		Kind:       entity.OnboardingEventRelease,
		KbId:       kbID,
		Message:    handle.Tag,
		Details:    map[string]interface{}{"release_id": handle.Id, "node_ids": snap.SelectedNodeIDs},
	})

	return &dto.PublishResponse{
		ReleaseId: handle.Id,
		Tag:       handle.Tag,
		KbId:      kbID,
		NodeIds:   snap.SelectedNodeIDs,
	}, nil
}

func (s *wizardService) ListEvents(ctx context.Context, operatorID uuid.UUID, req *dto.ListOnboardingEventsRequest) (*dto.ListOnboardingEventsResponse, error) {
	if s.audit == nil {
		return &dto.ListOnboardingEventsResponse{Events: []*dto.OnboardingEventResponse{}, Limit: req.Limit, Offset: req.Offset}, nil
	}
	limit := req.Limit
	if limit == 0 {
		limit = 20
	}

	filters := []specification.Specification{
		specification.ByOperatorID{OperatorID: operatorID},
		specification.ByEventKind{Kind: req.Kind},
	}
	total, err := s.audit.Count(ctx, filters...)
	if err != nil {
		return nil, err
	}
	events, err := s.audit.FindAll(ctx, append(filters, specification.Pagination{Limit: limit, Offset: req.Offset})...)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.OnboardingEventResponse, 0, len(events))
	for _, e := range events {
		res = append(res, &dto.OnboardingEventResponse{
			Id:        e.Id,
			SessionId: e.SessionId,
			Kind:      string(e.Kind),
			Step:      e.Step,
			KbId:      e.KbId,
			Message:   e.Message,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	return &dto.ListOnboardingEventsResponse{
		Events: res,
		Total:  total,
		Limit:  limit,
		Offset: req.Offset,
	}, nil
}

func (s *wizardService) closed(operatorID uuid.UUID, snap wizard.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.events.PublishClosed(ctx, operatorID, snap.SessionID, snap.KnowledgeBaseID)
	s.record(ctx, &entity.OnboardingEvent{
		OperatorId: operatorID,
		SessionId:  snap.SessionID,
		Kind:       entity.OnboardingEventClosed,
		KbId:       snap.KnowledgeBaseID,
		Step:       snap.ActiveStep,
	})
}

// record writes the audit trail; failures are logged only.
func (s *wizardService) record(ctx context.Context, event *entity.OnboardingEvent) {
	if s.audit == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if err := s.audit.Create(ctx, event); err != nil {
		s.logger.Error(wizardModule, "Failed to record onboarding event", map[string]interface{}{
			"kind":  string(event.Kind),
			"error": err.Error(),
		})
	}
}

type operatorReporter struct {
	service    *wizardService
	operatorID uuid.UUID
}

func (r *operatorReporter) ReportFailSoft(ctx context.Context, session wizard.Snapshot, step string, err error) {
	details := map[string]interface{}{"policy": wizard.FailSoft.String()}
	var depErr *wizard.DependencyError
	if errors.As(err, &depErr) {
		details["op"] = depErr.Op
	}

	r.service.events.PublishFailSoft(ctx, r.operatorID, session.SessionID, step, session.KnowledgeBaseID, err)
	r.service.record(ctx, &entity.OnboardingEvent{
		OperatorId: r.operatorID,
		SessionId:  session.SessionID,
		Kind:       entity.OnboardingEventFailSoft,
		Step:       step,
		KbId:       session.KnowledgeBaseID,
		Message:    err.Error(),
		Details:    details,
	})
}
