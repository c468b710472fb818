// Package events emits the wizard's domain events on the event bus.
package events

import (
	"context"
	"time"

	"wiki-console-be/internal/pkg/logger"
	pkgEvents "wiki-console-be/pkg/events"

	"github.com/google/uuid"
)

const (
	TypeFailSoft       = "WIZARD_FAIL_SOFT"
	TypeClosed         = "WIZARD_CLOSED"
	TypeReleaseCreated = "WIKI_RELEASE_CREATED"
)

type Publisher interface {
	PublishFailSoft(ctx context.Context, operatorID uuid.UUID, sessionID, step, kbID string, err error)
	PublishClosed(ctx context.Context, operatorID uuid.UUID, sessionID, kbID string)
	PublishReleaseCreated(ctx context.Context, operatorID uuid.UUID, kbID, releaseID, tag string, nodeIDs []string)
}

// NatsPublisher implements Publisher on the bus. A nil bus disables it.
type NatsPublisher struct {
	publisher pkgEvents.Publisher
	logger    logger.ILogger
	now       func() time.Time
}

func NewNatsPublisher(publisher pkgEvents.Publisher, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// PublishFailSoft emits WIZARD_FAIL_SOFT for a side effect the wizard swallowed.
func (p *NatsPublisher) PublishFailSoft(ctx context.Context, operatorID uuid.UUID, sessionID, step, kbID string, err error) {
	p.publish(ctx, TypeFailSoft, map[string]interface{}{
		"operator_id": operatorID.String(),
		"session_id":  sessionID,
		"step":        step,
		"kb_id":       kbID,
		"error":       err.Error(),
		"policy":      "fail_soft",
	})
}

// PublishClosed emits WIZARD_CLOSED so document lists of kb_id refresh.
func (p *NatsPublisher) PublishClosed(ctx context.Context, operatorID uuid.UUID, sessionID, kbID string) {
	p.publish(ctx, TypeClosed, map[string]interface{}{
		"operator_id": operatorID.String(),
		"session_id":  sessionID,
		"kb_id":       kbID,
		"entity_type": "knowledge_base",
		"entity_id":   kbID,
	})
}

func (p *NatsPublisher) PublishReleaseCreated(ctx context.Context, operatorID uuid.UUID, kbID, releaseID, tag string, nodeIDs []string) {
	p.publish(ctx, TypeReleaseCreated, map[string]interface{}{
		"operator_id": operatorID.String(),
		"kb_id":       kbID,
		"release_id":  releaseID,
		"tag":         tag,
		"node_ids":    nodeIDs,
		"entity_type": "release",
		"entity_id":   releaseID,
	})
}

func (p *NatsPublisher) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if p.publisher == nil {
		return
	}

	evt := pkgEvents.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: p.now(),
	}
	if err := p.publisher.Publish(ctx, evt); err != nil {
		p.logger.Error("EVENTS", "Failed to publish "+eventType+" event", map[string]interface{}{"error": err.Error()})
	}
}
