package service

import (
	"context"
	"encoding/json"

	"wiki-console-be/internal/dto"
	"wiki-console-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService applies knowledge base list observations to the wizard.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	wizard     IWizardService
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	wizard IWizardService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		wizard:     wizard,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.KnowledgeBaseObservedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.OperatorId == uuid.Nil {
		cs.logger.Error(wizardModule, "Dropping malformed observation", map[string]interface{}{"message_id": msg.UUID})
		// retrying cannot fix a malformed payload
		msg.Ack()
		return
	}

	snap, err := cs.wizard.ApplyObservation(ctx, payload.OperatorId, payload.Count)
	if err != nil {
		cs.logger.Error(wizardModule, "Failed to apply observation", map[string]interface{}{
			"operator_id": payload.OperatorId.String(),
			"error":       err.Error(),
		})
		msg.Nack()
		return
	}

	cs.logger.Debug(wizardModule, "Observation applied", map[string]interface{}{
		"operator_id": payload.OperatorId.String(),
		"count":       payload.Count,
		"is_open":     snap.IsOpen,
		"forced":      snap.Forced,
	})
	msg.Ack()
}
