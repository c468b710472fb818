package events

import (
	"context"
	"errors"
	"testing"

	"wiki-console-be/internal/pkg/logger"
	pkgEvents "wiki-console-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBus struct {
	mock.Mock
}

func (m *mockBus) Publish(ctx context.Context, event pkgEvents.Event) error {
	return m.Called(ctx, event).Error(0)
}

func TestPublishClosed(t *testing.T) {
	bus := new(mockBus)
	var got pkgEvents.Event
	bus.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(pkgEvents.Event)
	}).Return(nil)
	operator := uuid.New()

	NewNatsPublisher(bus, logger.NewNopLogger()).PublishClosed(context.Background(), operator, "s-1", "kb-42")

	require.NotNil(t, got)
	assert.Equal(t, TypeClosed, got.EventType())
	assert.Equal(t, "kb-42", got.Payload()["kb_id"])
	assert.Equal(t, operator.String(), got.Payload()["operator_id"])
}

func TestPublishFailSoftCarriesPolicy(t *testing.T) {
	bus := new(mockBus)
	bus.On("Publish", mock.Anything, mock.MatchedBy(func(e pkgEvents.Event) bool {
		return e.EventType() == TypeFailSoft && e.Payload()["policy"] == "fail_soft" && e.Payload()["error"] == "persist failed"
	})).Return(errors.New("nats down"))

	NewNatsPublisher(bus, logger.NewNopLogger()).PublishFailSoft(context.Background(), uuid.New(), "s-1", "kb_config", "kb-42", errors.New("persist failed"))

	bus.AssertExpectations(t)
}

func TestNilBusIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNatsPublisher(nil, logger.NewNopLogger()).PublishClosed(context.Background(), uuid.New(), "s-1", "")
	})
}
