package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/alkimyk/cmr/internal/mocks"
	sharedDomain "github.com/alkimyk/cmr/shared/domain"
	sharedEvents "github.com/alkimyk/cmr/shared/events"
	sharedBus "github.com/alkimyk/cmr/shared/platform/bus"
)

func recordRegistry() map[string]sharedEvents.EventMetadata {
	return map[string]sharedEvents.EventMetadata{
		sharedEvents.RecordCreated: {
			Type:  reflect.TypeOf(sharedEvents.RecordChanged{}),
			Topic: sharedEvents.CatalogTopic,
		},
	}
}

func TestOutboxWorker_ProcessBatch_Success(t *testing.T) {
	// ARRANGE
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)

	eventID := uuid.New()
	testEvent := sharedDomain.OutboxEvent{
		ID:            eventID,
		AggregateType: "suppliers",
		AggregateID:   "s-1",
		EventType:     sharedEvents.RecordCreated,
		Payload:       map[string]interface{}{"resource": "suppliers", "id": "s-1", "action": "created"},
		CreatedAt:     time.Now().UTC(),
	}

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{testEvent}, nil).Once()
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(evt sharedEvents.IntegrationEvent) bool {
		var payload sharedEvents.RecordChanged
		if err := json.Unmarshal(evt.Data, &payload); err != nil {
			return false
		}
		return evt.Type == sharedEvents.RecordCreated &&
			evt.PartitionKey() == "suppliers:s-1" &&
			payload.Resource == "suppliers" && payload.ID == "s-1"
	})).Return(nil).Once()
	repo.On("MarkOutboxProcessed", mock.Anything, eventID).Return(nil).Once()

	worker := NewOutboxWorker(repo, publisher, recordRegistry(), time.Second, 10, zap.NewNop())

	// ACT
	published := worker.ProcessBatch(context.Background())

	// ASSERT
	assert.Equal(t, 1, published)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestOutboxWorker_ProcessBatch_PublisherFails(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)

	testEvent := sharedDomain.OutboxEvent{ID: uuid.New(), EventType: sharedEvents.RecordCreated, Payload: map[string]interface{}{}}

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{testEvent}, nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("kafka is down")).Once()

	worker := NewOutboxWorker(repo, publisher, recordRegistry(), time.Second, 10, zap.NewNop())

	assert.Equal(t, 0, worker.ProcessBatch(context.Background()))

	repo.AssertCalled(t, "FetchPendingOutbox", mock.Anything, 10)
	publisher.AssertCalled(t, "Publish", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkOutboxProcessed", mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_UnknownEventType(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)

	testEvent := sharedDomain.OutboxEvent{ID: uuid.New(), EventType: "unregistered.event", Payload: map[string]interface{}{}}

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{testEvent}, nil).Once()

	worker := NewOutboxWorker(repo, publisher, make(map[string]sharedEvents.EventMetadata), time.Second, 10, zap.NewNop())

	worker.ProcessBatch(context.Background())

	repo.AssertExpectations(t)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkOutboxProcessed", mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_FetchFails(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)

	repo.On("FetchPendingOutbox", mock.Anything, 5).Return([]sharedDomain.OutboxEvent(nil), errors.New("db locked")).Once()

	worker := NewOutboxWorker(repo, publisher, recordRegistry(), time.Second, 5, zap.NewNop())

	assert.Equal(t, 0, worker.ProcessBatch(context.Background()))
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

// Verificación estática de que los mocks cumplen las interfaces.
var _ sharedDomain.OutboxRepository = (*mocks.MockOutboxRepository)(nil)
var _ sharedBus.EventPublisher = (*mocks.MockPublisher)(nil)
