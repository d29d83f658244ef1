package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedEvents "github.com/alkimyk/cmr/shared/events"
)

type recordingHandler struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (h *recordingHandler) HandleMessage(ctx context.Context, key string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, payload)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.payloads)
}

func TestInMemoryEventBus_FanOut(t *testing.T) {
	bus := NewInMemoryEventBus(sharedEvents.CatalogTopic, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h1, h2 := &recordingHandler{}, &recordingHandler{}
	BackgroundConsumerChan(ctx, bus.Subscribe(4), h1, zap.NewNop())
	BackgroundConsumerChan(ctx, bus.Subscribe(4), h2, zap.NewNop())

	evt := sharedEvents.IntegrationEvent{Type: sharedEvents.RecordCreated, AggregateID: "abc"}
	require.NoError(t, bus.Publish(ctx, evt))

	assert.Eventually(t, func() bool { return h1.count() == 1 && h2.count() == 1 }, time.Second, 5*time.Millisecond)

	var got sharedEvents.IntegrationEvent
	require.NoError(t, json.Unmarshal(h1.payloads[0], &got))
	assert.Equal(t, "abc", got.AggregateID)
}

func TestInMemoryEventBus_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewInMemoryEventBus("t", zap.NewNop())
	ch := bus.Subscribe(1)

	require.NoError(t, bus.Publish(context.Background(), map[string]int{"n": 1}))
	require.NoError(t, bus.Publish(context.Background(), map[string]int{"n": 2}))

	assert.Len(t, ch, 1)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisher_UsesPartitionKey(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, zap.NewNop())

	evt := sharedEvents.IntegrationEvent{Type: sharedEvents.RecordUpdated, AggregateID: "clients:42"}
	require.NoError(t, p.Publish(context.Background(), evt))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "clients:42", string(w.msgs[0].Key))
	assert.Contains(t, string(w.msgs[0].Value), `"type":"record.updated"`)
}

func TestKafkaPublisher_PropagatesWriterError(t *testing.T) {
	p := NewKafkaPublisher(&fakeWriter{err: errors.New("broker down")}, zap.NewNop())
	err := p.Publish(context.Background(), sharedEvents.IntegrationEvent{})
	assert.EqualError(t, err, "broker down")
}
