package events

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	sharedBus "github.com/alkimyk/cmr/shared/platform/bus"
)

// InMemoryEventBus implementa un bus de eventos para UN solo topic.
// Cada suscriptor recibe los eventos serializados como []byte.
type InMemoryEventBus struct {
	subscribers []chan interface{}
	mu          sync.RWMutex
	topic       string
	log         *zap.Logger
}

var _ sharedBus.EventPublisher = (*InMemoryEventBus)(nil)

// NewInMemoryEventBus crea un bus de eventos para un topic específico.
func NewInMemoryEventBus(topic string, log *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make([]chan interface{}, 0),
		topic:       topic,
		log:         log,
	}
}

// Publish envía un evento a todos los suscriptores de este bus.
// Si el buffer de un suscriptor está lleno el evento se descarta para ese suscriptor.
func (b *InMemoryEventBus) Publish(ctx context.Context, event interface{}) error {
	payloadBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	b.mu.RLock()
	subs := make([]chan interface{}, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, subChan := range subs {
		select {
		case subChan <- payloadBytes:
		default:
			b.log.Warn("⚠️ Suscriptor saturado, evento descartado", zap.String("topic", b.topic))
		}
	}
	return nil
}

// Subscribe suscribe un nuevo oyente a este bus.
func (b *InMemoryEventBus) Subscribe(bufferSize int) <-chan interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	subChan := make(chan interface{}, bufferSize)
	b.subscribers = append(b.subscribers, subChan)
	return subChan
}

// Topic devuelve el topic que maneja el bus.
func (b *InMemoryEventBus) Topic() string {
	return b.topic
}

// BackgroundConsumerChan entrega al handler cada mensaje del canal hasta que ctx se cancele.
func BackgroundConsumerChan(ctx context.Context, ch <-chan interface{}, handler sharedBus.MessageHandler, log *zap.Logger) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("🛑 Listener en memoria detenido")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if payload, ok := msg.([]byte); ok {
					handler.HandleMessage(ctx, "", payload)
				}
			}
		}
	}()
}
