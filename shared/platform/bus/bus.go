package bus

import "context"

type Keyer interface {
	PartitionKey() string
}

// La semántica de topic/nombre y formato del payload la deciden los adapters.
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
}

// MessageHandler lo implementa cualquier consumidor de eventos, sea Kafka o el bus en memoria.
type MessageHandler interface {
	HandleMessage(ctx context.Context, key string, payload []byte)
}
