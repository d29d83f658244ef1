package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/alkimyk/cmr/internal/console/domain"
	sharedEvents "github.com/alkimyk/cmr/shared/events"
	sharedBus "github.com/alkimyk/cmr/shared/platform/bus"
	sharedUtils "github.com/alkimyk/cmr/shared/utils"
)

// Invalidator borra las búsquedas cacheadas de los tipos que listan un recurso.
type Invalidator interface {
	InvalidateResource(ctx context.Context, resource string) []domain.Kind
}

// InvalidationConsumer mantiene la caché de la consola al día con los cambios del backend,
// incluidos los que no pasaron por la consola.
type InvalidationConsumer struct {
	invalidator Invalidator
	log         *zap.Logger
}

var _ sharedBus.MessageHandler = (*InvalidationConsumer)(nil)

func NewInvalidationConsumer(invalidator Invalidator, log *zap.Logger) *InvalidationConsumer {
	return &InvalidationConsumer{invalidator: invalidator, log: log}
}

func (c *InvalidationConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		c.log.Warn("Failed to unmarshal integration event", zap.String("key", key), zap.Error(err))
		return
	}
	if !sharedEvents.IsRecordEvent(base.Type) {
		c.log.Debug("Evento ignorado", zap.String("type", base.Type))
		return
	}

	sharedUtils.UnmarshalAndHandle[sharedEvents.RecordChanged](c.log, base.Data, func(evt sharedEvents.RecordChanged) {
		kinds := c.invalidator.InvalidateResource(ctx, evt.Resource)
		if len(kinds) == 0 {
			return
		}
		names := make([]string, 0, len(kinds))
		for _, k := range kinds {
			names = append(names, string(k))
		}
		c.log.Info("🧹 Caché de búsquedas invalidada",
			zap.String("resource", evt.Resource),
			zap.String("id", evt.ID),
			zap.Strings("kinds", names))
	})
}
