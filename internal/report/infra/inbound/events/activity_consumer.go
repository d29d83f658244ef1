package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	reportDomain "github.com/alkimyk/cmr/internal/report/domain"
	sharedEvents "github.com/alkimyk/cmr/shared/events"
	sharedBus "github.com/alkimyk/cmr/shared/platform/bus"
	sharedUtils "github.com/alkimyk/cmr/shared/utils"
)

type ActivityRecorder interface {
	Record(ctx context.Context, evt reportDomain.ActivityEvent) error
}

// ActivityConsumer alimenta el reporte de actividad con los cambios del catálogo.
type ActivityConsumer struct {
	recorder ActivityRecorder
	log      *zap.Logger
}

var _ sharedBus.MessageHandler = (*ActivityConsumer)(nil)

func NewActivityConsumer(recorder ActivityRecorder, log *zap.Logger) *ActivityConsumer {
	return &ActivityConsumer{recorder: recorder, log: log}
}

func (c *ActivityConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		c.log.Warn("Failed to unmarshal integration event", zap.String("key", key), zap.Error(err))
		return
	}
	if !sharedEvents.IsRecordEvent(base.Type) {
		return
	}

	sharedUtils.UnmarshalAndHandle[sharedEvents.RecordChanged](c.log, base.Data, func(evt sharedEvents.RecordChanged) {
		at := evt.At
		if at.IsZero() {
			at = sharedUtils.Ternary(base.Timestamp.IsZero(), time.Now(), base.Timestamp)
		}
		activity := reportDomain.ActivityEvent{
			Resource:  evt.Resource,
			RecordID:  evt.ID,
			EventType: base.Type,
			At:        at.UTC(),
		}
		if err := c.recorder.Record(ctx, activity); err != nil {
			c.log.Error("❌ Failed to record activity",
				zap.String("resource", evt.Resource),
				zap.String("id", evt.ID),
				zap.Error(err))
			return
		}
		c.log.Debug("Actividad registrada", zap.String("resource", evt.Resource), zap.String("type", base.Type))
	})
}
