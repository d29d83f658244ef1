package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alkimyk/cmr/internal/report/application"
	"github.com/alkimyk/cmr/internal/report/infra/outbound/memory"
	sharedEvents "github.com/alkimyk/cmr/shared/events"
)

func integrationEvent(t *testing.T, eventType string, ts time.Time, data any) []byte {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(sharedEvents.IntegrationEvent{Type: eventType, Timestamp: ts, Data: raw})
	require.NoError(t, err)
	return payload
}

func TestActivityConsumer_RecordsCatalogChanges(t *testing.T) {
	repo := memory.NewActivityRepo()
	service := application.NewReportService(repo, zap.NewNop())
	c := NewActivityConsumer(service, zap.NewNop())
	ctx := context.Background()

	day := time.Date(2030, 3, 10, 0, 0, 0, 0, time.UTC)
	at := day.Add(9 * time.Hour)

	c.HandleMessage(ctx, "", integrationEvent(t, sharedEvents.RecordCreated, at,
		sharedEvents.RecordChanged{Resource: "clients", ID: "c1", Action: sharedEvents.RecordCreated, At: at}))
	c.HandleMessage(ctx, "", integrationEvent(t, sharedEvents.RecordCreated, at,
		sharedEvents.RecordChanged{Resource: "clients", ID: "c2"}))
	c.HandleMessage(ctx, "", integrationEvent(t, sharedEvents.RecordDeleted, at,
		sharedEvents.RecordChanged{Resource: "clients", ID: "c1", At: at.Add(time.Hour)}))

	// Ignorados
	c.HandleMessage(ctx, "", integrationEvent(t, "task.created", at, map[string]string{"id": "x"}))
	c.HandleMessage(ctx, "", []byte("{"))
	c.HandleMessage(ctx, "", integrationEvent(t, sharedEvents.RecordUpdated, at, "not an object"))

	rows, err := service.DailyActivity(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "clients", rows[0].Resource)
	assert.Equal(t, 2, rows[0].Created)
	assert.Equal(t, 1, rows[0].Deleted)
	assert.Equal(t, 0, rows[0].Updated)
}
