package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepoPostgres_FetchAndMark(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOutboxRepoPostgres(db)

	id := uuid.New()
	at := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM outbox WHERE processed=false ORDER BY created_at LIMIT $1")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at"}).
			AddRow(id.String(), "clients", "c1", "record.created", []byte(`{"resource":"clients","id":"c1"}`), at))

	events, err := repo.FetchPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, at, events[0].CreatedAt)
	assert.Equal(t, map[string]interface{}{"resource": "clients", "id": "c1"}, events[0].Payload)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox SET processed=true WHERE id=$1")).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkOutboxProcessed(context.Background(), id))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox SET processed=true WHERE id=$1")).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorContains(t, repo.MarkOutboxProcessed(context.Background(), id), "outbox event not found")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepoPostgres_InvalidRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM outbox").
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at"}).
			AddRow("no-uuid", "clients", "c1", "record.created", []byte(`{}`), time.Now()))

	_, err = NewOutboxRepoPostgres(db).FetchPendingOutbox(context.Background(), 5)
	assert.ErrorContains(t, err, "invalid UUID")
}
