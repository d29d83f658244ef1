package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	reportDomain "github.com/alkimyk/cmr/internal/report/domain"
	sharedEvents "github.com/alkimyk/cmr/shared/events"
)

// ActivityRepo implementa ActivityRepository sobre ClickHouse.
type ActivityRepo struct {
	db *sql.DB
}

var _ reportDomain.ActivityRepository = (*ActivityRepo)(nil)

// NewActivityRepo abre la conexión y verifica que el servidor responda.
func NewActivityRepo(addr, dbName string) (*ActivityRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
	})

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return &ActivityRepo{db: conn}, nil
}

// NewActivityRepoFromDB reutiliza una conexión ya abierta.
func NewActivityRepoFromDB(db *sql.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

func (r *ActivityRepo) Close() error {
	return r.db.Close()
}

// LogBatch inserta el lote en una sola transacción; ClickHouse lo envía como un bloque.
func (r *ActivityRepo) LogBatch(ctx context.Context, events []reportDomain.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO catalog_activity (resource, record_id, event_type, event_time)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.Resource, e.RecordID, e.EventType, e.At.UTC()); err != nil {
			return fmt.Errorf("failed to exec statement for %s/%s: %w", e.Resource, e.RecordID, err)
		}
	}
	return tx.Commit()
}

func (r *ActivityRepo) DailyActivity(ctx context.Context, from, to time.Time) ([]reportDomain.DailyActivity, error) {
	query := `
		SELECT
			toStartOfDay(event_time) AS day,
			resource,
			countIf(event_type = ?) AS created,
			countIf(event_type = ?) AS updated,
			countIf(event_type = ?) AS deleted
		FROM catalog_activity
		WHERE event_time >= ? AND event_time < ?
		GROUP BY day, resource
		ORDER BY day, resource
	`
	rows, err := r.db.QueryContext(ctx, query,
		sharedEvents.RecordCreated, sharedEvents.RecordUpdated, sharedEvents.RecordDeleted,
		from, to.AddDate(0, 0, 1),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reportDomain.DailyActivity
	for rows.Next() {
		var row reportDomain.DailyActivity
		var created, updated, deleted uint64
		if err := rows.Scan(&row.Day, &row.Resource, &created, &updated, &deleted); err != nil {
			return nil, err
		}
		row.Day = row.Day.UTC()
		row.Created, row.Updated, row.Deleted = int(created), int(updated), int(deleted)
		out = append(out, row)
	}
	return out, rows.Err()
}

// InitSchema crea la tabla si no existe. Particionada por mes y ordenada por recurso.
func (r *ActivityRepo) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS catalog_activity (
			resource   LowCardinality(String),
			record_id  String,
			event_type LowCardinality(String),
			event_time DateTime64(3, 'UTC')
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(event_time)
		ORDER BY (resource, event_time)
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}
