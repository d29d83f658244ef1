package sqldb

import (
	"fmt"

	catalogDomain "github.com/alkimyk/cmr/internal/catalog/domain"
	sharedDomain "github.com/alkimyk/cmr/shared/domain"
)

// Dialect encapsula lo que cambia entre motores SQL.
type Dialect struct {
	Name        string
	Placeholder func(n int) string
	// Contains es el operador de búsqueda sin distinguir mayúsculas (ILIKE en Postgres).
	Contains  string
	Types     map[catalogDomain.ColumnType]string
	OutboxDDL string
}

var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Contains:    string(sharedDomain.OpILike),
	Types: map[catalogDomain.ColumnType]string{
		catalogDomain.ColText:   "TEXT",
		catalogDomain.ColNumber: "DOUBLE PRECISION",
		catalogDomain.ColBool:   "BOOLEAN",
	},
	OutboxDDL: `CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

// SQLite compara LIKE sin distinguir mayúsculas en ASCII.
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	Contains:    string(sharedDomain.OpLike),
	Types: map[catalogDomain.ColumnType]string{
		catalogDomain.ColText:   "TEXT",
		catalogDomain.ColNumber: "REAL",
		catalogDomain.ColBool:   "INTEGER",
	},
	OutboxDDL: `CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0
	)`,
}

// DialectFor devuelve el dialecto de un driver de configuración.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
}

// outboxCreatedAt adapta la fecha del evento a la columna de cada motor.
func (d Dialect) outboxCreatedAt(evt sharedDomain.OutboxEvent) any {
	if d.Name == SQLite.Name {
		return sharedDomain.FormatTimestamp(evt.CreatedAt)
	}
	return evt.CreatedAt
}
