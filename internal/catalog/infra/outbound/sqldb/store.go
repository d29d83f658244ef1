package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL
	_ "modernc.org/sqlite"             // Driver de SQLite sin cgo

	catalogDomain "github.com/alkimyk/cmr/internal/catalog/domain"
	sharedDomain "github.com/alkimyk/cmr/shared/domain"
	sharedQuery "github.com/alkimyk/cmr/shared/platform/query"
	sharedUtils "github.com/alkimyk/cmr/shared/utils"
)

// Store implementa RecordRepository sobre database/sql para cualquier recurso.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ catalogDomain.RecordRepository = (*Store)(nil)

func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open abre la base con el driver registrado para el dialecto.
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	driverName := "pgx"
	if dialect.Name == SQLite.Name {
		driverName = "sqlite"
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if dialect.Name == SQLite.Name {
		// Una sola conexión: ":memory:" crea una base distinta por conexión
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ping %s: %w", dialect.Name, err)
	}
	return db, nil
}

// ------------------ Lectura ------------------

// args numera los placeholders en el orden en que se agregan valores.
type args struct {
	dialect Dialect
	values  []any
}

func (a *args) add(v any) string {
	a.values = append(a.values, v)
	return a.dialect.Placeholder(len(a.values))
}

// where traduce el árbol de criterios. Solo acepta columnas del recurso.
func (s *Store) where(res catalogDomain.Resource, criteria sharedDomain.Criteria, a *args) (string, error) {
	var badField string
	clause, ok := sharedDomain.Visit(criteria, sharedDomain.Visitor[string]{
		Leaf: func(c sharedDomain.Criterion) string {
			if !res.Sortable(c.Field) {
				badField = c.Field
				return ""
			}
			op := string(c.Op)
			if c.Op == sharedDomain.OpILike || c.Op == sharedDomain.OpLike {
				op = s.dialect.Contains
			}
			return fmt.Sprintf("%s %s %s", c.Field, op, a.add(c.Value))
		},
		Group: func(op sharedDomain.LogicalOperator, parts []string) string {
			return "(" + strings.Join(parts, " "+string(op)+" ") + ")"
		},
	})
	if badField != "" {
		return "", fmt.Errorf("unknown column %q for %s", badField, res.Name)
	}
	if !ok {
		return "", nil
	}
	return " WHERE " + clause, nil
}

// Search devuelve la página pedida y el total de filas que cumplen los criterios.
func (s *Store) Search(ctx context.Context, res catalogDomain.Resource, criteria sharedDomain.Criteria, order sharedQuery.Sort, page sharedQuery.OffsetPagination) ([]catalogDomain.Record, int, error) {
	if !res.Sortable(order.Field) {
		order = sharedQuery.Sort{Field: res.Label}
	}

	a := &args{dialect: s.dialect}
	whereSQL, err := s.where(res, criteria, a)
	if err != nil {
		return nil, 0, err
	}
	filterArgs := append([]any(nil), a.values...)

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s, id ASC LIMIT %s OFFSET %s",
		strings.Join(res.ColumnNames(), ", "), res.Table, whereSQL,
		order.Field, sharedUtils.Ternary(order.Desc, "DESC", "ASC"),
		a.add(page.Limit), a.add(page.Offset),
	)

	rows, err := s.db.QueryContext(ctx, query, a.values...)
	if err != nil {
		return nil, 0, fmt.Errorf("db query error: %w", err)
	}
	items, err := scanRecords(res, rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", res.Table, whereSQL)
	if err := s.db.QueryRowContext(ctx, countSQL, filterArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db count error: %w", err)
	}
	return items, total, nil
}

// GetByID recupera un registro por id.
func (s *Store) GetByID(ctx context.Context, res catalogDomain.Resource, id string) (catalogDomain.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = %s",
		strings.Join(res.ColumnNames(), ", "), res.Table, s.dialect.Placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("db query error: %w", err)
	}
	items, err := scanRecords(res, rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, catalogDomain.ErrRecordNotFound
	}
	return items[0], nil
}

func scanRecords(res catalogDomain.Resource, rows *sql.Rows) ([]catalogDomain.Record, error) {
	defer rows.Close()

	names := res.ColumnNames()
	var out []catalogDomain.Record
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("db scan error: %w", err)
		}

		rec := make(catalogDomain.Record, len(names))
		for i, name := range names {
			t, _ := res.TypeOf(name)
			rec[name] = fromDB(t, values[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// fromDB normaliza lo que devuelve cada driver (int64 para bools en SQLite, []byte, time.Time).
func fromDB(t catalogDomain.ColumnType, v any) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch t {
	case catalogDomain.ColNumber:
		if f, ok := catalogDomain.ParseNumber(v); ok {
			return f
		}
		return nil
	case catalogDomain.ColBool:
		if b, ok := catalogDomain.ParseBool(v); ok {
			return b
		}
		return nil
	}
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return sharedDomain.FormatTimestamp(x)
	}
	return fmt.Sprint(v)
}

// ------------------ CRUD + Outbox ------------------

// Create inserta el registro y su evento en una transacción.
func (s *Store) Create(ctx context.Context, res catalogDomain.Resource, rec catalogDomain.Record, evt sharedDomain.OutboxEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback() // Se ignora si el Commit() es exitoso

	names := res.ColumnNames()
	a := &args{dialect: s.dialect}
	placeholders := make([]string, len(names))
	for i, name := range names {
		placeholders[i] = a.add(rec[name])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		res.Table, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if _, err := tx.ExecContext(ctx, query, a.values...); err != nil {
		return fmt.Errorf("db insert error: %w", err)
	}

	if err := s.insertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit()
}

// Update aplica solo las columnas recibidas y crea el evento en la misma transacción.
func (s *Store) Update(ctx context.Context, res catalogDomain.Resource, id string, changes catalogDomain.Record, evt sharedDomain.OutboxEvent) error {
	cols := make([]string, 0, len(changes))
	for k := range changes {
		if k == catalogDomain.ColID {
			continue
		}
		if !res.Sortable(k) {
			return fmt.Errorf("unknown column %q for %s", k, res.Name)
		}
		cols = append(cols, k)
	}
	if len(cols) == 0 {
		return errors.New("nothing to update")
	}
	sort.Strings(cols)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	a := &args{dialect: s.dialect}
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = %s", col, a.add(changes[col]))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", res.Table, strings.Join(sets, ", "), a.add(id))

	result, err := tx.ExecContext(ctx, query, a.values...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return catalogDomain.ErrRecordNotFound
	}

	if err := s.insertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete borra el registro; si no existía no escribe evento y devuelve false.
func (s *Store) Delete(ctx context.Context, res catalogDomain.Resource, id string, evt sharedDomain.OutboxEvent) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", res.Table, s.dialect.Placeholder(1))
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, nil
	}

	if err := s.insertOutboxTx(ctx, tx, evt); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *Store) insertOutboxTx(ctx context.Context, tx *sql.Tx, evt sharedDomain.OutboxEvent) error {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	a := &args{dialect: s.dialect}
	query := fmt.Sprintf(
		"INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at) VALUES (%s, %s, %s, %s, %s, %s)",
		a.add(evt.ID.String()), a.add(evt.AggregateType), a.add(evt.AggregateID), a.add(evt.EventType),
		a.add(string(payloadBytes)), a.add(s.dialect.outboxCreatedAt(evt)),
	)
	if _, err := tx.ExecContext(ctx, query, a.values...); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// ------------------ Inicialización del Esquema ------------------

// InitSchema crea las tablas de todos los recursos y la outbox si no existen.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, res := range catalogDomain.Resources() {
		defs := []string{"id TEXT PRIMARY KEY"}
		for _, col := range res.Columns {
			def := col.Name + " " + s.dialect.Types[col.Type]
			if col.Required {
				def += " NOT NULL"
			}
			defs = append(defs, def)
		}
		defs = append(defs, "created_at TEXT NOT NULL", "updated_at TEXT NOT NULL")

		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", res.Table, strings.Join(defs, ", "))
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", res.Table, err)
		}
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.OutboxDDL); err != nil {
		return fmt.Errorf("failed to create outbox table: %w", err)
	}
	return nil
}
