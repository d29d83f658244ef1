package domain

import (
	"fmt"
	"sort"
	"strings"

	shared "github.com/alkimyk/cmr/shared/domain"
)

// --- Criterios del catálogo ---

// FieldEquals filtra por igualdad sobre una columna.
type FieldEquals struct {
	Field string
	Value any
}

func (c FieldEquals) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: c.Field, Op: shared.OpEq, Value: c.Value}}
}

// FieldContains busca texto sin distinguir mayúsculas.
type FieldContains struct {
	Field string
	Text  string
}

func (c FieldContains) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: c.Field, Op: shared.OpILike, Value: "%" + c.Text + "%"}}
}

// TextSearch arma el OR de FieldContains sobre las columnas buscables.
func TextSearch(columns []string, text string) shared.CompositeCriteria {
	parts := make([]shared.Criteria, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, FieldContains{Field: col, Text: text})
	}
	return shared.Or(parts...)
}

// BuildCriteria traduce 'q' y los filtros de una búsqueda. Los filtros sobre
// columnas que el recurso no tiene se ignoran.
func BuildCriteria(res Resource, q SearchQuery) (shared.Criteria, error) {
	var parts []shared.Criteria

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		colType, ok := res.TypeOf(k)
		if !ok {
			continue
		}
		raw := q.Filters[k]
		var value any = raw
		switch colType {
		case ColNumber:
			f, ok := ParseNumber(raw)
			if !ok {
				return nil, &ValidationError{Field: k, Message: fmt.Sprintf("filter %s must be a number", k)}
			}
			value = f
		case ColBool:
			b, ok := ParseBool(raw)
			if !ok {
				return nil, &ValidationError{Field: k, Message: fmt.Sprintf("filter %s must be a boolean", k)}
			}
			value = b
		}
		parts = append(parts, FieldEquals{Field: k, Value: value})
	}

	if text := strings.TrimSpace(q.Query); text != "" {
		if cols := res.SearchColumns(); len(cols) > 0 {
			parts = append(parts, TextSearch(cols, text))
		}
	}
	return shared.And(parts...), nil
}
