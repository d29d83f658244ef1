package domain

import (
	sharedQuery "github.com/alkimyk/cmr/shared/platform/query"
)

// SearchQuery son los parámetros ya leídos de una búsqueda.
type SearchQuery struct {
	Page    int
	Limit   int
	Query   string
	Sort    string // "campo" o "-campo"
	Filters map[string]string
}

// SearchResult es la página devuelta al cliente.
type SearchResult struct {
	Items []Record `json:"items"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
	Total int      `json:"total"`
	Pages int      `json:"pages"`
}

// ResolveSort usa el orden pedido si la columna existe; si no, label ascendente.
func ResolveSort(res Resource, raw string) sharedQuery.Sort {
	if s, ok := sharedQuery.ParseSort(raw); ok && res.Sortable(s.Field) {
		return s
	}
	return sharedQuery.Sort{Field: res.Label}
}
