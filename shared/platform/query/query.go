package query

import (
	"strconv"
	"strings"
)

// ---------- Tipos de filtrado / paginación / ordenamiento ----------

// Tamaños de página aceptados. Cualquier otro valor cae en DefaultLimit.
var AllowedLimits = []int{10, 20, 50}

const (
	DefaultLimit = 20
	DefaultPage  = 1
	// MaxPage acota la página para que (page-1)*limit no desborde el OFFSET.
	MaxPage = 1_000_000
)

// OffsetPagination para paginación clásica
type OffsetPagination struct {
	Limit  int
	Offset int
}

// Sort indica campo y dirección.
type Sort struct {
	Field string // ej. "nombre", "fecha"
	Desc  bool
}

// NormalizeLimit fuerza el límite al conjunto permitido.
func NormalizeLimit(limit int) int {
	for _, l := range AllowedLimits {
		if l == limit {
			return limit
		}
	}
	return DefaultLimit
}

// NormalizePage garantiza una página 1-based no mayor que MaxPage.
func NormalizePage(page int) int {
	if page < 1 {
		return DefaultPage
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

// ParseLimit interpreta el parámetro de query 'limit'.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultLimit
	}
	return NormalizeLimit(n)
}

// ParsePage interpreta el parámetro de query 'page'.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultPage
	}
	return NormalizePage(n)
}

// PagesFor devuelve max(1, ceil(total/limit)).
func PagesFor(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

// Page convierte página y límite (ya normalizados) a offset.
func Page(page, limit int) OffsetPagination {
	page = NormalizePage(page)
	limit = NormalizeLimit(limit)
	return OffsetPagination{Limit: limit, Offset: (page - 1) * limit}
}

// ParseSort interpreta "campo" o "-campo".
func ParseSort(raw string) (Sort, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" || raw == "+" {
		return Sort{}, false
	}
	if strings.HasPrefix(raw, "-") {
		return Sort{Field: raw[1:], Desc: true}, true
	}
	return Sort{Field: strings.TrimPrefix(raw, "+")}, true
}
