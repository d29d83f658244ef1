package domain

import (
	"sort"
	"strings"

	"github.com/alkimyk/cmr/shared/platform/query"
)

// SearchParams son los parámetros de una búsqueda paginada.
type SearchParams struct {
	Page    int
	Limit   int
	Query   string
	Sort    Sort
	Filters map[string]string
	// Lookup activa el mínimo de caracteres de los typeahead.
	Lookup bool
}

// DefaultParams es la primera página con el límite por defecto.
func DefaultParams() SearchParams {
	return SearchParams{Page: query.DefaultPage, Limit: query.DefaultLimit}
}

// Normalized coacciona página, límite, texto y filtros a valores válidos.
func (p SearchParams) Normalized() SearchParams {
	out := p.Clone()
	out.Page = query.NormalizePage(p.Page)
	out.Limit = query.NormalizeLimit(p.Limit)
	out.Query = strings.TrimSpace(p.Query)
	if out.Sort.IsZero() {
		out.Sort = Sort{}
	}
	for k, v := range out.Filters {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			delete(out.Filters, k)
		}
	}
	if len(out.Filters) == 0 {
		out.Filters = nil
	}
	return out
}

// Clone copia el mapa de filtros para que el snapshot no se comparta.
func (p SearchParams) Clone() SearchParams {
	out := p
	if p.Filters != nil {
		out.Filters = make(map[string]string, len(p.Filters))
		for k, v := range p.Filters {
			out.Filters[k] = v
		}
	}
	return out
}

// Equal compara dos snapshots de parámetros.
func (p SearchParams) Equal(o SearchParams) bool {
	if p.Page != o.Page || p.Limit != o.Limit || p.Query != o.Query || p.Sort != o.Sort || p.Lookup != o.Lookup {
		return false
	}
	return filtersEqual(p.Filters, o.Filters)
}

// FilterKeys devuelve las claves de filtro ordenadas.
func (p SearchParams) FilterKeys() []string {
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func filtersEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// SearchResult es una página de registros normalizados.
// Total y Pages son nil cuando el backend no informa el total.
type SearchResult struct {
	Kind  Kind     `json:"-"`
	Items []Record `json:"items"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
	Total *int     `json:"total,omitempty"`
	Pages *int     `json:"pages,omitempty"`
}

// Empty es la página vacía bien formada: sin items, total 0, una sola página.
func Empty(kind Kind, page, limit int) SearchResult {
	total, pages := 0, 1
	return SearchResult{
		Kind:  kind,
		Items: []Record{},
		Page:  query.NormalizePage(page),
		Limit: query.NormalizeLimit(limit),
		Total: &total,
		Pages: &pages,
	}
}

// IsEmpty indica que la página no trae registros.
func (r SearchResult) IsEmpty() bool {
	return len(r.Items) == 0
}

// HasPrev indica si existe una página anterior.
func (r SearchResult) HasPrev() bool {
	return r.Page > 1
}

// HasNext indica si existe una página siguiente.
// Sin total se infiere de una página llena; una última página exactamente llena da un falso positivo.
func (r SearchResult) HasNext() bool {
	if r.Pages != nil {
		return r.Page < *r.Pages
	}
	return r.Limit > 0 && len(r.Items) == r.Limit
}

// OutcomeStatus distingue "sin resultados" de "backend inaccesible".
type OutcomeStatus string

const (
	StatusOK          OutcomeStatus = "ok"
	StatusEmpty       OutcomeStatus = "empty"
	StatusUnreachable OutcomeStatus = "unreachable"
)

// Outcome es el resultado etiquetado de una búsqueda. Result siempre es una página válida.
type Outcome struct {
	Status OutcomeStatus
	Result SearchResult
}

// Found arma un Outcome ok o empty según traiga items.
func Found(res SearchResult) Outcome {
	if res.IsEmpty() {
		return Outcome{Status: StatusEmpty, Result: res}
	}
	return Outcome{Status: StatusOK, Result: res}
}

// Unreachable arma el Outcome de una búsqueda que agotó todas las rutas.
func Unreachable(kind Kind, page, limit int) Outcome {
	return Outcome{Status: StatusUnreachable, Result: Empty(kind, page, limit)}
}
