package application

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/alkimyk/cmr/internal/console/domain"
	"github.com/alkimyk/cmr/shared/platform/query"
)

// Claves bajo las que distintos backends devuelven la lista.
var listKeys = []string{"items", "data", "results"}

// searchPayload es la respuesta de búsqueda ya reconocida, antes de normalizar.
type searchPayload struct {
	items []any
	total *int
	pages *int
	page  *int
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// parseSearchBody acepta un array, o un objeto con la lista en items, data o results.
// JSON válido con otra forma se toma como cero resultados; solo JSON inválido es error.
func parseSearchBody(body []byte) (searchPayload, error) {
	v, err := decodeJSON(body)
	if err != nil {
		return searchPayload{}, err
	}

	switch x := v.(type) {
	case []any:
		return searchPayload{items: x}, nil
	case map[string]any:
		p := searchPayload{
			total: intField(x, "total"),
			pages: intField(x, "pages"),
			page:  intField(x, "page"),
		}
		for _, key := range listKeys {
			if arr, ok := x[key].([]any); ok {
				p.items = arr
				break
			}
		}
		return p, nil
	}
	return searchPayload{}, nil
}

// buildResult normaliza los items y completa la paginación.
// Si el backend devolvió más items que el límite sin informar total, ignoró la paginación
// y se pagina localmente.
func buildResult(norm *domain.Normalizer, kind domain.Kind, params domain.SearchParams, p searchPayload) domain.SearchResult {
	items := p.items
	total := p.total
	page := params.Page
	if p.page != nil && *p.page >= 1 {
		page = *p.page
	}

	if total == nil && p.pages == nil && len(items) > params.Limit {
		n := len(items)
		total = &n
		page = params.Page
		start := (page - 1) * params.Limit
		if start > n {
			start = n
		}
		items = items[start:]
	}
	if len(items) > params.Limit {
		items = items[:params.Limit]
	}

	res := domain.SearchResult{
		Kind:  kind,
		Items: make([]domain.Record, 0, len(items)),
		Page:  page,
		Limit: params.Limit,
		Total: total,
	}
	for _, it := range items {
		res.Items = append(res.Items, norm.NormalizeAny(kind, it))
	}

	switch {
	case total != nil:
		pages := query.PagesFor(*total, params.Limit)
		res.Pages = &pages
	case p.pages != nil:
		pages := *p.pages
		if pages < 1 {
			pages = 1
		}
		res.Pages = &pages
	}
	return res
}

// parseRecordBody extrae el registro de una respuesta de escritura: objeto directo o bajo data/item.
func parseRecordBody(body []byte) map[string]any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	v, err := decodeJSON(body)
	if err != nil {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range []string{"data", "item"} {
		if inner, ok := obj[key].(map[string]any); ok {
			return inner
		}
	}
	return obj
}

// parseErrorBody lee {error: {code, message}}, {error: "..."} o {message: "..."}.
func parseErrorBody(body []byte) (code, message string) {
	v, err := decodeJSON(body)
	if err != nil {
		return "", strings.TrimSpace(string(body))
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return "", ""
	}
	switch e := obj["error"].(type) {
	case map[string]any:
		code, _ = e["code"].(string)
		message, _ = e["message"].(string)
	case string:
		message = e
	}
	if message == "" {
		message, _ = obj["message"].(string)
	}
	if code == "" {
		code, _ = obj["code"].(string)
	}
	return code, message
}

func intField(obj map[string]any, key string) *int {
	var f float64
	switch v := obj[key].(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	n := int(f)
	return &n
}
