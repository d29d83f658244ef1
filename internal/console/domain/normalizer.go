package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Normalizer proyecta registros heterogéneos del backend a la forma estable de cada tipo.
// Es seguro para uso concurrente: la tabla no se modifica después de construirlo.
type Normalizer struct {
	fields FieldMap
}

func NewNormalizer(fields FieldMap) *Normalizer {
	return &Normalizer{fields: fields}
}

// FieldMap expone la tabla usada por el normalizador.
func (n *Normalizer) FieldMap() FieldMap {
	return n.fields
}

// Normalize nunca falla: ante datos malformados cada campo cae en su default.
func (n *Normalizer) Normalize(kind Kind, raw map[string]any) Record {
	if raw == nil {
		raw = map[string]any{}
	}
	rec := Record{Kind: kind, Fields: map[string]any{}, Raw: raw}

	spec, ok := n.fields[kind]
	if !ok {
		// Tipo sin tabla: al menos id y label para poder listarlo
		rec.Fields["id"] = coerce(FieldID, lookupAny(raw, []string{"id", "_id"}))
		rec.Fields["label"] = coerce(FieldString, lookupAny(raw, []string{"label", "name", "nombre"}))
		return rec
	}

	folded := foldedIndex(raw)
	var pending []FieldSpec
	for _, f := range spec.Fields {
		if v, found := lookup(raw, folded, f.candidates()); found {
			rec.Fields[f.Name] = coerce(f.Type, v)
			continue
		}
		if len(f.Fallback) > 0 {
			pending = append(pending, f)
			continue
		}
		rec.Fields[f.Name] = defaultValue(f)
	}

	// Los fallbacks se evalúan al final porque dependen de otros campos ya normalizados
	for _, f := range pending {
		rec.Fields[f.Name] = n.fallback(f, rec.Fields)
	}
	return rec
}

// NormalizeAny acepta cualquier valor decodificado de JSON; lo que no es objeto
// se conserva en raw bajo "value".
func (n *Normalizer) NormalizeAny(kind Kind, item any) Record {
	if m, ok := item.(map[string]any); ok {
		return n.Normalize(kind, m)
	}
	return n.Normalize(kind, map[string]any{"value": item})
}

// Denormalize traduce campos de la consola a columnas del backend para create/update.
// Los campos sin columna de escritura (id, etiquetas calculadas) no se envían.
func (n *Normalizer) Denormalize(kind Kind, fields map[string]any) map[string]any {
	out := map[string]any{}
	for _, f := range n.fields[kind].Fields {
		if f.Write == "" {
			continue
		}
		v, ok := fields[f.Name]
		if !ok || v == nil {
			continue
		}
		out[f.Write] = coerce(f.Type, v)
	}
	return out
}

func (n *Normalizer) fallback(f FieldSpec, fields map[string]any) any {
	for _, tpl := range f.Fallback {
		if s, ok := expandTemplate(tpl, fields); ok {
			return coerce(f.Type, s)
		}
	}
	return defaultValue(f)
}

// ---------------- Búsqueda de candidatos ----------------

// lookup devuelve el primer candidato presente y no nulo. Un string vacío cuenta como presente.
// Primero busca por nombre exacto y luego tolerando mayúsculas y separadores.
func lookup(raw map[string]any, folded map[string]string, candidates []string) (any, bool) {
	for _, c := range candidates {
		if v, ok := raw[c]; ok && v != nil {
			return v, true
		}
	}
	for _, c := range candidates {
		key, ok := folded[foldKey(c)]
		if !ok {
			continue
		}
		if v := raw[key]; v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupAny(raw map[string]any, candidates []string) any {
	v, _ := lookup(raw, foldedIndex(raw), candidates)
	return v
}

// foldedIndex mapea cada clave plegada a la clave original. Si dos claves pliegan igual
// gana la menor en orden lexicográfico, para que el resultado no dependa del orden del mapa.
func foldedIndex(raw map[string]any) map[string]string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	idx := make(map[string]string, len(keys))
	for _, k := range keys {
		fk := foldKey(k)
		if _, exists := idx[fk]; !exists {
			idx[fk] = k
		}
	}
	return idx
}

// ---------------- Coerción ----------------

func coerce(t FieldType, v any) any {
	switch t {
	case FieldNumber:
		return coerceNumber(v)
	case FieldBool:
		if v == nil {
			return true
		}
		return coerceBool(v)
	default:
		return coerceString(v)
	}
}

func defaultValue(f FieldSpec) any {
	if f.Default != nil {
		return coerce(f.Type, f.Default)
	}
	switch f.Type {
	case FieldNumber:
		return float64(0)
	case FieldBool:
		return true
	default:
		return ""
	}
}

func coerceNumber(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		f = parseNumberString(x)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseNumberString acepta "1520.5", " 12 " y la coma decimal "12,5".
func parseNumberString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
			return f
		}
	}
	return 0
}

func coerceBool(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "", "false", "0", "no", "n", "off", "f":
			return false
		}
		return true
	case json.Number, float64, float32, int, int32, int64, uint64:
		return coerceNumber(x) != 0
	default:
		return true
	}
}

func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return formatNumber(x)
	case float32:
		return formatNumber(float64(x))
	case bool:
		return strconv.FormatBool(x)
	case int, int32, int64, uint64:
		return fmt.Sprint(x)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// expandTemplate reemplaza {campo} por su valor. Falla si algún campo está vacío.
func expandTemplate(tpl string, fields map[string]any) (string, bool) {
	out := tpl
	for _, ph := range placeholders(tpl) {
		val := coerceString(fields[ph])
		if val == "" {
			return "", false
		}
		out = strings.Replace(out, "{"+ph+"}", val, 1)
	}
	return out, true
}
