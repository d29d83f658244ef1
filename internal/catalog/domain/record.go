package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Record es una fila del catálogo: id, columnas escribibles y fechas.
type Record map[string]any

func (r Record) ID() string {
	id, _ := r[ColID].(string)
	return id
}

// Validate convierte la entrada de un alta o modificación a los tipos de las columnas
// y exige las columnas requeridas. Las columnas gestionadas por el catálogo (id, fechas)
// se ignoran; cualquier otra columna desconocida es un error.
func Validate(res Resource, input map[string]any) (Record, error) {
	out := make(Record, len(input))

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch k {
		case ColID, ColCreatedAt, ColUpdatedAt:
			continue
		}
		col, ok := res.Column(k)
		if !ok {
			return nil, &ValidationError{Field: k, Message: fmt.Sprintf("unknown field %q", k)}
		}
		v, err := coerceColumn(col, input[k])
		if err != nil {
			return nil, err
		}
		if col.Required && v == nil {
			return nil, &ValidationError{Field: k, Message: fmt.Sprintf("%s is required", k)}
		}
		out[k] = v
	}

	for _, col := range res.Columns {
		if _, ok := out[col.Name]; !ok && col.Required {
			return nil, &ValidationError{Field: col.Name, Message: fmt.Sprintf("%s is required", col.Name)}
		}
	}
	return out, nil
}

// coerceColumn devuelve nil para valores vacíos, que se guardan como NULL.
func coerceColumn(col Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case ColNumber:
		f, ok := ParseNumber(v)
		if !ok {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				return nil, nil
			}
			return nil, &ValidationError{Field: col.Name, Message: fmt.Sprintf("%s must be a number", col.Name)}
		}
		return f, nil
	case ColBool:
		b, ok := ParseBool(v)
		if !ok {
			return nil, &ValidationError{Field: col.Name, Message: fmt.Sprintf("%s must be a boolean", col.Name)}
		}
		return b, nil
	default:
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) == "" {
				return nil, nil
			}
			return t, nil
		case map[string]any, []any:
			return nil, &ValidationError{Field: col.Name, Message: fmt.Sprintf("%s must be a scalar", col.Name)}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		default:
			return fmt.Sprint(t), nil
		}
	}
}

// ParseNumber acepta números nativos y strings numéricos. Descarta NaN e infinitos.
func ParseNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case []byte:
		return ParseNumber(string(t))
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseBool acepta bool, 0/1 y las formas textuales habituales.
func ParseBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int64:
		return t != 0, true
	case []byte:
		return ParseBool(string(t))
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "si", "sí", "yes", "t":
			return true, true
		case "false", "0", "no", "f":
			return false, true
		}
		return false, false
	}
	if f, ok := ParseNumber(v); ok {
		return f != 0, true
	}
	return false, false
}
