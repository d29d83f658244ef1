package domain

import (
	"encoding/json"
	"strconv"
)

// RawKey es la clave bajo la que se serializa el registro original.
const RawKey = "raw"

// Record es un registro normalizado: campos planos con nombres estables
// más la referencia al registro tal como llegó del backend.
type Record struct {
	Kind   Kind
	Fields map[string]any
	Raw    map[string]any
}

// ID devuelve el identificador normalizado.
func (r Record) ID() string {
	return r.String("id")
}

// Label devuelve la etiqueta de presentación.
func (r Record) Label() string {
	return r.String("label")
}

// String devuelve el campo como texto ("" si no existe).
func (r Record) String(field string) string {
	switch v := r.Fields[field].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return coerceString(v)
	}
}

// Number devuelve el campo numérico (0 si no existe o no es número).
func (r Record) Number(field string) float64 {
	return coerceNumber(r.Fields[field])
}

// Bool devuelve el campo booleano.
func (r Record) Bool(field string) bool {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return false
	}
	return coerceBool(v)
}

// WithoutRaw devuelve solo los campos, listo para volver a normalizarse.
func (r Record) WithoutRaw() map[string]any {
	out := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		out[k] = v
	}
	return out
}

// MarshalJSON aplana los campos y agrega "raw".
func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		flat[k] = v
	}
	if r.Raw != nil {
		flat[RawKey] = r.Raw
	}
	return json.Marshal(flat)
}

// UnmarshalJSON separa "raw" del resto de campos. Kind lo completa quien decodifica.
func (r *Record) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	r.Fields = make(map[string]any, len(flat))
	r.Raw = nil
	for k, v := range flat {
		if k == RawKey {
			if raw, ok := v.(map[string]any); ok {
				r.Raw = raw
			}
			continue
		}
		r.Fields[k] = v
	}
	return nil
}

// formatNumber imprime sin exponente ni ceros sobrantes ("12", "1520.5").
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
