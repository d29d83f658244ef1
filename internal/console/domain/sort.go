package domain

import "strings"

// SortDir es el estado de una columna en el ciclo asc → desc → sin orden.
type SortDir int

const (
	SortNone SortDir = iota
	SortAsc
	SortDesc
)

// Sort es el orden activo de una lista. El cero equivale a "sin orden".
type Sort struct {
	Field string
	Dir   SortDir
}

// ParseSort interpreta la forma de cable: "campo", "-campo" o "".
func ParseSort(raw string) Sort {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "" || raw == "-" || raw == "+":
		return Sort{}
	case strings.HasPrefix(raw, "-"):
		return Sort{Field: raw[1:], Dir: SortDesc}
	default:
		return Sort{Field: strings.TrimPrefix(raw, "+"), Dir: SortAsc}
	}
}

// String devuelve la forma de cable.
func (s Sort) String() string {
	switch {
	case s.Field == "" || s.Dir == SortNone:
		return ""
	case s.Dir == SortDesc:
		return "-" + s.Field
	default:
		return s.Field
	}
}

// IsZero indica que no hay orden activo.
func (s Sort) IsZero() bool {
	return s.Field == "" || s.Dir == SortNone
}

// Toggle avanza el ciclo para field. Otra columna siempre empieza en ascendente.
func (s Sort) Toggle(field string) Sort {
	if s.IsZero() || s.Field != field {
		return Sort{Field: field, Dir: SortAsc}
	}
	if s.Dir == SortAsc {
		return Sort{Field: field, Dir: SortDesc}
	}
	return Sort{}
}
