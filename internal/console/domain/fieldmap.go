package domain

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fieldmap.yaml
var defaultFieldMapYAML []byte

// FieldType es la coerción aplicada a un campo.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
	FieldID     FieldType = "id"
)

// FieldSpec describe un campo destino: de qué claves del backend se toma, en orden,
// cómo se coacciona y con qué columna se escribe de vuelta.
type FieldSpec struct {
	Name     string    `yaml:"name"`
	Type     FieldType `yaml:"type"`
	Sources  []string  `yaml:"sources"`
	Default  any       `yaml:"default"`
	Fallback []string  `yaml:"fallback"`
	Write    string    `yaml:"write"`
}

// candidates devuelve el propio nombre destino seguido de las fuentes declaradas, sin duplicados.
func (f FieldSpec) candidates() []string {
	out := make([]string, 0, len(f.Sources)+1)
	seen := map[string]bool{}
	for _, c := range append([]string{f.Name}, f.Sources...) {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// KindSpec es la tabla de campos de un tipo.
type KindSpec struct {
	Fields []FieldSpec `yaml:"fields"`
}

// FieldMap es la tabla declarativa de normalización de todos los tipos.
type FieldMap map[Kind]KindSpec

// ParseFieldMap lee y valida una tabla en YAML.
func ParseFieldMap(data []byte) (FieldMap, error) {
	var raw map[string]KindSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFieldMap, err)
	}

	out := make(FieldMap, len(raw))
	for name, spec := range raw {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFieldMap, err)
		}
		if err := validateKindSpec(&spec); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFieldMap, kind, err)
		}
		out[kind] = spec
	}
	return out, nil
}

func validateKindSpec(spec *KindSpec) error {
	names := map[string]bool{}
	for i := range spec.Fields {
		f := &spec.Fields[i]
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if f.Name == RawKey {
			return fmt.Errorf("field name %q is reserved", RawKey)
		}
		if names[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		names[f.Name] = true

		switch f.Type {
		case "":
			f.Type = FieldString
		case FieldString, FieldNumber, FieldBool, FieldID:
		default:
			return fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
		}
	}

	for _, required := range []string{"id", "label"} {
		if !names[required] {
			return fmt.Errorf("missing required field %q", required)
		}
	}

	for _, f := range spec.Fields {
		for _, tpl := range f.Fallback {
			for _, ph := range placeholders(tpl) {
				if !names[ph] {
					return fmt.Errorf("fallback of %q references unknown field %q", f.Name, ph)
				}
			}
		}
	}
	return nil
}

// DefaultFieldMap devuelve la tabla embebida.
func DefaultFieldMap() FieldMap {
	fm, err := ParseFieldMap(defaultFieldMapYAML)
	if err != nil {
		panic(err)
	}
	return fm
}

// LoadFieldMap carga la tabla embebida y, si path no está vacío, reemplaza los tipos
// que declare el archivo.
func LoadFieldMap(path string) (FieldMap, error) {
	fm := DefaultFieldMap()
	if path == "" {
		return fm, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	override, err := ParseFieldMap(data)
	if err != nil {
		return nil, err
	}
	for k, v := range override {
		fm[k] = v
	}
	return fm, nil
}

// Columns devuelve los nombres de campo de un tipo en el orden declarado.
func (m FieldMap) Columns(kind Kind) []string {
	spec, ok := m[kind]
	if !ok {
		return nil
	}
	cols := make([]string, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

// Field busca la especificación de un campo.
func (m FieldMap) Field(kind Kind, name string) (FieldSpec, bool) {
	for _, f := range m[kind].Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// WriteColumn devuelve la columna del backend para un campo, si es escribible.
func (m FieldMap) WriteColumn(kind Kind, name string) (string, bool) {
	f, ok := m.Field(kind, name)
	if !ok || f.Write == "" {
		return "", false
	}
	return f.Write, true
}

// placeholders extrae los nombres entre llaves de una plantilla ("Cliente {taxId}").
func placeholders(tpl string) []string {
	var out []string
	for {
		start := strings.IndexByte(tpl, '{')
		if start < 0 {
			return out
		}
		end := strings.IndexByte(tpl[start:], '}')
		if end < 0 {
			return out
		}
		out = append(out, tpl[start+1:start+end])
		tpl = tpl[start+end+1:]
	}
}
