package domain

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultRoutesYAML []byte

// Op es una operación contra el backend.
type Op string

const (
	OpSearch Op = "search"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// DefaultLookupMin es el mínimo de caracteres de un typeahead.
const DefaultLookupMin = 2

// Routes son las rutas candidatas de un tipo, en orden de prioridad.
type Routes struct {
	// Resources son los recursos del backend cuyos cambios invalidan este tipo.
	Resources []string `yaml:"resources"`
	Search    []string `yaml:"search"`
	Create    []string `yaml:"create"`
	Update    []string `yaml:"update"`
	Delete    []string `yaml:"delete"`
	LookupMin int      `yaml:"lookup_min"`
}

// Candidates devuelve las plantillas de una operación.
func (r Routes) Candidates(op Op) []string {
	switch op {
	case OpSearch:
		return r.Search
	case OpCreate:
		return r.Create
	case OpUpdate:
		return r.Update
	case OpDelete:
		return r.Delete
	}
	return nil
}

// RouteTable asocia cada tipo con sus rutas.
type RouteTable map[Kind]Routes

func ParseRoutes(data []byte) (RouteTable, error) {
	var raw map[string]Routes
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoutes, err)
	}

	out := make(RouteTable, len(raw))
	for name, r := range raw {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRoutes, err)
		}
		if err := validateRoutes(r); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoutes, kind, err)
		}
		if r.LookupMin <= 0 {
			r.LookupMin = DefaultLookupMin
		}
		out[kind] = r
	}
	return out, nil
}

func validateRoutes(r Routes) error {
	if len(r.Search) == 0 {
		return fmt.Errorf("no search candidates")
	}
	for _, op := range []Op{OpSearch, OpCreate, OpUpdate, OpDelete} {
		for _, tpl := range r.Candidates(op) {
			if !strings.HasPrefix(tpl, "/") {
				return fmt.Errorf("%s path %q must start with /", op, tpl)
			}
			needsID := op == OpUpdate || op == OpDelete
			if needsID != strings.Contains(tpl, "{id}") {
				return fmt.Errorf("%s path %q: {id} placeholder mismatch", op, tpl)
			}
		}
	}
	return nil
}

// DefaultRoutes devuelve la tabla embebida.
func DefaultRoutes() RouteTable {
	rt, err := ParseRoutes(defaultRoutesYAML)
	if err != nil {
		panic(err)
	}
	return rt
}

// LoadRoutes carga la tabla embebida y aplica encima los tipos del archivo, si hay.
func LoadRoutes(path string) (RouteTable, error) {
	rt := DefaultRoutes()
	if path == "" {
		return rt, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	override, err := ParseRoutes(data)
	if err != nil {
		return nil, err
	}
	for k, v := range override {
		rt[k] = v
	}
	return rt, nil
}

// KindsForResource devuelve los tipos que listan un recurso del backend.
func (t RouteTable) KindsForResource(resource string) []Kind {
	var out []Kind
	for _, k := range Kinds() {
		for _, res := range t[k].Resources {
			if res == resource {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// ExpandPath reemplaza {id} por el identificador escapado.
func ExpandPath(tpl, id string) string {
	return strings.ReplaceAll(tpl, "{id}", url.PathEscape(id))
}
