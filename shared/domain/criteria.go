package domain

// ---------------- Operadores ----------------

type Operator string

const (
	OpEq    Operator = "="
	OpGt    Operator = ">"
	OpGte   Operator = ">="
	OpLt    Operator = "<"
	OpLte   Operator = "<="
	OpLike  Operator = "LIKE"
	OpILike Operator = "ILIKE"
)

type LogicalOperator string

const (
	OpAnd LogicalOperator = "AND"
	OpOr  LogicalOperator = "OR"
)

// ---------------- Criterion ----------------

// Criterion describe una condición neutral de filtrado
type Criterion struct {
	Field string
	Op    Operator
	Value interface{}
}

// ToConditions permite usar un Criterion suelto como Criteria.
func (c Criterion) ToConditions() []Criterion {
	return []Criterion{c}
}

// ---------------- Criteria interface ----------------

// Criteria permite transformar filtros a condiciones neutrales.
// Las hojas devuelven sus condiciones (unidas con AND); los compuestos
// se recorren con Visit para respetar su operador lógico.
type Criteria interface {
	ToConditions() []Criterion
}

// ---------------- Composite Criteria ----------------

type CompositeCriteria struct {
	Operator  LogicalOperator
	Criterias []Criteria
}

func (c CompositeCriteria) ToConditions() []Criterion {
	var all []Criterion
	for _, crit := range c.Criterias {
		all = append(all, crit.ToConditions()...)
	}
	return all
}

// IsEmpty indica si el compuesto no aporta ninguna condición.
func (c CompositeCriteria) IsEmpty() bool {
	return len(c.ToConditions()) == 0
}

// ---------------- Visitor ----------------

// Visitor traduce un árbol de Criteria a la sintaxis de cada adapter (SQL, BSON...).
type Visitor[T any] struct {
	Leaf  func(c Criterion) T
	Group func(op LogicalOperator, parts []T) T
}

// Visit recorre el árbol. Devuelve false si no hay condiciones.
func Visit[T any](criteria Criteria, v Visitor[T]) (T, bool) {
	var zero T
	if criteria == nil {
		return zero, false
	}

	if comp, ok := criteria.(CompositeCriteria); ok {
		var parts []T
		for _, child := range comp.Criterias {
			if part, ok := Visit(child, v); ok {
				parts = append(parts, part)
			}
		}
		switch len(parts) {
		case 0:
			return zero, false
		case 1:
			return parts[0], true
		}
		op := comp.Operator
		if op == "" {
			op = OpAnd
		}
		return v.Group(op, parts), true
	}

	conds := criteria.ToConditions()
	switch len(conds) {
	case 0:
		return zero, false
	case 1:
		return v.Leaf(conds[0]), true
	}
	parts := make([]T, 0, len(conds))
	for _, c := range conds {
		parts = append(parts, v.Leaf(c))
	}
	return v.Group(OpAnd, parts), true
}

// ---------------- Helpers ----------------

// And crea un CompositeCriteria con operador AND
func And(criterias ...Criteria) CompositeCriteria {
	return CompositeCriteria{Operator: OpAnd, Criterias: criterias}
}

// Or crea un CompositeCriteria con operador OR
func Or(criterias ...Criteria) CompositeCriteria {
	return CompositeCriteria{Operator: OpOr, Criterias: criterias}
}
