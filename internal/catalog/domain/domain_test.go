package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/alkimyk/cmr/shared/domain"
	sharedQuery "github.com/alkimyk/cmr/shared/platform/query"
)

func TestResourceByName(t *testing.T) {
	res, ok := ResourceByName("clientes")
	require.True(t, ok)
	assert.Equal(t, "clients", res.Name)

	res, ok = ResourceByName("Sales_Orders")
	require.True(t, ok)
	assert.Equal(t, []string{"orders"}, res.Aliases)

	_, ok = ResourceByName("tasks")
	assert.False(t, ok)
}

func TestResources_AliasesAreUnique(t *testing.T) {
	seen := map[string]string{}
	for _, r := range Resources() {
		require.NotEmpty(t, r.Aliases, r.Name)
		_, ok := r.Column(r.Label)
		assert.True(t, ok, "label de %s debe ser una columna", r.Name)
		for _, a := range r.Aliases {
			prev, dup := seen[a]
			assert.False(t, dup, "alias %s repetido en %s y %s", a, prev, r.Name)
			seen[a] = r.Name
		}
	}
	assert.Len(t, seen, 13)
}

func TestResource_ColumnNames(t *testing.T) {
	res, _ := ResourceByName("uoms")
	assert.Equal(t, []string{"id", "codigo", "nombre", "factor", "created_at", "updated_at"}, res.ColumnNames())
	assert.Equal(t, []string{"codigo", "nombre"}, res.SearchColumns())
	assert.True(t, res.Sortable("created_at"))
	assert.False(t, res.Sortable("label"))
}

func TestValidate_Create(t *testing.T) {
	res, _ := ResourceByName("clients")

	rec, err := Validate(res, map[string]any{
		"id":     "ignored",
		"nombre": "Ferretería Sur",
		"saldo":  "1520.5",
		"activo": "false",
		"cuit":   20301234567.0,
		"email":  "",
	})
	require.NoError(t, err)
	assert.Equal(t, Record{
		"nombre": "Ferretería Sur",
		"saldo":  1520.5,
		"activo": false,
		"cuit":   "20301234567",
		"email":  nil,
	}, rec)
}

func TestValidate_Errors(t *testing.T) {
	res, _ := ResourceByName("clients")

	tests := []struct {
		name  string
		input map[string]any
		field string
	}{
		{"falta requerido", map[string]any{"email": "a@b.c"}, "nombre"},
		{"requerido vacío", map[string]any{"nombre": "  "}, "nombre"},
		{"columna desconocida", map[string]any{"nombre": "x", "color": "rojo"}, "color"},
		{"número inválido", map[string]any{"nombre": "x", "saldo": "mucho"}, "saldo"},
		{"bool inválido", map[string]any{"nombre": "x", "activo": "quizás"}, "activo"},
		{"objeto en texto", map[string]any{"nombre": map[string]any{"a": 1}}, "nombre"},
		{"solo columnas gestionadas", map[string]any{"id": "1"}, "nombre"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(res, tt.input)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestValidate_KeepsOnlyPresent(t *testing.T) {
	res, _ := ResourceByName("cheques")
	rec, err := Validate(res, map[string]any{"numero": "0001", "importe": 10, "estado": "depositado"})
	require.NoError(t, err)
	assert.Equal(t, Record{"numero": "0001", "importe": 10.0, "estado": "depositado"}, rec)
}

func TestBuildCriteria(t *testing.T) {
	res, _ := ResourceByName("clients")

	crit, err := BuildCriteria(res, SearchQuery{
		Query:   " sur ",
		Filters: map[string]string{"activo": "1", "saldo": "10", "desconocido": "x"},
	})
	require.NoError(t, err)

	conds := crit.ToConditions()
	require.Len(t, conds, 5)
	assert.Equal(t, shared.Criterion{Field: "activo", Op: shared.OpEq, Value: true}, conds[0])
	assert.Equal(t, shared.Criterion{Field: "saldo", Op: shared.OpEq, Value: 10.0}, conds[1])
	assert.Equal(t, shared.Criterion{Field: "nombre", Op: shared.OpILike, Value: "%sur%"}, conds[2])

	comp, ok := crit.(shared.CompositeCriteria)
	require.True(t, ok)
	assert.Equal(t, shared.OpAnd, comp.Operator)
	assert.Equal(t, shared.OpOr, comp.Criterias[2].(shared.CompositeCriteria).Operator)
}

func TestBuildCriteria_InvalidFilter(t *testing.T) {
	res, _ := ResourceByName("products")
	_, err := BuildCriteria(res, SearchQuery{Filters: map[string]string{"precio": "barato"}})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestResolveSort(t *testing.T) {
	res, _ := ResourceByName("cheques")
	assert.Equal(t, sharedQuery.Sort{Field: "importe", Desc: true}, ResolveSort(res, "-importe"))
	assert.Equal(t, sharedQuery.Sort{Field: "numero"}, ResolveSort(res, "label"))
	assert.Equal(t, sharedQuery.Sort{Field: "numero"}, ResolveSort(res, ""))
}

func TestParseBool(t *testing.T) {
	for _, v := range []any{true, "true", "1", "Sí", int64(1), 2.0} {
		b, ok := ParseBool(v)
		assert.True(t, ok, "%v", v)
		assert.True(t, b, "%v", v)
	}
	for _, v := range []any{false, "no", "0", int64(0), []byte("false")} {
		b, ok := ParseBool(v)
		assert.True(t, ok, "%v", v)
		assert.False(t, b, "%v", v)
	}
	_, ok := ParseBool("tal vez")
	assert.False(t, ok)
}
