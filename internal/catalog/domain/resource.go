package domain

import "strings"

// ---------------- Columnas ----------------

type ColumnType string

const (
	ColText   ColumnType = "text"
	ColNumber ColumnType = "number"
	ColBool   ColumnType = "bool"
)

// Columnas gestionadas por el propio catálogo, nunca escribibles desde fuera.
const (
	ColID        = "id"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
)

// Column describe una columna escribible de un recurso.
type Column struct {
	Name       string
	Type       ColumnType
	Required   bool
	Searchable bool // participa de la búsqueda libre 'q'
}

// ---------------- Resource ----------------

// Resource describe una tabla del catálogo y cómo se expone por HTTP.
type Resource struct {
	Name    string   // nombre canónico, ej. "clients"
	Table   string   // tabla o colección
	Aliases []string // segmentos de ruta bajo los que se publica
	Label   string   // columna del orden por defecto (ascendente)
	Columns []Column
}

// Column busca una columna escribible por nombre.
func (r Resource) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames devuelve todas las columnas persistidas: id, escribibles y fechas.
func (r Resource) ColumnNames() []string {
	out := make([]string, 0, len(r.Columns)+3)
	out = append(out, ColID)
	for _, c := range r.Columns {
		out = append(out, c.Name)
	}
	return append(out, ColCreatedAt, ColUpdatedAt)
}

// TypeOf devuelve el tipo de cualquier columna persistida.
func (r Resource) TypeOf(name string) (ColumnType, bool) {
	switch name {
	case ColID, ColCreatedAt, ColUpdatedAt:
		return ColText, true
	}
	c, ok := r.Column(name)
	return c.Type, ok
}

// Sortable indica si la columna puede usarse en ORDER BY.
func (r Resource) Sortable(name string) bool {
	_, ok := r.TypeOf(name)
	return ok
}

// Filterable indica si un parámetro de query se traduce a un filtro de igualdad.
func (r Resource) Filterable(name string) bool {
	return r.Sortable(name)
}

// SearchColumns devuelve las columnas de texto que recorre 'q'.
func (r Resource) SearchColumns() []string {
	var out []string
	for _, c := range r.Columns {
		if c.Searchable {
			out = append(out, c.Name)
		}
	}
	return out
}

// ---------------- Catálogo de recursos ----------------

func text(name string, searchable bool) Column {
	return Column{Name: name, Type: ColText, Searchable: searchable}
}

func required(c Column) Column {
	c.Required = true
	return c
}

func number(name string) Column { return Column{Name: name, Type: ColNumber} }

func flag(name string) Column { return Column{Name: name, Type: ColBool} }

func partyColumns() []Column {
	return []Column{
		required(text("nombre", true)),
		text("cuit", true),
		text("email", true),
		text("telefono", false),
		text("direccion", false),
		number("saldo"),
		flag("activo"),
	}
}

var resources = []Resource{
	{Name: "clients", Table: "clients", Aliases: []string{"clients", "clientes"}, Label: "nombre", Columns: partyColumns()},
	{Name: "suppliers", Table: "suppliers", Aliases: []string{"suppliers", "proveedores"}, Label: "nombre", Columns: partyColumns()},
	{
		Name: "products", Table: "products", Aliases: []string{"products"}, Label: "nombre",
		Columns: []Column{
			text("codigo", true),
			required(text("nombre", true)),
			text("descripcion", true),
			number("precio"),
			number("costo"),
			number("stock"),
			text("unidad_id", false),
			flag("activo"),
		},
	},
	{
		Name: "price_lists", Table: "price_lists", Aliases: []string{"price_lists"}, Label: "nombre",
		Columns: []Column{
			required(text("nombre", true)),
			text("moneda", true),
			number("margen"),
			flag("activo"),
		},
	},
	{
		Name: "uoms", Table: "uoms", Aliases: []string{"units"}, Label: "nombre",
		Columns: []Column{
			required(text("codigo", true)),
			text("nombre", true),
			number("factor"),
		},
	},
	{
		Name: "cheques", Table: "cheques", Aliases: []string{"cheques"}, Label: "numero",
		Columns: []Column{
			required(text("numero", true)),
			text("banco", true),
			required(number("importe")),
			text("fecha_emision", false),
			text("fecha_vencimiento", false),
			text("estado", false),
			text("librador", true),
		},
	},
	{
		Name: "inventory_moves", Table: "inventory_moves", Aliases: []string{"inventory-moves"}, Label: "referencia",
		Columns: []Column{
			text("referencia", true),
			required(text("producto_id", false)),
			text("tipo", false),
			required(number("cantidad")),
			text("fecha", false),
		},
	},
	{
		Name: "production_orders", Table: "production_orders", Aliases: []string{"production-orders"}, Label: "numero",
		Columns: []Column{
			text("numero", true),
			required(text("producto_id", false)),
			required(number("cantidad")),
			text("estado", false),
			text("fecha_inicio", false),
			text("fecha_fin", false),
		},
	},
	{
		Name: "purchases", Table: "purchases", Aliases: []string{"purchases", "compras"}, Label: "numero",
		Columns: []Column{
			text("numero", true),
			required(text("proveedor_id", false)),
			text("fecha", false),
			number("total"),
			text("estado", false),
		},
	},
	{
		Name: "sales_orders", Table: "sales_orders", Aliases: []string{"orders"}, Label: "numero",
		Columns: []Column{
			text("numero", true),
			required(text("cliente_id", false)),
			text("fecha", false),
			number("total"),
			text("estado", false),
		},
	},
}

// Resources devuelve una copia de los recursos publicados.
func Resources() []Resource {
	out := make([]Resource, len(resources))
	copy(out, resources)
	return out
}

// ResourceByName busca por nombre canónico o por alias de ruta.
func ResourceByName(name string) (Resource, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range resources {
		if r.Name == name {
			return r, true
		}
		for _, a := range r.Aliases {
			if a == name {
				return r, true
			}
		}
	}
	return Resource{}, false
}
