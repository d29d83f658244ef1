package cli

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/alkimyk/cmr/internal/console/domain"
)

// Ancho máximo de una columna antes de recortar.
const maxColumnWidth = 28

// Table imprime una página de resultados como tabla de texto.
type Table struct {
	out    io.Writer
	header lipgloss.Style
	cell   lipgloss.Style
	muted  lipgloss.Style
	warn   lipgloss.Style
}

func NewTable(out io.Writer) *Table {
	return &Table{
		out:    out,
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		cell:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
	}
}

// Render imprime encabezado, filas y pie con la paginación. sort marca la columna ordenada.
func (t *Table) Render(columns []string, res domain.SearchResult, status domain.OutcomeStatus, sort domain.Sort) {
	if len(columns) == 0 {
		columns = []string{"id", "label"}
	}

	widths := make([]int, len(columns))
	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col + sortMark(sort, col)
		widths[i] = utf8.RuneCountInString(headers[i])
	}
	rows := make([][]string, 0, len(res.Items))
	for _, rec := range res.Items {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = truncate(rec.String(col), maxColumnWidth)
			if n := utf8.RuneCountInString(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
		rows = append(rows, row)
	}

	t.line(t.header, headers, widths)
	for _, row := range rows {
		t.line(t.cell, row, widths)
	}

	switch {
	case status == domain.StatusUnreachable:
		fmt.Fprintln(t.out, t.warn.Render("⚠️  backend no disponible"))
	case len(rows) == 0:
		fmt.Fprintln(t.out, t.muted.Render("sin resultados"))
	}
	fmt.Fprintln(t.out, t.muted.Render(footer(res)))
}

func (t *Table) line(style lipgloss.Style, values []string, widths []int) {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = style.Width(widths[i]).Render(v)
	}
	fmt.Fprintln(t.out, strings.TrimRight(strings.Join(cells, "  "), " "))
}

func footer(res domain.SearchResult) string {
	nav := ""
	if res.HasPrev() {
		nav += " [p] anterior"
	}
	if res.HasNext() {
		nav += " [n] siguiente"
	}
	if res.Total != nil && res.Pages != nil {
		return fmt.Sprintf("página %d de %d · %d registros%s", res.Page, *res.Pages, *res.Total, nav)
	}
	return fmt.Sprintf("página %d · %d registros en pantalla%s", res.Page, len(res.Items), nav)
}

func sortMark(s domain.Sort, col string) string {
	if s.IsZero() || s.Field != col {
		return ""
	}
	if s.Dir == domain.SortDesc {
		return " ↓"
	}
	return " ↑"
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
