package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alkimyk/cmr/internal/console/application"
)

const browserHelp = `comandos:
  n            página siguiente
  p            página anterior
  /texto       buscar (vacío limpia)
  s campo      ordenar por campo (asc, desc, sin orden)
  l 10|20|50   tamaño de página
  f clave=val  filtrar (clave= quita el filtro)
  r            recargar
  q            salir`

// Browser es un paginador interactivo de línea sobre un ListController.
type Browser struct {
	ctrl    *application.ListController
	columns []string
	table   *Table
	in      io.Reader
	out     io.Writer
	timeout time.Duration
}

func NewBrowser(ctrl *application.ListController, columns []string, in io.Reader, out io.Writer) *Browser {
	return &Browser{
		ctrl:    ctrl,
		columns: columns,
		table:   NewTable(out),
		in:      in,
		out:     out,
		timeout: 10 * time.Second,
	}
}

// Run lee comandos hasta "q", fin de entrada o cancelación de ctx.
func (b *Browser) Run(ctx context.Context) error {
	b.ctrl.Refresh()
	if err := b.render(ctx); err != nil {
		return err
	}

	scanner := bufio.NewScanner(b.in)
	for {
		fmt.Fprint(b.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(b.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		quit, changed := b.exec(strings.TrimSpace(scanner.Text()))
		if quit {
			return nil
		}
		if changed {
			if err := b.render(ctx); err != nil {
				return err
			}
		}
	}
}

// exec aplica un comando. changed indica que hay que volver a pintar.
func (b *Browser) exec(line string) (quit, changed bool) {
	cmd, arg := line, ""
	if i := strings.IndexByte(line, ' '); i > 0 {
		cmd, arg = line[:i], strings.TrimSpace(line[i+1:])
	}

	switch {
	case line == "":
		return false, false
	case cmd == "q":
		return true, false
	case cmd == "n":
		if !b.ctrl.NextPage() {
			fmt.Fprintln(b.out, "no hay página siguiente")
			return false, false
		}
	case cmd == "p":
		if !b.ctrl.PrevPage() {
			fmt.Fprintln(b.out, "ya estás en la primera página")
			return false, false
		}
	case strings.HasPrefix(line, "/"):
		b.ctrl.SetQuery(strings.TrimPrefix(line, "/"))
	case cmd == "s" && arg != "":
		b.ctrl.ToggleSort(arg)
	case cmd == "l":
		n, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintln(b.out, "uso: l 10|20|50")
			return false, false
		}
		b.ctrl.SetLimit(n)
	case cmd == "f" && strings.Contains(arg, "="):
		kv := strings.SplitN(arg, "=", 2)
		b.ctrl.SetFilter(kv[0], kv[1])
	case cmd == "r":
		b.ctrl.Refresh()
	case cmd == "?" || cmd == "h":
		fmt.Fprintln(b.out, browserHelp)
		return false, false
	default:
		fmt.Fprintf(b.out, "comando desconocido %q, ? para ayuda\n", line)
		return false, false
	}
	return false, true
}

func (b *Browser) render(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	s, err := b.ctrl.Await(waitCtx)
	if err != nil {
		return err
	}
	b.table.Render(b.columns, s.Result, s.Status, s.Params.Sort)
	return nil
}
