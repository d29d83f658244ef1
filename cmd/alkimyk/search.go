package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	consoleDomain "github.com/alkimyk/cmr/internal/console/domain"
	"github.com/alkimyk/cmr/internal/console/infra/inbound/cli"
	"github.com/alkimyk/cmr/shared/platform/query"
)

type searchOptions struct {
	query   string
	page    int
	limit   int
	sort    string
	filters []string
	lookup  bool
	asJSON  bool
}

func (o *searchOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.query, "q", "", "texto de búsqueda")
	cmd.Flags().IntVar(&o.page, "page", 1, "página (desde 1)")
	cmd.Flags().IntVar(&o.limit, "limit", query.DefaultLimit, "tamaño de página: 10, 20 o 50")
	cmd.Flags().StringVar(&o.sort, "sort", "", "campo de orden; prefijo - para descendente")
	cmd.Flags().StringArrayVar(&o.filters, "filter", nil, "filtro clave=valor (repetible)")
	cmd.Flags().BoolVar(&o.lookup, "lookup", false, "búsqueda de autocompletado")
}

func (o *searchOptions) params() (consoleDomain.SearchParams, error) {
	p := consoleDomain.SearchParams{
		Page:    o.page,
		Limit:   o.limit,
		Query:   o.query,
		Sort:    consoleDomain.ParseSort(o.sort),
		Lookup:  o.lookup,
		Filters: map[string]string{},
	}
	for _, f := range o.filters {
		k, v, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return p, fmt.Errorf("invalid filter %q, expected key=value", f)
		}
		p.Filters[strings.TrimSpace(k)] = v
	}
	return p.Normalized(), nil
}

// searchOutput es la forma de --json.
type searchOutput struct {
	Status consoleDomain.OutcomeStatus `json:"status"`
	Items  []consoleDomain.Record      `json:"items"`
	Page   int                         `json:"page"`
	Limit  int                         `json:"limit"`
	Total  *int                        `json:"total,omitempty"`
	Pages  *int                        `json:"pages,omitempty"`
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search <kind>",
		Short: "Busca una página de registros y la imprime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := consoleDomain.ParseKind(args[0])
			if err != nil {
				return err
			}
			params, err := opts.params()
			if err != nil {
				return err
			}

			cfg, log, err := bootstrap(root)
			if err != nil {
				return err
			}
			defer log.Sync()

			resolver, err := newResolver(cfg, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ResolverTimeout*4)
			defer cancel()
			out := resolver.SearchOutcome(ctx, kind, params)

			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(searchOutput{
					Status: out.Status,
					Items:  out.Result.Items,
					Page:   out.Result.Page,
					Limit:  out.Result.Limit,
					Total:  out.Result.Total,
					Pages:  out.Result.Pages,
				})
			}
			cli.NewTable(cmd.OutOrStdout()).Render(resolver.Columns(kind), out.Result, out.Status, params.Sort)
			return nil
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "imprime JSON en vez de tabla")
	return cmd
}
