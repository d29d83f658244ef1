package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	consoleApp "github.com/alkimyk/cmr/internal/console/application"
	consoleDomain "github.com/alkimyk/cmr/internal/console/domain"
	"github.com/alkimyk/cmr/internal/console/infra/inbound/cli"
)

func newBrowseCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "browse <kind>",
		Short: "Paginador interactivo sobre un tipo de registro",
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			ctrl := consoleApp.NewListController(kind, resolver,
				consoleApp.WithDebounce(cfg.Debounce),
				consoleApp.WithInitialParams(params),
				consoleApp.WithControllerLogger(log),
			)
			defer ctrl.Close()

			return cli.NewBrowser(ctrl, resolver.Columns(kind), cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
		},
	}
	opts.addFlags(cmd)
	return cmd
}
