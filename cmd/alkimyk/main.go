package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "github.com/alkimyk/cmr/internal/config"
	"github.com/alkimyk/cmr/pkg/logger"
)

// ---------------- Main ----------------
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "alkimyk",
		Short:        "Consola y catálogo del CMR Alkimyk",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "archivo de configuración (yaml, json, env)")

	root.AddCommand(
		newServeCmd(opts),
		newSearchCmd(opts),
		newBrowseCmd(opts),
	)
	return root
}

// bootstrap carga la configuración e inicializa el logger global.
func bootstrap(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(cfg.LogLevel)
	return cfg, logger.Logger(), nil
}
