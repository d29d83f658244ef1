package main

import (
	"time"

	"go.uber.org/zap"

	config "github.com/alkimyk/cmr/internal/config"
	consoleApp "github.com/alkimyk/cmr/internal/console/application"
	consoleDomain "github.com/alkimyk/cmr/internal/console/domain"
	"github.com/alkimyk/cmr/internal/console/infra/outbound/backend"
)

// Pausa entre reintentos de una misma candidata.
const resolverRetryDelay = 200 * time.Millisecond

// newResolver arma el resolver de la consola contra BACKEND_URL.
// Las opciones extra (caché, métricas) solo las agrega serve.
func newResolver(cfg *config.Config, log *zap.Logger, opts ...consoleApp.Option) (*consoleApp.Resolver, error) {
	routes, err := consoleDomain.LoadRoutes(cfg.RoutesFile)
	if err != nil {
		return nil, err
	}
	fields, err := consoleDomain.LoadFieldMap(cfg.FieldMapFile)
	if err != nil {
		return nil, err
	}

	transport, err := backend.NewHTTPTransport(cfg.BackendURL, cfg.ResolverTimeout, backend.WithRateLimit(cfg.ResolverRPS, 1))
	if err != nil {
		return nil, err
	}

	opts = append([]consoleApp.Option{consoleApp.WithRetries(cfg.ResolverRetries+1, resolverRetryDelay)}, opts...)
	return consoleApp.NewResolver(transport, routes, consoleDomain.NewNormalizer(fields), log, opts...), nil
}
