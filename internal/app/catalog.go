package app

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	catalogsvc "github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const catalogServiceName = "catalog-service"

// RunCatalog запускает сервис каталога: HTTP API товаров и служебный сервер.
func RunCatalog(ctx context.Context, cfg CatalogConfig) error {
	logger := log.WithField("component", "catalog-app")

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    catalogServiceName,
		ServiceVersion: version.GetVersion(),
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
	}, logger.WithField("layer", "tracing"))
	if err != nil {
		return err
	}
	defer flushTracing(shutdownTracing, cfg.ShutdownTimeout, logger)

	store, err := initCatalogStorage(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer closeStorage(store.closeFn, logger)

	reg := newRegistry()
	healthHandler := health.NewHandler(catalogServiceName, version.GetVersion())
	healthHandler.RegisterChecker("storage", store.checker)

	products := catalogsvc.NewService(store.products, catalogsvc.WithLogger(logger.WithField("layer", "catalog")))
	apiHandler := metrics.NewHTTPMetricsWithRegisterer(reg, "catalog").
		Instrument(httpapi.NewProductRouter(products, logger.WithField("layer", "http")))

	listeners, err := listenAll(cfg.HTTPAddr, cfg.MetricsAddr)
	if err != nil {
		return err
	}
	apiSrv := newHTTPServer(apiHandler)
	opsSrv := newHTTPServer(newOpsHandler(reg, healthHandler))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveHTTP(gctx, apiSrv, listeners[0], cfg.ShutdownTimeout, logger.WithField("server", "api"))
	})
	g.Go(func() error {
		return serveHTTP(gctx, opsSrv, listeners[1], cfg.ShutdownTimeout, logger.WithField("server", "ops"))
	})

	err = g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Info("catalog service stopped")
		return ctxErr
	}
	return err
}
