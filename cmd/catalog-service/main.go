package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

func run(ctx context.Context) error {
	cfg, err := app.LoadCatalogConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := app.ConfigureLogging(cfg.Logging); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"version":      version.String(),
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем CatalogService")

	if err := app.RunCatalog(ctx, cfg); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("CatalogService остановлен")
	return nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.WithError(err).Fatal("сервис каталога завершился с ошибкой")
	}
}
