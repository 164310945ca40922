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

// startupFields: поля стартовой строки лога.
func startupFields(cfg app.Config) log.Fields {
	return log.Fields{
		"version":         version.String(),
		"grpc_addr":       cfg.GRPCAddr,
		"http_addr":       cfg.HTTPAddr,
		"metrics_addr":    cfg.MetricsAddr,
		"storage":         cfg.StorageDriver,
		"product_service": cfg.ProductServiceURL,
		"kafka_enabled":   len(cfg.KafkaBrokers) > 0,
	}
}

// run читает конфигурацию и работает до отмены ctx.
func run(ctx context.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := app.ConfigureLogging(cfg.Logging); err != nil {
		return err
	}

	log.WithFields(startupFields(cfg)).Info("запускаем OrderService")
	if err := app.Run(ctx, cfg); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("OrderService остановлен")
	return nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}
}
