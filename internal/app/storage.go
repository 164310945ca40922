package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// orderStorage: репозитории сервиса заказов.
type orderStorage struct {
	orders   domain.OrderRepository
	drifts   domain.DriftRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	checker  health.Checker
	closeFn  func() error
}

// catalogStorage: репозиторий сервиса каталога.
type catalogStorage struct {
	products domain.ProductRepository
	checker  health.Checker
	closeFn  func() error
}

func initOrderStorage(ctx context.Context, cfg Config, logger *log.Entry) (*orderStorage, error) {
	switch strings.ToLower(cfg.StorageDriver) {
	case StorageDriverMemory:
		logger.Info("order storage: memory")
		return &orderStorage{
			orders:   memory.NewOrderRepository(),
			drifts:   memory.NewDriftRepository(),
			outbox:   memory.NewOutboxRepository(),
			timeline: memory.NewTimelineRepository(),
			checker:  health.NewCritical("storage", func(context.Context) error { return nil }),
		}, nil
	case StorageDriverPostgres:
		store, err := openPostgres(ctx, cfg.PostgresDSN, cfg.PostgresAutoMigrate, postgres.MigrationsOrders, logger)
		if err != nil {
			return nil, err
		}
		return &orderStorage{
			orders:   postgres.NewOrderRepository(store),
			drifts:   postgres.NewDriftRepository(store),
			outbox:   postgres.NewOutboxRepository(store),
			timeline: postgres.NewTimelineRepository(store),
			checker:  health.NewCritical("postgres", store.Ping),
			closeFn:  store.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}

func initCatalogStorage(ctx context.Context, cfg CatalogConfig, logger *log.Entry) (*catalogStorage, error) {
	switch strings.ToLower(cfg.StorageDriver) {
	case StorageDriverMemory:
		logger.Info("catalog storage: memory")
		return &catalogStorage{
			products: memory.NewProductRepository(),
			checker:  health.NewCritical("storage", func(context.Context) error { return nil }),
		}, nil
	case StorageDriverPostgres:
		store, err := openPostgres(ctx, cfg.PostgresDSN, cfg.PostgresAutoMigrate, postgres.MigrationsCatalog, logger)
		if err != nil {
			return nil, err
		}
		return &catalogStorage{
			products: postgres.NewProductRepository(store),
			checker:  health.NewCritical("postgres", store.Ping),
			closeFn:  store.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}

func openPostgres(ctx context.Context, dsn string, migrate bool, set postgres.MigrationSet, logger *log.Entry) (*postgres.Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required for %s storage", set)
	}
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := store.EnsureSchema(ctx, set); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply %s migrations: %w", set, err)
		}
		logger.WithField("migrations", string(set)).Info("postgres schema is up to date")
	}
	return store, nil
}

func closeStorage(closeFn func() error, logger *log.Entry) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
