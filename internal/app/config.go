package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

const (
	// StorageDriverMemory хранит данные в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит данные в PostgreSQL.
	StorageDriverPostgres = "postgres"
)

// LoggingConfig: общие настройки логирования обоих сервисов.
type LoggingConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

// TracingConfig: настройки экспорта трасс.
type TracingConfig struct {
	Endpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
}

// Config описывает запуск сервиса заказов.
type Config struct {
	GRPCAddr    string `envconfig:"ORDER_GRPC_ADDR" default:":50051"`
	HTTPAddr    string `envconfig:"ORDER_HTTP_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"ORDER_METRICS_ADDR" default:":9090"`

	StorageDriver       string `envconfig:"ORDER_STORAGE_DRIVER" default:"memory"`
	PostgresDSN         string `envconfig:"ORDER_POSTGRES_DSN"`
	PostgresAutoMigrate bool   `envconfig:"ORDER_POSTGRES_AUTO_MIGRATE" default:"true"`

	ProductServiceURL string `envconfig:"PRODUCT_SERVICE_URL" default:"http://localhost:3000"`
	// ProductServiceTimeoutMs ограничивает каждый вызов каталога, в миллисекундах.
	ProductServiceTimeoutMs int `envconfig:"PRODUCT_SERVICE_TIMEOUT" default:"5000"`

	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`
	KafkaClientID string   `envconfig:"KAFKA_CLIENT_ID" default:"order-service"`
	OrderTopic    string   `envconfig:"ORDER_EVENTS_TOPIC" default:"storefront.order.events"`
	DLQTopic      string   `envconfig:"ORDER_DLQ_TOPIC" default:"storefront.dlq"`

	OutboxPollInterval time.Duration `envconfig:"ORDER_OUTBOX_POLL_INTERVAL" default:"1s"`
	OutboxBatchSize    int           `envconfig:"ORDER_OUTBOX_BATCH_SIZE" default:"100"`
	OutboxMaxAttempts  int           `envconfig:"ORDER_OUTBOX_MAX_ATTEMPTS" default:"3"`
	OutboxRetryDelay   time.Duration `envconfig:"ORDER_OUTBOX_RETRY_DELAY" default:"50ms"`

	ReconcilerEnabled     bool          `envconfig:"ORDER_RECONCILER_ENABLED" default:"true"`
	ReconcileInterval     time.Duration `envconfig:"ORDER_RECONCILE_INTERVAL" default:"5s"`
	ReconcileMaxAttempts  int           `envconfig:"ORDER_RECONCILE_MAX_ATTEMPTS" default:"5"`
	ReconcileRetryBackoff time.Duration `envconfig:"ORDER_RECONCILE_RETRY_DELAY" default:"1s"`

	ShutdownTimeout time.Duration `envconfig:"ORDER_SHUTDOWN_TIMEOUT" default:"5s"`

	Logging LoggingConfig
	Tracing TracingConfig
}

// DefaultConfig возвращает значения по умолчанию без чтения окружения.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                ":50051",
		HTTPAddr:                ":8080",
		MetricsAddr:             ":9090",
		StorageDriver:           StorageDriverMemory,
		PostgresAutoMigrate:     true,
		ProductServiceURL:       "http://localhost:3000",
		ProductServiceTimeoutMs: 5000,
		KafkaClientID:           "order-service",
		OrderTopic:              "storefront.order.events",
		DLQTopic:                "storefront.dlq",
		OutboxPollInterval:      time.Second,
		OutboxBatchSize:         100,
		OutboxMaxAttempts:       3,
		OutboxRetryDelay:        50 * time.Millisecond,
		ReconcilerEnabled:       true,
		ReconcileInterval:       5 * time.Second,
		ReconcileMaxAttempts:    5,
		ReconcileRetryBackoff:   time.Second,
		ShutdownTimeout:         5 * time.Second,
		Logging:                 LoggingConfig{Level: "info", Format: "text"},
		Tracing:                 TracingConfig{Insecure: true},
	}
}

// ProductServiceTimeout возвращает таймаут вызова каталога.
func (c Config) ProductServiceTimeout() time.Duration {
	return time.Duration(c.ProductServiceTimeoutMs) * time.Millisecond
}

// CatalogConfig описывает запуск сервиса каталога.
type CatalogConfig struct {
	HTTPAddr    string `envconfig:"CATALOG_HTTP_ADDR" default:":3000"`
	MetricsAddr string `envconfig:"CATALOG_METRICS_ADDR" default:":9091"`

	StorageDriver       string `envconfig:"CATALOG_STORAGE_DRIVER" default:"memory"`
	PostgresDSN         string `envconfig:"CATALOG_POSTGRES_DSN"`
	PostgresAutoMigrate bool   `envconfig:"CATALOG_POSTGRES_AUTO_MIGRATE" default:"true"`

	ShutdownTimeout time.Duration `envconfig:"CATALOG_SHUTDOWN_TIMEOUT" default:"5s"`

	Logging LoggingConfig
	Tracing TracingConfig
}

// DefaultCatalogConfig возвращает значения по умолчанию без чтения окружения.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		HTTPAddr:            ":3000",
		MetricsAddr:         ":9091",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		ShutdownTimeout:     5 * time.Second,
		Logging:             LoggingConfig{Level: "info", Format: "text"},
		Tracing:             TracingConfig{Insecure: true},
	}
}

// LoadConfig читает необязательный .env и переменные окружения.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := load(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.ProductServiceTimeoutMs <= 0 {
		return Config{}, fmt.Errorf("PRODUCT_SERVICE_TIMEOUT must be positive, got %d", cfg.ProductServiceTimeoutMs)
	}
	return cfg, validateStorage(cfg.StorageDriver, cfg.PostgresDSN, "ORDER_POSTGRES_DSN")
}

// LoadCatalogConfig читает необязательный .env и переменные окружения каталога.
func LoadCatalogConfig() (CatalogConfig, error) {
	var cfg CatalogConfig
	if err := load(&cfg); err != nil {
		return CatalogConfig{}, err
	}
	return cfg, validateStorage(cfg.StorageDriver, cfg.PostgresDSN, "CATALOG_POSTGRES_DSN")
}

func load(target any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := envconfig.Process("", target); err != nil {
		return fmt.Errorf("process env config: %w", err)
	}
	return nil
}

func validateStorage(driver, dsn, dsnVar string) error {
	switch strings.ToLower(driver) {
	case StorageDriverMemory:
		return nil
	case StorageDriverPostgres:
		if strings.TrimSpace(dsn) == "" {
			return fmt.Errorf("%s is required for postgres storage", dsnVar)
		}
		return nil
	}
	return fmt.Errorf("unsupported storage driver %q", driver)
}

// ConfigureLogging настраивает глобальный logrus: text с полным временем или json.
func ConfigureLogging(cfg LoggingConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unsupported log format %q", cfg.Format)
	}
	log.SetLevel(level)
	return nil
}
