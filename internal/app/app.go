// Package app собирает процессы сервиса заказов и сервиса каталога.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	catalogclient "github.com/vladislavdragonenkov/storefront/internal/client/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/ordernumber"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/ordering"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/service/reconcile"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	orderServiceName  = "order-service"
	kafkaCheckTimeout = time.Second
)

// Run запускает сервис заказов и блокируется до отмены ctx или первой фатальной ошибки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    orderServiceName,
		ServiceVersion: version.GetVersion(),
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
	}, logger.WithField("layer", "tracing"))
	if err != nil {
		return err
	}
	defer flushTracing(shutdownTracing, cfg.ShutdownTimeout, logger)

	store, err := initOrderStorage(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer closeStorage(store.closeFn, logger)

	catalog, err := catalogclient.New(catalogclient.Config{
		BaseURL: cfg.ProductServiceURL,
		Timeout: cfg.ProductServiceTimeout(),
	}, catalogclient.WithLogger(logger.WithField("layer", "catalog-client")))
	if err != nil {
		return err
	}

	reg := newRegistry()
	healthHandler := health.NewHandler(orderServiceName, version.GetVersion())
	healthHandler.RegisterChecker("storage", store.checker)

	serviceOpts := []ordering.Option{
		ordering.WithDriftRepository(store.drifts),
		ordering.WithTimeline(store.timeline),
		ordering.WithLogger(logger.WithField("layer", "ordering")),
		ordering.WithMetrics(metrics.NewPlacementMetricsWithRegisterer(reg)),
		ordering.WithTracer(tracing.Tracer("storefront/ordering")),
	}

	// Kafka опциональна: без брокеров события в outbox не пишутся.
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.KafkaBrokers, ClientID: cfg.KafkaClientID})
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
			serviceOpts = append(serviceOpts, ordering.WithOutbox(store.outbox))
			brokers := cfg.KafkaBrokers
			healthHandler.RegisterChecker("kafka", health.NewOptional("kafka", func(context.Context) error {
				return kafka.CheckBrokers(brokers, kafkaCheckTimeout)
			}))
		}
	}
	defer closeProducer(producer, logger)

	orders := ordering.NewService(store.orders, catalog, ordernumber.New(), serviceOpts...)

	grpcServer, grpcHealth := newGRPCServer(orders, reg, logger.WithField("layer", "grpc"))
	apiHandler := metrics.NewHTTPMetricsWithRegisterer(reg, "order").
		Instrument(httpapi.NewOrderRouter(orders, logger.WithField("layer", "http")))

	listeners, err := listenAll(cfg.GRPCAddr, cfg.HTTPAddr, cfg.MetricsAddr)
	if err != nil {
		return err
	}
	grpcLis, apiLis, opsLis := listeners[0], listeners[1], listeners[2]

	apiSrv := newHTTPServer(apiHandler)
	opsSrv := newHTTPServer(newOpsHandler(reg, healthHandler))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", grpcLis.Addr().String()).Info("grpc server listening")
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
		return nil
	})
	g.Go(func() error {
		return serveHTTP(gctx, apiSrv, apiLis, cfg.ShutdownTimeout, logger.WithField("server", "api"))
	})
	g.Go(func() error {
		return serveHTTP(gctx, opsSrv, opsLis, cfg.ShutdownTimeout, logger.WithField("server", "ops"))
	})

	if producer != nil {
		worker := outbox.NewWorker(store.outbox, kafka.NewOutboxPublisher(producer, cfg.OrderTopic),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.DLQTopic)),
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithMetrics(metrics.NewOutboxMetricsWithRegisterer(reg)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}

	if cfg.ReconcilerEnabled {
		reconcileOpts := []reconcile.Option{
			reconcile.WithLogger(logger.WithField("layer", "reconcile")),
			reconcile.WithTimeline(store.timeline),
			reconcile.WithMetrics(metrics.NewDriftMetricsWithRegisterer(reg)),
			reconcile.WithPollInterval(cfg.ReconcileInterval),
			reconcile.WithMaxAttempts(cfg.ReconcileMaxAttempts),
			reconcile.WithRetryBaseDelay(cfg.ReconcileRetryBackoff),
		}
		if producer != nil {
			reconcileOpts = append(reconcileOpts, reconcile.WithOutbox(store.outbox))
		}
		reconciler := reconcile.NewWorker(store.drifts, catalog, reconcileOpts...)
		g.Go(func() error {
			reconciler.Run(gctx)
			return nil
		})
	}

	err = g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Info("order service stopped")
		return ctxErr
	}
	return err
}

// newRegistry создаёт отдельный реестр на каждый запуск.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newGRPCServer(orders grpcsvc.Orders, reg prometheus.Registerer, logger *log.Entry) (*grpc.Server, *grpchealth.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := reg.Register(grpcMetrics); err != nil {
		logger.WithError(err).Warn("failed to register grpc metrics")
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		grpcsvc.LoggingInterceptor(logger),
	))
	grpcsvc.RegisterOrderServiceServer(server, grpcsvc.NewOrderService(orders, logger))
	grpcMetrics.InitializeMetrics(server)
	reflection.Register(server)

	healthServer := grpchealth.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer
}

// stopGRPC пытается остановить сервер мягко и обрывает соединения по таймауту.
func stopGRPC(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop timed out, forcing grpc stop")
		server.Stop()
	}
}

// listenAll открывает все сокеты до старта горутин; при ошибке уже открытые закрываются.
func listenAll(addrs ...string) ([]net.Listener, error) {
	listeners := make([]net.Listener, 0, len(addrs))
	for _, addr := range addrs {
		lis, err := listen(addr)
		if err != nil {
			for _, opened := range listeners {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("listen %s: %w", addr, err)
		}
		listeners = append(listeners, lis)
	}
	return listeners, nil
}

func closeProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}

func flushTracing(shutdown tracing.ShutdownFunc, timeout time.Duration, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.WithError(err).Warn("failed to flush traces")
	}
}
