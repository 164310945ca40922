package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	catalogclient "github.com/vladislavdragonenkov/storefront/internal/client/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/reconcile"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// passOptions: параметры одного прохода сверки.
type passOptions struct {
	batchSize   int
	maxAttempts int
	timeline    domain.TimelineRepository
	logger      *log.Entry
}

// reconcileOnce делает один проход без пауз между попытками: оператор запускает его вручную.
func reconcileOnce(ctx context.Context, drifts domain.DriftRepository, catalog domain.CatalogClient, opts passOptions) (reconcile.Summary, error) {
	workerOpts := []reconcile.Option{
		reconcile.WithLogger(opts.logger),
		reconcile.WithBatchSize(opts.batchSize),
		reconcile.WithMaxAttempts(opts.maxAttempts),
		reconcile.WithRetryBaseDelay(0),
	}
	if opts.timeline != nil {
		workerOpts = append(workerOpts, reconcile.WithTimeline(opts.timeline))
	}
	return reconcile.NewWorker(drifts, catalog, workerOpts...).ProcessOnce(ctx)
}

func printSummary(out io.Writer, s reconcile.Summary) error {
	_, err := fmt.Fprintf(out, "drift reconcile: resolved=%d retrying=%d abandoned=%d\n",
		s.Resolved, s.Retrying, s.Abandoned)
	return err
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "drift-reconcile",
		Usage:  "повторяет неприменённые списания инвентаря одним проходом",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dsn", EnvVars: []string{"ORDER_POSTGRES_DSN"}, Usage: "PostgreSQL DSN сервиса заказов"},
			&cli.StringFlag{Name: "product-service-url", EnvVars: []string{"PRODUCT_SERVICE_URL"}, Value: catalogclient.DefaultBaseURL},
			&cli.DurationFlag{Name: "product-service-timeout", Value: catalogclient.DefaultTimeout},
			&cli.IntFlag{Name: "batch-size", Value: 100},
			&cli.IntFlag{Name: "max-attempts", Value: 5},
			&cli.DurationFlag{Name: "timeout", Value: time.Minute},
		},
		Action: func(c *cli.Context) error {
			logger := log.WithField("component", "drift-reconcile")
			dsn := strings.TrimSpace(c.String("dsn"))
			if dsn == "" {
				return errors.New("ORDER_POSTGRES_DSN (or --dsn) is required")
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			store, err := postgres.Open(ctx, dsn)
			if err != nil {
				return fmt.Errorf("open postgres store: %w", err)
			}
			defer store.Close()

			catalog, err := catalogclient.New(catalogclient.Config{
				BaseURL: c.String("product-service-url"),
				Timeout: c.Duration("product-service-timeout"),
			}, catalogclient.WithLogger(logger))
			if err != nil {
				return err
			}

			summary, err := reconcileOnce(ctx, postgres.NewDriftRepository(store), catalog, passOptions{
				batchSize:   c.Int("batch-size"),
				maxAttempts: c.Int("max-attempts"),
				timeline:    postgres.NewTimelineRepository(store),
				logger:      logger,
			})
			if err != nil {
				return err
			}
			return printSummary(out, summary)
		},
	}
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.WithError(err).Fatal("drift reconcile failed")
	}
}
