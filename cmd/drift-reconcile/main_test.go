package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/reconcile"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type scriptedCatalog struct {
	errs     map[string]error
	adjusted map[string]int
}

func (c *scriptedCatalog) FetchProduct(context.Context, string) (domain.Product, error) {
	return domain.Product{}, domain.ErrProductNotFound
}

func (c *scriptedCatalog) AdjustInventory(_ context.Context, productID string, delta int) error {
	if err := c.errs[productID]; err != nil {
		return err
	}
	c.adjusted[productID] += delta
	return nil
}

func TestReconcileOnce(t *testing.T) {
	ctx := context.Background()
	drifts := memory.NewDriftRepository()
	timeline := memory.NewTimelineRepository()
	for _, productID := range []string{"p-ok", "p-rejected", "p-down"} {
		_, err := drifts.Record(ctx, domain.InventoryDrift{
			OrderID:     "order-1",
			OrderNumber: "ORD-TEST",
			ProductID:   productID,
			Delta:       -2,
		})
		require.NoError(t, err)
	}

	catalog := &scriptedCatalog{
		errs: map[string]error{
			"p-rejected": fmt.Errorf("%w: would go negative", domain.ErrInventoryRejected),
			"p-down":     domain.ErrUpstreamUnavailable,
		},
		adjusted: map[string]int{},
	}
	logger := log.New()
	logger.SetOutput(io.Discard)

	summary, err := reconcileOnce(ctx, drifts, catalog, passOptions{
		batchSize:   10,
		maxAttempts: 5,
		timeline:    timeline,
		logger:      log.NewEntry(logger),
	})
	require.NoError(t, err)

	assert.Equal(t, reconcile.Summary{Resolved: 1, Retrying: 1, Abandoned: 1}, summary)
	assert.Equal(t, -2, catalog.adjusted["p-ok"])

	pending, err := drifts.PullPending(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "p-down", pending[0].ProductID)
	assert.Equal(t, 1, pending[0].Attempts)
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printSummary(&out, reconcile.Summary{Resolved: 2, Abandoned: 1}))
	assert.Equal(t, "drift reconcile: resolved=2 retrying=0 abandoned=1\n", out.String())
}

func TestCLI_RequiresDSN(t *testing.T) {
	t.Setenv("ORDER_POSTGRES_DSN", "")

	var out bytes.Buffer
	err := newApp(&out).Run([]string{"drift-reconcile"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORDER_POSTGRES_DSN")
}
