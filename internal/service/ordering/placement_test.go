package ordering

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t, nil, product("p1", "9.99", 10), product("p2", "0.10", 5))

	order, err := f.service.PlaceOrder(context.Background(), request(line("p1", 2), line("p2", 3)))
	require.NoError(t, err)

	assert.Equal(t, "ORD-0001", order.OrderNumber)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.Equal(t, "customer-1", order.CustomerID)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, "20.28", order.TotalAmount.StringFixed(2))
	require.Len(t, order.Items, 2)
	assert.Equal(t, "19.98", order.Items[0].LineTotal.StringFixed(2))
	assert.Equal(t, "0.30", order.Items[1].LineTotal.StringFixed(2))
	assert.Equal(t, "SKU-p1", order.Items[0].Snapshot.SKU)
	assert.Empty(t, order.ValidateInvariants())

	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, stored.OrderNumber)
	assert.True(t, order.TotalAmount.Equal(stored.TotalAmount))

	assert.Equal(t, []string{"p1", "p2"}, f.catalog.fetchCalls())
	assert.Equal(t, []adjustCall{{"p1", -2}, {"p2", -3}}, f.catalog.adjustCalls())
	assert.Equal(t, 8, f.catalog.inventory("p1"))
	assert.Equal(t, 2, f.catalog.inventory("p2"))

	drifts, err := f.drifts.ListByOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	pending := f.outbox.AllPending()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.EventOrderPlaced, pending[0].EventType)
	assert.Equal(t, order.ID, pending[0].AggregateID)
}

func TestPlaceOrder_CurrencyFromFirstProduct(t *testing.T) {
	eur := product("p1", "5.00", 1)
	eur.Currency = "EUR"
	noCurrency := product("p2", "1.00", 1)
	noCurrency.Currency = ""
	f := newFixture(t, nil, eur, noCurrency)

	order, err := f.service.PlaceOrder(context.Background(), request(line("p1", 1), line("p2", 1)))
	require.NoError(t, err)
	assert.Equal(t, "EUR", order.Currency)
	assert.Equal(t, "USD", order.Items[1].Snapshot.Currency)
}

func TestPlaceOrder_Rejections(t *testing.T) {
	inactive := product("off", "1.00", 10)
	inactive.Status = domain.ProductStatusInactive

	tests := []struct {
		name      string
		req       domain.OrderRequest
		setup     func(*stubCatalog)
		reason    domain.RejectionReason
		sentinel  error
		message   string
		fetched   []string
		available int
		requested int
	}{
		{
			name:     "empty order",
			req:      request(),
			reason:   domain.RejectionEmptyOrder,
			sentinel: domain.ErrEmptyOrder,
			message:  "order must contain at least one item",
			fetched:  nil,
		},
		{
			name:     "product not found",
			req:      request(line("p1", 1), line("missing", 1)),
			reason:   domain.RejectionProductNotFound,
			sentinel: domain.ErrProductNotFound,
			message:  "product with ID missing not found",
			fetched:  []string{"p1", "missing"},
		},
		{
			name:     "product inactive",
			req:      request(line("off", 1), line("p1", 1)),
			reason:   domain.RejectionProductInactive,
			sentinel: domain.ErrProductInactive,
			message:  "product off is not active",
			fetched:  []string{"off"},
		},
		{
			name:      "insufficient inventory",
			req:       request(line("p1", 11)),
			reason:    domain.RejectionInsufficientInventory,
			sentinel:  domain.ErrInsufficientInventory,
			message:   "insufficient inventory for product p1. Available: 10, Requested: 11",
			fetched:   []string{"p1"},
			available: 10,
			requested: 11,
		},
		{
			name: "upstream unavailable",
			req:  request(line("p1", 1)),
			setup: func(c *stubCatalog) {
				c.fetchErr["p1"] = domain.ErrUpstreamUnavailable
			},
			reason:   domain.RejectionUpstreamUnavailable,
			sentinel: domain.ErrUpstreamUnavailable,
			message:  "failed to fetch product p1: product service unavailable",
			fetched:  []string{"p1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, product("p1", "1.00", 10), inactive)
			if tt.setup != nil {
				tt.setup(f.catalog)
			}

			_, err := f.service.PlaceOrder(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrOrderRejected)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.message, err.Error())

			rejected, ok := domain.AsRejection(err)
			require.True(t, ok)
			assert.Equal(t, tt.reason, rejected.Reason)
			assert.Equal(t, tt.available, rejected.Available)
			assert.Equal(t, tt.requested, rejected.Requested)

			assert.Equal(t, tt.fetched, f.catalog.fetchCalls())
			assert.Empty(t, f.catalog.adjustCalls())
			page, listErr := f.service.ListOrders(context.Background(), domain.OrderQuery{})
			require.NoError(t, listErr)
			assert.Zero(t, page.Meta.Total)
			assert.Empty(t, f.outbox.AllPending())
		})
	}
}

func TestPlaceOrder_InvalidLines(t *testing.T) {
	f := newFixture(t, nil, product("p1", "1.00", 10))

	_, err := f.service.PlaceOrder(context.Background(), request(line("p1", 0)))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.service.PlaceOrder(context.Background(), request(line("", 1)))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	assert.Empty(t, f.catalog.fetchCalls())
}

func TestPlaceOrder_PersistenceFailureLeavesInventoryUntouched(t *testing.T) {
	f := newFixture(t, &failingOrders{createErr: errBoom}, product("p1", "1.00", 10))

	_, err := f.service.PlaceOrder(context.Background(), request(line("p1", 2)))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOrderPersistenceFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, domain.ErrOrderRejected)

	assert.Empty(t, f.catalog.adjustCalls())
	assert.Equal(t, 10, f.catalog.inventory("p1"))
	assert.Empty(t, f.outbox.AllPending())
}

func TestPlaceOrder_AdjustmentFailureRecordsDrift(t *testing.T) {
	f := newFixture(t, nil, product("p1", "2.50", 10), product("p2", "1.00", 10), product("p3", "1.00", 10))
	f.catalog.adjustErr["p2"] = domain.ErrUpstreamUnavailable

	order, err := f.service.PlaceOrder(context.Background(), request(line("p1", 1), line("p2", 4), line("p3", 2)))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)

	// Ошибка на второй строке не останавливает списание третьей.
	assert.Equal(t, []adjustCall{{"p1", -1}, {"p2", -4}, {"p3", -2}}, f.catalog.adjustCalls())
	assert.Equal(t, 9, f.catalog.inventory("p1"))
	assert.Equal(t, 10, f.catalog.inventory("p2"))
	assert.Equal(t, 8, f.catalog.inventory("p3"))

	drifts, err := f.service.Drift(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "p2", drifts[0].ProductID)
	assert.Equal(t, -4, drifts[0].Delta)
	assert.Equal(t, domain.DriftStatusPending, drifts[0].Status)
	assert.Equal(t, order.OrderNumber, drifts[0].OrderNumber)
	assert.Contains(t, drifts[0].LastError, "product service unavailable")

	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, stored.Status)

	pending := f.outbox.AllPending()
	require.Len(t, pending, 2)
	assert.Equal(t, domain.EventOrderPlaced, pending[0].EventType)
	assert.Equal(t, domain.EventInventoryDriftRecorded, pending[1].EventType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(pending[1].Payload, &payload))
	assert.Equal(t, "p2", payload["product_id"])
	assert.Equal(t, float64(-4), payload["delta"])
	assert.Equal(t, drifts[0].ID, payload["drift_id"])

	timeline, err := f.service.Timeline(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, domain.EventInventoryDriftRecorded, timeline[1].Type)
	assert.Contains(t, timeline[1].Reason, "product service unavailable")
}

func TestPlaceOrder_NoDeduplication(t *testing.T) {
	f := newFixture(t, nil, product("p1", "1.00", 10))
	req := request(line("p1", 1))

	first, err := f.service.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	second, err := f.service.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, 8, f.catalog.inventory("p1"))
}

func TestPlaceOrder_DecrementsSurviveCallerCancellation(t *testing.T) {
	f := newFixture(t, nil, product("p1", "1.00", 10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Чтение товара stub не проверяет отмену; списание проверяет и всё равно должно пройти.
	order, err := f.service.PlaceOrder(ctx, request(line("p1", 3)))
	require.NoError(t, err)
	assert.Equal(t, 7, f.catalog.inventory("p1"))

	drifts, err := f.service.Drift(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestPlaceOrder_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPlacementMetricsWithRegisterer(reg)
	f := newFixture(t, nil, product("p1", "1.00", 1))
	f.service.metrics = m
	f.catalog.adjustErr["p1"] = domain.ErrUpstreamUnavailable

	_, err := f.service.PlaceOrder(context.Background(), request(line("p1", 1)))
	require.NoError(t, err)
	_, err = f.service.PlaceOrder(context.Background(), request(line("p1", 2)))
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if metric.GetCounter() != nil {
				values[family.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["storefront_orders_placed_total"])
	assert.Equal(t, 1.0, values["storefront_orders_rejected_total"])
	assert.Equal(t, 1.0, values["storefront_inventory_drift_recorded_total"])
}
