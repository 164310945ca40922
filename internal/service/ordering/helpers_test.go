package ordering

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type adjustCall struct {
	ProductID string
	Delta     int
}

// stubCatalog хранит товары в памяти и записывает вызовы.
type stubCatalog struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	fetchErr  map[string]error
	adjustErr map[string]error
	fetched   []string
	adjusted  []adjustCall
}

func newStubCatalog(products ...domain.Product) *stubCatalog {
	c := &stubCatalog{
		products:  make(map[string]domain.Product),
		fetchErr:  make(map[string]error),
		adjustErr: make(map[string]error),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *stubCatalog) FetchProduct(_ context.Context, productID string) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetched = append(c.fetched, productID)
	if err := c.fetchErr[productID]; err != nil {
		return domain.Product{}, err
	}
	p, ok := c.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	return p, nil
}

func (c *stubCatalog) AdjustInventory(ctx context.Context, productID string, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adjusted = append(c.adjusted, adjustCall{ProductID: productID, Delta: delta})
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.adjustErr[productID]; err != nil {
		return err
	}
	p := c.products[productID]
	p.InventoryCount += delta
	c.products[productID] = p
	return nil
}

func (c *stubCatalog) fetchCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.fetched...)
}

func (c *stubCatalog) adjustCalls() []adjustCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]adjustCall(nil), c.adjusted...)
}

func (c *stubCatalog) inventory(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[productID].InventoryCount
}

type sequenceNumbers struct {
	mu sync.Mutex
	n  int
}

func (g *sequenceNumbers) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("ORD-%04d", g.n)
}

// failingOrders отказывает в Create, остальные операции делегирует памяти.
type failingOrders struct {
	domain.OrderRepository
	createErr error
}

func (f *failingOrders) Create(context.Context, domain.Order) error {
	return f.createErr
}

// conflictingOrders возвращает конфликт версий на первых conflicts вызовах Save.
type conflictingOrders struct {
	domain.OrderRepository
	mu        sync.Mutex
	conflicts int
	saves     int
}

func (c *conflictingOrders) Save(ctx context.Context, order domain.Order) error {
	c.mu.Lock()
	c.saves++
	fail := c.saves <= c.conflicts
	c.mu.Unlock()
	if fail {
		return domain.ErrOrderVersionConflict
	}
	return c.OrderRepository.Save(ctx, order)
}

type fixture struct {
	service  *Service
	catalog  *stubCatalog
	orders   domain.OrderRepository
	drifts   domain.DriftRepository
	outbox   *memory.OutboxRepository
	timeline domain.TimelineRepository
}

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, orders domain.OrderRepository, products ...domain.Product) fixture {
	t.Helper()
	if orders == nil {
		orders = memory.NewOrderRepository()
	}
	f := fixture{
		catalog:  newStubCatalog(products...),
		orders:   orders,
		drifts:   memory.NewDriftRepository(),
		outbox:   memory.NewOutboxRepository(),
		timeline: memory.NewTimelineRepository(),
	}
	logger := log.New()
	logger.SetOutput(io.Discard)

	var seq int
	var seqMu sync.Mutex
	f.service = NewService(orders, f.catalog, &sequenceNumbers{},
		WithDriftRepository(f.drifts),
		WithOutbox(f.outbox),
		WithTimeline(f.timeline),
		WithLogger(logger.WithField("component", "ordering-test")),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	return f
}

func product(id, price string, inventory int) domain.Product {
	return domain.Product{
		ID:             id,
		SKU:            "SKU-" + id,
		Name:           "Product " + id,
		Price:          decimal.RequireFromString(price),
		Currency:       "USD",
		InventoryCount: inventory,
		Status:         domain.ProductStatusActive,
	}
}

func request(items ...domain.OrderRequestItem) domain.OrderRequest {
	return domain.OrderRequest{CustomerID: "customer-1", Items: items}
}

func line(productID string, qty int) domain.OrderRequestItem {
	return domain.OrderRequestItem{ProductID: productID, Quantity: qty}
}

var errBoom = errors.New("boom")
