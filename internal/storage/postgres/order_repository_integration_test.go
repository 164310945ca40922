package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func sampleOrder(number, customerID string, createdAt time.Time) domain.Order {
	product := domain.Product{
		ID:       "product-" + number,
		SKU:      "SKU-" + number,
		Name:     "Widget",
		Price:    decimal.RequireFromString("9.99"),
		Currency: "USD",
	}
	lines := []domain.OrderLine{
		domain.NewOrderLine(uuid.NewString(), product, 2, createdAt),
		domain.NewOrderLine(uuid.NewString(), product, 1, createdAt),
	}
	return domain.Order{
		ID:          uuid.NewString(),
		OrderNumber: number,
		CustomerID:  customerID,
		Status:      domain.OrderStatusCreated,
		Currency:    "USD",
		TotalAmount: domain.SumLines(lines),
		Items:       lines,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestOrderRepository_PostgresCreateGetListAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("ORD-A", "customer-1", now.Add(-2*time.Minute))
	order2 := sampleOrder("ORD-B", "", now.Add(-time.Minute))

	if err := repo.Create(ctx, order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(ctx, order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(ctx, order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.OrderNumber != order1.OrderNumber || got.CustomerID != order1.CustomerID || got.Status != order1.Status {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("29.97")) {
		t.Fatalf("unexpected total: %s", got.TotalAmount)
	}
	if len(got.Items) != 2 || got.Items[0].Quantity != 2 || got.Items[0].Snapshot.SKU != "SKU-ORD-A" {
		t.Fatalf("unexpected items: %+v", got.Items)
	}

	query := domain.OrderQuery{Search: "customer"}
	if err := query.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	page, err := repo.List(ctx, query)
	if err != nil {
		t.Fatalf("list with search: %v", err)
	}
	if page.Meta.Total != 1 || page.Data[0].ID != order1.ID {
		t.Fatalf("unexpected list result: %+v", page)
	}

	query = domain.OrderQuery{Pagination: domain.Pagination{Limit: 1}}
	_ = query.Normalize()
	page, err = repo.List(ctx, query)
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != order2.ID || !page.Meta.HasNextPage {
		t.Fatalf("unexpected first page: %+v", page)
	}

	got.Status = domain.OrderStatusCancelled
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("save order: %v", err)
	}
	if err := repo.Save(ctx, got); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	missing := got
	missing.ID = uuid.NewString()
	if err := repo.Save(ctx, missing); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderRepository_PostgresCreateIsAtomic(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	order := sampleOrder("ORD-ATOMIC", "customer-1", time.Now().UTC())
	// Невалидное количество нарушает CHECK и должно откатить весь заказ.
	order.Items[1].Quantity = 0

	if err := repo.Create(ctx, order); err == nil {
		t.Fatal("expected create to fail")
	}
	if _, err := repo.Get(ctx, order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("order must not be persisted partially, got %v", err)
	}

	dup := sampleOrder("ORD-DUP", "", time.Now().UTC())
	if err := repo.Create(ctx, dup); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, dup); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected conflict for duplicate order number, got %v", err)
	}
}

func TestOrderRepository_PostgresMalformedIDIsNotFound(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	if _, err := repo.Get(context.Background(), "abc"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for malformed id, got %v", err)
	}
}
