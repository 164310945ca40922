package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	product := domain.Product{
		ID:       "product-1",
		SKU:      "WIDGET-1",
		Name:     "Widget",
		Price:    decimal.RequireFromString("9.99"),
		Currency: "USD",
		Status:   domain.ProductStatusActive,
	}
	line := domain.NewOrderLine("line-1", product, 2, now)
	return domain.Order{
		ID:          "order-1",
		OrderNumber: "ORD-1",
		CustomerID:  "customer-1",
		Status:      domain.OrderStatusCreated,
		Currency:    "USD",
		TotalAmount: domain.SumLines([]domain.OrderLine{line}),
		Items:       []domain.OrderLine{line},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestNewOrderLine_ExactDecimal(t *testing.T) {
	order := makeOrder()
	if got := order.Items[0].LineTotal.String(); got != "19.98" {
		t.Fatalf("expected line total 19.98, got %s", got)
	}
	if order.Items[0].Snapshot.SKU != "WIDGET-1" || order.Items[0].Snapshot.Currency != "USD" {
		t.Fatalf("unexpected snapshot %+v", order.Items[0].Snapshot)
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}

	// Клиент опционален.
	order.CustomerID = ""
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("customer id must be optional, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no order number",
			mut: func(o *domain.Order) {
				o.OrderNumber = ""
			},
		},
		{
			name: "negative amount",
			mut: func(o *domain.Order) {
				o.TotalAmount = decimal.NewFromInt(-1)
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Quantity = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].UnitPrice = decimal.NewFromInt(-5)
			},
		},
		{
			name: "amount mismatch",
			mut: func(o *domain.Order) {
				o.TotalAmount = decimal.NewFromInt(999)
			},
		},
		{
			name: "unknown status",
			mut: func(o *domain.Order) {
				o.Status = "LOST"
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			// Копируем позиции, чтобы сценарии не влияли друг на друга.
			order.Items = append([]domain.OrderLine(nil), order.Items...)
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, err := domain.ParseOrderStatus("shipped")
	if err != nil || status != domain.OrderStatusShipped {
		t.Fatalf("expected SHIPPED, got %q (%v)", status, err)
	}
	if _, err := domain.ParseOrderStatus("returned"); err != domain.ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
