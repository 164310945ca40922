package grpcsvc

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrderItem: строка запроса на заказ.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrderRequest: запрос PlaceOrder.
type PlaceOrderRequest struct {
	CustomerID string      `json:"customer_id,omitempty"`
	Items      []OrderItem `json:"items"`
}

// OrderLine: позиция заказа. Денежные суммы передаются десятичными строками.
type OrderLine struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// Order: заказ в ответах OrderService.
type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"order_number"`
	CustomerID  string      `json:"customer_id,omitempty"`
	Status      string      `json:"status"`
	TotalAmount string      `json:"total_amount"`
	Currency    string      `json:"currency"`
	Items       []OrderLine `json:"items"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// OrderResponse: ответ PlaceOrder, UpdateOrderStatus и CancelOrder.
type OrderResponse struct {
	Order Order `json:"order"`
}

// GetOrderRequest: запрос GetOrder.
type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

// TimelineEvent: событие истории заказа.
type TimelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// GetOrderResponse: заказ вместе с историей.
type GetOrderResponse struct {
	Order    Order           `json:"order"`
	Timeline []TimelineEvent `json:"timeline"`
}

// UpdateOrderStatusRequest: запрос UpdateOrderStatus.
type UpdateOrderStatusRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// CancelOrderRequest: запрос CancelOrder.
type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
}

// ListOrdersRequest: фильтры и пагинация ListOrders.
type ListOrdersRequest struct {
	Page      int    `json:"page,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	SortBy    string `json:"sort_by,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
	Search    string `json:"search,omitempty"`
	Status    string `json:"status,omitempty"`
}

// ListOrdersResponse: страница заказов.
type ListOrdersResponse struct {
	Orders []Order         `json:"orders"`
	Meta   domain.PageMeta `json:"meta"`
}

func toOrder(o domain.Order) Order {
	items := make([]OrderLine, 0, len(o.Items))
	for _, line := range o.Items {
		items = append(items, OrderLine{
			ID:        line.ID,
			ProductID: line.ProductID,
			Name:      line.Snapshot.Name,
			SKU:       line.Snapshot.SKU,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.String(),
			LineTotal: line.LineTotal.String(),
		})
	}
	return Order{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount.String(),
		Currency:    o.Currency,
		Items:       items,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}
