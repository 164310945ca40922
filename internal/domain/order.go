package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusCreated: заказ сохранён, инвентарь списывается после сохранения.
	OrderStatusCreated OrderStatus = "CREATED"
	// OrderStatusPaid: оплата подтверждена.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusShipped: заказ передан в доставку.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered: заказ получен клиентом.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled: заказ отменён. Физически заказы не удаляются.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderStatuses перечисляет все известные статусы в порядке жизненного цикла.
var OrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid сообщает, является ли статус одним из известных.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseOrderStatus разбирает статус без учёта регистра.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// OrderRequestItem: одна строка входящего запроса.
type OrderRequestItem struct {
	ProductID string
	Quantity  int
}

// OrderRequest: входной запрос на оформление заказа. Порядок строк значим.
type OrderRequest struct {
	CustomerID string
	Items      []OrderRequestItem
}

// ProductSnapshot фиксирует атрибуты товара на момент оформления.
type ProductSnapshot struct {
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"price"`
	Currency  string          `json:"currency,omitempty"`
}

// OrderLine представляет одну позицию заказа. После создания не изменяется.
type OrderLine struct {
	ID        string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	Snapshot  ProductSnapshot
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID          string
	OrderNumber string
	CustomerID  string
	Status      OrderStatus
	TotalAmount decimal.Decimal
	Currency    string
	Items       []OrderLine
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOrderLine строит позицию по снимку товара и количеству.
func NewOrderLine(id string, product Product, quantity int, now time.Time) OrderLine {
	return OrderLine{
		ID:        id,
		ProductID: product.ID,
		Quantity:  quantity,
		UnitPrice: product.Price,
		LineTotal: product.Price.Mul(decimal.NewFromInt(int64(quantity))),
		Snapshot:  product.Snapshot(),
		CreatedAt: now,
	}
}

// SumLines возвращает сумму LineTotal по всем позициям.
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal)
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.OrderNumber == "" {
		errs = append(errs, ErrOrderNumberRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidStatus)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if !item.LineTotal.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))) {
			errs = append(errs, ErrAmountMismatch)
		}
	}
	if !SumLines(o.Items).Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
