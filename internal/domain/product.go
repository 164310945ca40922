package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency подставляется, когда валюта товара не задана.
const DefaultCurrency = "USD"

// ProductStatus хранится числом: 1 означает активен, 0 означает снят с продажи.
type ProductStatus int

const (
	ProductStatusInactive ProductStatus = 0
	ProductStatusActive   ProductStatus = 1
)

func (s ProductStatus) String() string {
	if s == ProductStatusActive {
		return "ACTIVE"
	}
	return "INACTIVE"
}

// ParseProductStatus принимает как числовую (1/0), так и строковую (ACTIVE/INACTIVE) форму.
func ParseProductStatus(raw string) (ProductStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "1", "ACTIVE":
		return ProductStatusActive, nil
	case "0", "INACTIVE":
		return ProductStatusInactive, nil
	}
	return 0, ErrInvalidProductStatus
}

// Product: товар каталога вместе с остатком на складе.
type Product struct {
	ID             string
	SKU            string
	Name           string
	Description    string
	Price          decimal.Decimal
	Currency       string
	InventoryCount int
	Status         ProductStatus
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive сообщает, доступен ли товар для заказа.
func (p Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// Snapshot возвращает неизменяемый снимок для позиции заказа.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		Name:      p.Name,
		SKU:       p.SKU,
		UnitPrice: p.Price,
		Currency:  p.CurrencyOrDefault(),
	}
}

// CurrencyOrDefault возвращает валюту товара или USD.
func (p Product) CurrencyOrDefault() string {
	if p.Currency == "" {
		return DefaultCurrency
	}
	return p.Currency
}

// NewProduct описывает данные для создания товара. SKU генерируется сервисом.
type NewProduct struct {
	Name           string
	Description    string
	Price          decimal.Decimal
	Currency       string
	InventoryCount int
	Status         *ProductStatus
}

// ProductPatch содержит частичное обновление товара; nil означает «не менять».
type ProductPatch struct {
	SKU            *string
	Name           *string
	Description    *string
	Price          *decimal.Decimal
	Currency       *string
	InventoryCount *int
	Status         *ProductStatus
}

// Apply переносит заданные поля патча в товар.
func (p ProductPatch) Apply(product *Product) {
	if p.SKU != nil {
		product.SKU = *p.SKU
	}
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Currency != nil {
		product.Currency = *p.Currency
	}
	if p.InventoryCount != nil {
		product.InventoryCount = *p.InventoryCount
	}
	if p.Status != nil {
		product.Status = *p.Status
	}
}
