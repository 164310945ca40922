package domain

import (
	"fmt"
	"strings"
)

const (
	// DefaultPageLimit: размер страницы по умолчанию.
	DefaultPageLimit = 10
	// MaxPageLimit: верхняя граница размера страницы.
	MaxPageLimit = 100
)

// SortOrder задаёт направление сортировки.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Поля сортировки заказов.
const (
	OrderSortOrderNumber = "orderNumber"
	OrderSortTotalAmount = "totalAmount"
	OrderSortCreatedAt   = "createdAt"
	OrderSortUpdatedAt   = "updatedAt"
	OrderSortStatus      = "status"
)

// Поля сортировки товаров.
const (
	ProductSortName           = "name"
	ProductSortPrice          = "price"
	ProductSortCreatedAt      = "createdAt"
	ProductSortUpdatedAt      = "updatedAt"
	ProductSortInventoryCount = "inventoryCount"
)

var (
	orderSortFields   = []string{OrderSortOrderNumber, OrderSortTotalAmount, OrderSortCreatedAt, OrderSortUpdatedAt, OrderSortStatus}
	productSortFields = []string{ProductSortName, ProductSortPrice, ProductSortCreatedAt, ProductSortUpdatedAt, ProductSortInventoryCount}
)

// Pagination: общие параметры страницы и сортировки.
type Pagination struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortOrder
}

// Offset возвращает число пропускаемых записей.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p *Pagination) normalize(allowed []string) error {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidQuery)
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, MaxPageLimit)
	}
	if p.SortBy == "" {
		p.SortBy = "createdAt"
	}
	if !contains(allowed, p.SortBy) {
		return fmt.Errorf("%w: unsupported sortBy %q", ErrInvalidQuery, p.SortBy)
	}
	switch SortOrder(strings.ToUpper(string(p.SortOrder))) {
	case "":
		p.SortOrder = SortDesc
	case SortAsc:
		p.SortOrder = SortAsc
	case SortDesc:
		p.SortOrder = SortDesc
	default:
		return fmt.Errorf("%w: sortOrder must be ASC or DESC", ErrInvalidQuery)
	}
	return nil
}

// OrderQuery описывает фильтрацию и пагинацию списка заказов.
type OrderQuery struct {
	Pagination
	// Search ищет подстроку в номере заказа и идентификаторе клиента без учёта регистра.
	Search string
	Status OrderStatus
}

// Normalize подставляет значения по умолчанию и проверяет допустимость параметров.
func (q *OrderQuery) Normalize() error {
	if q.Status != "" && !q.Status.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrInvalidStatus)
	}
	return q.Pagination.normalize(orderSortFields)
}

// ProductQuery описывает фильтрацию и пагинацию списка товаров.
type ProductQuery struct {
	Pagination
	// Search ищет подстроку в названии, SKU и описании.
	Search string
	Status *ProductStatus
}

// Normalize подставляет значения по умолчанию и проверяет допустимость параметров.
func (q *ProductQuery) Normalize() error {
	return q.Pagination.normalize(productSortFields)
}

// PageMeta описывает положение страницы в общей выборке.
type PageMeta struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	Total           int  `json:"total"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// NewPageMeta рассчитывает метаданные страницы.
func NewPageMeta(p Pagination, total int) PageMeta {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	return PageMeta{
		Page:            p.Page,
		Limit:           p.Limit,
		Total:           total,
		TotalPages:      totalPages,
		HasNextPage:     p.Page < totalPages,
		HasPreviousPage: p.Page > 1,
	}
}

// OrderPage: страница заказов.
type OrderPage struct {
	Data []Order
	Meta PageMeta
}

// ProductPage: страница товаров.
type ProductPage struct {
	Data []Product
	Meta PageMeta
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
