package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ProductPayload: JSON-представление товара в API каталога.
type ProductPayload struct {
	ID             string          `json:"id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	InventoryCount int             `json:"inventoryCount"`
	Status         StatusValue     `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewProductPayload строит payload из доменного товара.
func NewProductPayload(p domain.Product) ProductPayload {
	return ProductPayload{
		ID:             p.ID,
		SKU:            p.SKU,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		Currency:       p.CurrencyOrDefault(),
		InventoryCount: p.InventoryCount,
		Status:         StatusValue(p.Status),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// ToDomain переводит payload в доменный товар.
func (p ProductPayload) ToDomain() domain.Product {
	return domain.Product{
		ID:             p.ID,
		SKU:            p.SKU,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		Currency:       p.Currency,
		InventoryCount: p.InventoryCount,
		Status:         domain.ProductStatus(p.Status),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// InventoryAdjustmentPayload: тело PATCH /products/{id}/inventory.
type InventoryAdjustmentPayload struct {
	Quantity int `json:"quantity"`
}

// StatusValue кодируется числом (1/0), а при чтении принимает и строки ACTIVE/INACTIVE.
type StatusValue domain.ProductStatus

func (s StatusValue) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(s))), nil
}

func (s *StatusValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	status, err := domain.ParseProductStatus(raw)
	if err != nil {
		return fmt.Errorf("product status %s: %w", string(data), err)
	}
	*s = StatusValue(status)
	return nil
}
