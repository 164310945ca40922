package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productRepositoryInMemory: in-memory каталог. Корректировка остатка выполняется под одной блокировкой,
// поэтому проверка «не уйти в минус» и запись атомарны.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
	bySKU map[string]string
}

// NewProductRepository создаёт in-memory реализацию ProductRepository.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
		bySKU: make(map[string]string),
	}
}

func (r *productRepositoryInMemory) Create(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.ID]; exists {
		return domain.ErrProductVersionConflict
	}
	if _, exists := r.bySKU[product.SKU]; exists {
		return domain.ErrSKUConflict
	}
	r.items[product.ID] = product
	r.bySKU[product.SKU] = product.ID
	return nil
}

func (r *productRepositoryInMemory) Get(_ context.Context, id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (r *productRepositoryInMemory) GetBySKU(ctx context.Context, sku string) (domain.Product, error) {
	r.mu.RLock()
	id, ok := r.bySKU[sku]
	r.mu.RUnlock()
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return r.Get(ctx, id)
}

// Save перезаписывает товар, проверяя версию и уникальность SKU.
func (r *productRepositoryInMemory) Save(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if current.Version != product.Version {
		return domain.ErrProductVersionConflict
	}
	if product.SKU != current.SKU {
		if _, taken := r.bySKU[product.SKU]; taken {
			return domain.ErrSKUConflict
		}
		delete(r.bySKU, current.SKU)
		r.bySKU[product.SKU] = product.ID
	}
	product.Version++
	r.items[product.ID] = product
	return nil
}

// AdjustInventory прибавляет delta к остатку, если результат не отрицательный.
func (r *productRepositoryInMemory) AdjustInventory(_ context.Context, id string, delta int) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if product.InventoryCount+delta < 0 {
		return product, fmt.Errorf("%w: current inventory %d, requested change %d",
			domain.ErrInsufficientInventory, product.InventoryCount, delta)
	}
	product.InventoryCount += delta
	product.Version++
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return product, nil
}

func (r *productRepositoryInMemory) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	delete(r.items, id)
	delete(r.bySKU, product.SKU)
	return nil
}

// List фильтрует по статусу и подстроке в названии, SKU или описании.
func (r *productRepositoryInMemory) List(_ context.Context, query domain.ProductQuery) (domain.ProductPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(query.Search)
	result := make([]domain.Product, 0, len(r.items))
	for _, product := range r.items {
		if query.Status != nil && product.Status != *query.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(product.Name), search) &&
			!strings.Contains(strings.ToLower(product.SKU), search) &&
			!strings.Contains(strings.ToLower(product.Description), search) {
			continue
		}
		result = append(result, product)
	}

	less := productLess(query.SortBy)
	sort.SliceStable(result, func(i, j int) bool {
		if query.SortOrder == domain.SortAsc {
			return less(result[i], result[j])
		}
		return less(result[j], result[i])
	})

	return domain.ProductPage{
		Data: paginate(result, query.Pagination),
		Meta: domain.NewPageMeta(query.Pagination, len(result)),
	}, nil
}

func productLess(field string) func(a, b domain.Product) bool {
	switch field {
	case domain.ProductSortName:
		return func(a, b domain.Product) bool { return a.Name < b.Name }
	case domain.ProductSortPrice:
		return func(a, b domain.Product) bool { return a.Price.LessThan(b.Price) }
	case domain.ProductSortInventoryCount:
		return func(a, b domain.Product) bool { return a.InventoryCount < b.InventoryCount }
	case domain.ProductSortUpdatedAt:
		return func(a, b domain.Product) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return func(a, b domain.Product) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.SKU < b.SKU
		}
	}
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
