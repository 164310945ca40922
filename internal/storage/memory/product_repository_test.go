package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newProduct(id, sku string, stock int) domain.Product {
	now := time.Now().UTC()
	return domain.Product{
		ID:             id,
		SKU:            sku,
		Name:           "Product " + id,
		Price:          decimal.RequireFromString("10.00"),
		Currency:       "USD",
		InventoryCount: stock,
		Status:         domain.ProductStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestProductRepository_AdjustInventoryRejectsNegative(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	require.NoError(t, repo.Create(ctx, newProduct("p-1", "SKU-1", 3)))

	updated, err := repo.AdjustInventory(ctx, "p-1", -2)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.InventoryCount)

	_, err = repo.AdjustInventory(ctx, "p-1", -2)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)

	stored, _ := repo.Get(ctx, "p-1")
	assert.Equal(t, 1, stored.InventoryCount)

	_, err = repo.AdjustInventory(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestProductRepository_ConcurrentDecrementsNeverOversell(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	require.NoError(t, repo.Create(ctx, newProduct("p-1", "SKU-1", 10)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.AdjustInventory(ctx, "p-1", -1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stored, _ := repo.Get(ctx, "p-1")
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 0, stored.InventoryCount)
}

func TestProductRepository_SaveChecksSKUAndVersion(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	require.NoError(t, repo.Create(ctx, newProduct("p-1", "SKU-1", 1)))
	require.NoError(t, repo.Create(ctx, newProduct("p-2", "SKU-2", 1)))
	assert.ErrorIs(t, repo.Create(ctx, newProduct("p-3", "SKU-1", 1)), domain.ErrSKUConflict)

	p, _ := repo.Get(ctx, "p-2")
	p.SKU = "SKU-1"
	assert.ErrorIs(t, repo.Save(ctx, p), domain.ErrSKUConflict)

	p.SKU = "SKU-22"
	require.NoError(t, repo.Save(ctx, p))
	byNewSKU, err := repo.GetBySKU(ctx, "SKU-22")
	require.NoError(t, err)
	assert.Equal(t, "p-2", byNewSKU.ID)
	_, err = repo.GetBySKU(ctx, "SKU-2")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	// Старая версия.
	assert.ErrorIs(t, repo.Save(ctx, p), domain.ErrProductVersionConflict)
}

func TestProductRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	for i, sku := range []string{"MUG-1", "CUP-1", "MUG-2"} {
		p := newProduct(sku, sku, i)
		if sku == "CUP-1" {
			p.Status = domain.ProductStatusInactive
		}
		require.NoError(t, repo.Create(ctx, p))
	}

	active := domain.ProductStatusActive
	query := domain.ProductQuery{Search: "mug", Status: &active, Pagination: domain.Pagination{SortBy: domain.ProductSortInventoryCount, SortOrder: domain.SortAsc}}
	require.NoError(t, query.Normalize())
	page, err := repo.List(ctx, query)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "MUG-1", page.Data[0].SKU)

	require.NoError(t, repo.Delete(ctx, "MUG-1"))
	assert.ErrorIs(t, repo.Delete(ctx, "MUG-1"), domain.ErrProductNotFound)
}

func TestProductRepository_UnknownIDIsNotFound(t *testing.T) {
	repo := memory.NewProductRepository()
	ctx := context.Background()

	_, err := repo.Get(ctx, "P1")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = repo.AdjustInventory(ctx, "P1", -1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "P1"), domain.ErrProductNotFound)
}
