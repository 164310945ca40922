package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create атомарно сохраняет заказ вместе со всеми позициями.
	// Возвращает ErrOrderVersionConflict, если заказ с таким ID или номером уже существует.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking. Позиции не перезаписываются.
	Save(ctx context.Context, order Order) error
	// List возвращает страницу заказов; запрос должен быть нормализован.
	List(ctx context.Context, query OrderQuery) (OrderPage, error)
}

// ProductRepository описывает хранилище каталога.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	Get(ctx context.Context, id string) (Product, error)
	GetBySKU(ctx context.Context, sku string) (Product, error)
	// Save обновляет товар с проверкой версии.
	Save(ctx context.Context, product Product) error
	// AdjustInventory атомарно прибавляет delta к остатку и возвращает обновлённый товар.
	// Если результат стал бы отрицательным, возвращает ErrInsufficientInventory и ничего не меняет.
	AdjustInventory(ctx context.Context, id string, delta int) (Product, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, query ProductQuery) (ProductPage, error)
}

// DriftRepository хранит записи о неприменённых списаниях инвентаря.
type DriftRepository interface {
	Record(ctx context.Context, drift InventoryDrift) (InventoryDrift, error)
	// PullPending возвращает до limit pending-записей с NextAttemptAt <= now, самые просроченные первыми.
	PullPending(ctx context.Context, now time.Time, limit int) ([]InventoryDrift, error)
	ListByOrder(ctx context.Context, orderID string) ([]InventoryDrift, error)
	// Update сохраняет статус, счётчик попыток и последнюю ошибку.
	Update(ctx context.Context, drift InventoryDrift) error
	Stats(ctx context.Context) (DriftStats, error)
}
