package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory: простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu       sync.RWMutex
	items    map[string]domain.Order
	byNumber map[string]string
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:    make(map[string]domain.Order),
		byNumber: make(map[string]string),
	}
}

// Create сохраняет заказ вместе с позициями, если ID и номер ещё не заняты.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	if _, exists := r.byNumber[order.OrderNumber]; exists {
		return domain.ErrOrderVersionConflict
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = cloneOrder(order)
	r.byNumber[order.OrderNumber] = order.ID
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// Save перезаписывает статус заказа, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	// Позиции и суммы неизменны после создания.
	current.Status = order.Status
	current.UpdatedAt = order.UpdatedAt
	current.Version++
	r.items[order.ID] = current
	return nil
}

// List фильтрует, сортирует и нарезает заказы на страницы.
func (r *orderRepositoryInMemory) List(_ context.Context, query domain.OrderQuery) (domain.OrderPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(query.Search)
	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if query.Status != "" && order.Status != query.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(order.OrderNumber), search) &&
			!strings.Contains(strings.ToLower(order.CustomerID), search) {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	less := orderLess(query.SortBy)
	sort.SliceStable(result, func(i, j int) bool {
		if query.SortOrder == domain.SortAsc {
			return less(result[i], result[j])
		}
		return less(result[j], result[i])
	})

	return domain.OrderPage{
		Data: paginate(result, query.Pagination),
		Meta: domain.NewPageMeta(query.Pagination, len(result)),
	}, nil
}

func orderLess(field string) func(a, b domain.Order) bool {
	switch field {
	case domain.OrderSortOrderNumber:
		return func(a, b domain.Order) bool { return a.OrderNumber < b.OrderNumber }
	case domain.OrderSortTotalAmount:
		return func(a, b domain.Order) bool { return a.TotalAmount.LessThan(b.TotalAmount) }
	case domain.OrderSortUpdatedAt:
		return func(a, b domain.Order) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case domain.OrderSortStatus:
		return func(a, b domain.Order) bool { return a.Status < b.Status }
	default:
		return func(a, b domain.Order) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.OrderNumber < b.OrderNumber
		}
	}
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = append([]domain.OrderLine(nil), order.Items...)
	return order
}

func paginate[T any](items []T, p domain.Pagination) []T {
	if p.Limit <= 0 {
		return items
	}
	offset := p.Offset()
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	end := offset + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
