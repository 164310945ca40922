package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// driftRepositoryInMemory хранит расхождения инвентаря в памяти.
type driftRepositoryInMemory struct {
	mu      sync.RWMutex
	records map[string]domain.InventoryDrift
	// order сохраняет порядок записи расхождений.
	order []string
}

// NewDriftRepository создаёт in-memory реализацию DriftRepository.
func NewDriftRepository() domain.DriftRepository {
	return &driftRepositoryInMemory{records: make(map[string]domain.InventoryDrift)}
}

// Record сохраняет новое расхождение со статусом pending.
func (r *driftRepositoryInMemory) Record(_ context.Context, drift domain.InventoryDrift) (domain.InventoryDrift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if drift.ID == "" {
		drift.ID = uuid.NewString()
	}
	if drift.Status == "" {
		drift.Status = domain.DriftStatusPending
	}
	now := time.Now().UTC()
	if drift.CreatedAt.IsZero() {
		drift.CreatedAt = now
	}
	drift.UpdatedAt = now
	if drift.NextAttemptAt.IsZero() {
		drift.NextAttemptAt = drift.CreatedAt
	}
	if _, exists := r.records[drift.ID]; !exists {
		r.order = append(r.order, drift.ID)
	}
	r.records[drift.ID] = drift
	return drift, nil
}

// PullPending возвращает до limit незакрытых расхождений, срок попытки которых наступил.
func (r *driftRepositoryInMemory) PullPending(_ context.Context, now time.Time, limit int) ([]domain.InventoryDrift, error) {
	pending := r.filter(func(d domain.InventoryDrift) bool {
		return d.Status == domain.DriftStatusPending && !d.NextAttemptAt.After(now)
	})
	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].NextAttemptAt.Equal(pending[j].NextAttemptAt) {
			return pending[i].NextAttemptAt.Before(pending[j].NextAttemptAt)
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// ListByOrder возвращает все расхождения заказа.
func (r *driftRepositoryInMemory) ListByOrder(_ context.Context, orderID string) ([]domain.InventoryDrift, error) {
	return r.filter(func(d domain.InventoryDrift) bool { return d.OrderID == orderID }), nil
}

// Update перезаписывает статус и счётчики расхождения.
func (r *driftRepositoryInMemory) Update(_ context.Context, drift domain.InventoryDrift) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[drift.ID]
	if !ok {
		return domain.ErrDriftNotFound
	}
	current.Status = drift.Status
	current.Attempts = drift.Attempts
	current.LastError = drift.LastError
	if !drift.NextAttemptAt.IsZero() {
		current.NextAttemptAt = drift.NextAttemptAt
	}
	current.UpdatedAt = time.Now().UTC()
	r.records[drift.ID] = current
	return nil
}

// Stats возвращает размер backlog и возраст самого старого pending-расхождения.
func (r *driftRepositoryInMemory) Stats(_ context.Context) (domain.DriftStats, error) {
	pending := r.filter(func(d domain.InventoryDrift) bool { return d.Status == domain.DriftStatusPending })
	stats := domain.DriftStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].CreatedAt
	}
	return stats, nil
}

func (r *driftRepositoryInMemory) filter(keep func(domain.InventoryDrift) bool) []domain.InventoryDrift {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.InventoryDrift, 0)
	for _, id := range r.order {
		if drift := r.records[id]; keep(drift) {
			result = append(result, drift)
		}
	}
	return result
}

var _ domain.DriftRepository = (*driftRepositoryInMemory)(nil)
