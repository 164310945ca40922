package domain

import "time"

// DriftStatus описывает состояние записи о расхождении инвентаря.
type DriftStatus string

const (
	// DriftStatusPending: корректировка не применена, ожидает повторной попытки.
	DriftStatusPending DriftStatus = "pending"
	// DriftStatusResolved: корректировка в итоге применена каталогом.
	DriftStatusResolved DriftStatus = "resolved"
	// DriftStatusAbandoned: попытки исчерпаны или каталог отклонил корректировку; нужен оператор.
	DriftStatusAbandoned DriftStatus = "abandoned"
)

// InventoryDrift фиксирует списание, которое не удалось применить после сохранения заказа.
// Заказ при этом остаётся CREATED, а остаток в каталоге завышен на |Delta|.
type InventoryDrift struct {
	ID          string
	OrderID     string
	OrderNumber string
	ProductID   string
	Delta       int
	Status      DriftStatus
	Attempts    int
	LastError   string

	// NextAttemptAt: раньше этого момента запись не попадает в выборку PullPending.
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DriftStats описывает backlog незакрытых расхождений.
type DriftStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
