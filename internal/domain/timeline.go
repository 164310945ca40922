package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID string
	Type    string
	// Reason заполняется для отказов, отмен и расхождений инвентаря.
	Reason   string
	Occurred time.Time
}

// Типы событий, которые попадают в timeline и outbox.
const (
	EventOrderPlaced             = "OrderPlaced"
	EventOrderStatusChanged      = "OrderStatusChanged"
	EventOrderCancelled          = "OrderCancelled"
	EventInventoryAdjusted       = "InventoryAdjusted"
	EventInventoryDriftRecorded  = "InventoryDriftRecorded"
	EventInventoryDriftResolved  = "InventoryDriftResolved"
	EventInventoryDriftAbandoned = "InventoryDriftAbandoned"
)
