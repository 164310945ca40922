package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы попытки сверки.
const (
	DriftResultResolved  = "resolved"
	DriftResultRetry     = "retry"
	DriftResultAbandoned = "abandoned"
)

// DriftMetrics содержит метрики воркера сверки инвентаря.
type DriftMetrics struct {
	attempts         *prometheus.CounterVec
	pendingRecords   prometheus.Gauge
	oldestPendingAge prometheus.Gauge
}

// NewDriftMetrics регистрирует метрики в DefaultRegisterer.
func NewDriftMetrics() *DriftMetrics {
	return NewDriftMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewDriftMetricsWithRegisterer регистрирует метрики в указанном реестре.
func NewDriftMetricsWithRegisterer(reg prometheus.Registerer) *DriftMetrics {
	return &DriftMetrics{
		attempts: counterVec(reg, "storefront_inventory_drift_reconcile_attempts_total",
			"Total number of drift reconciliation attempts grouped by result", "result"),
		pendingRecords: gauge(reg, "storefront_inventory_drift_pending_records",
			"Current number of pending inventory drift records"),
		oldestPendingAge: gauge(reg, "storefront_inventory_drift_oldest_pending_age_seconds",
			"Age in seconds of the oldest pending inventory drift record"),
	}
}

// RecordAttempt учитывает исход одной попытки.
func (m *DriftMetrics) RecordAttempt(result string) {
	m.attempts.WithLabelValues(result).Inc()
}

// SetBacklog обновляет gauges backlog по снимку статистики.
func (m *DriftMetrics) SetBacklog(pending int, oldest time.Time, now time.Time) {
	m.pendingRecords.Set(float64(pending))
	if pending == 0 || oldest.IsZero() {
		m.oldestPendingAge.Set(0)
		return
	}
	m.oldestPendingAge.Set(max(now.Sub(oldest).Seconds(), 0))
}
