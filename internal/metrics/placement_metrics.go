// Package metrics содержит Prometheus-метрики оформления заказов и сверки инвентаря.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Шаги оформления заказа для гистограммы длительности.
const (
	StepFetchProduct    = "fetch_product"
	StepPersistOrder    = "persist_order"
	StepAdjustInventory = "adjust_inventory"
)

// PlacementMetrics содержит метрики оформления и жизненного цикла заказов.
type PlacementMetrics struct {
	ordersPlaced      prometheus.Counter
	ordersRejected    *prometheus.CounterVec
	persistenceFailed prometheus.Counter

	placementDuration prometheus.Histogram
	stepDuration      *prometheus.HistogramVec
	inFlight          prometheus.Gauge

	statusChanges *prometheus.CounterVec
	driftRecorded prometheus.Counter

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewPlacementMetrics регистрирует метрики в DefaultRegisterer.
func NewPlacementMetrics() *PlacementMetrics {
	return NewPlacementMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewPlacementMetricsWithRegisterer регистрирует метрики в указанном реестре.
func NewPlacementMetricsWithRegisterer(reg prometheus.Registerer) *PlacementMetrics {
	return &PlacementMetrics{
		ordersPlaced: counter(reg, "storefront_orders_placed_total",
			"Total number of orders persisted by the placement workflow"),
		ordersRejected: counterVec(reg, "storefront_orders_rejected_total",
			"Total number of order requests rejected before persistence", "reason"),
		persistenceFailed: counter(reg, "storefront_order_persistence_failures_total",
			"Total number of orders that passed validation but failed to persist"),
		placementDuration: register(reg, "storefront_order_placement_duration_seconds",
			prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "storefront_order_placement_duration_seconds",
				Help:    "Duration of the order placement workflow in seconds",
				Buckets: prometheus.DefBuckets,
			})),
		stepDuration: register(reg, "storefront_order_placement_step_duration_seconds",
			prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "storefront_order_placement_step_duration_seconds",
				Help:    "Duration of individual placement steps in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			}, []string{"step"})),
		inFlight: gauge(reg, "storefront_order_placements_in_flight",
			"Number of placements currently being processed"),
		statusChanges: counterVec(reg, "storefront_order_status_changes_total",
			"Total number of order status changes grouped by target status", "status"),
		driftRecorded: counter(reg, "storefront_inventory_drift_recorded_total",
			"Total number of inventory decrements that failed after the order was persisted"),
		timelineEvents: counter(reg, "storefront_timeline_events_total",
			"Total number of timeline events recorded"),
		outboxEvents: counter(reg, "storefront_outbox_events_total",
			"Total number of events enqueued to the outbox"),
	}
}

// PlacementStarted отмечает начало оформления и возвращает функцию завершения.
func (m *PlacementMetrics) PlacementStarted() func() {
	start := time.Now()
	m.inFlight.Inc()
	return func() {
		m.inFlight.Dec()
		m.placementDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordPlaced увеличивает счётчик сохранённых заказов.
func (m *PlacementMetrics) RecordPlaced() {
	m.ordersPlaced.Inc()
}

// RecordRejected увеличивает счётчик отказов по причине.
func (m *PlacementMetrics) RecordRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordPersistenceFailed увеличивает счётчик ошибок сохранения.
func (m *PlacementMetrics) RecordPersistenceFailed() {
	m.persistenceFailed.Inc()
}

// RecordStepDuration записывает время выполнения шага.
func (m *PlacementMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordStatusChange увеличивает счётчик переходов в статус.
func (m *PlacementMetrics) RecordStatusChange(status string) {
	m.statusChanges.WithLabelValues(status).Inc()
}

// RecordDrift увеличивает счётчик неприменённых списаний.
func (m *PlacementMetrics) RecordDrift() {
	m.driftRecorded.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *PlacementMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *PlacementMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
