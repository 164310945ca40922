// Package reconcile повторно применяет списания инвентаря, которые не прошли при оформлении заказа.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultBatchSize      = 50
	defaultMaxAttempts    = 5
	defaultRetryBaseDelay = 1 * time.Second
)

// Summary подводит итог одного прохода.
type Summary struct {
	Resolved  int
	Retrying  int
	Abandoned int
}

// Worker периодически забирает pending-расхождения и повторяет корректировку в каталоге.
type Worker struct {
	repo     domain.DriftRepository
	catalog  domain.CatalogClient
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.DriftMetrics
	clock    func() time.Time

	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithOutbox включает публикацию событий о закрытии расхождений.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(w *Worker) {
		w.outbox = repo
	}
}

// WithTimeline включает запись исходов в историю заказа.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(w *Worker) {
		w.timeline = repo
	}
}

// WithMetrics включает метрики backlog и попыток.
func WithMetrics(m *metrics.DriftMetrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(w *Worker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithPollInterval задаёт частоту опроса.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		w.pollInterval = interval
	}
}

// WithBatchSize задаёт размер выборки за проход.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		w.batchSize = size
	}
}

// WithMaxAttempts задаёт число попыток до перевода в abandoned.
func WithMaxAttempts(attempts int) Option {
	return func(w *Worker) {
		w.maxAttempts = attempts
	}
}

// WithRetryBaseDelay задаёт базовую задержку exponential backoff между попытками по одной записи.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) {
		w.retryBaseDelay = delay
	}
}

// NewWorker создаёт воркер сверки.
func NewWorker(repo domain.DriftRepository, catalog domain.CatalogClient, opts ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		catalog:        catalog,
		logger:         log.WithField("component", "drift-reconciler"),
		clock:          func() time.Time { return time.Now().UTC() },
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.retryBaseDelay < 0 {
		w.retryBaseDelay = 0
	}
	return w
}

// Run опрашивает расхождения до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.catalog == nil {
		w.logger.Warn("drift reconciler is disabled: repo or catalog is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один проход по pending-расхождениям.
func (w *Worker) ProcessOnce(ctx context.Context) (Summary, error) {
	var summary Summary
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	// Записи в паузе отсекает репозиторий.
	drifts, err := w.repo.PullPending(ctx, w.clock(), w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending inventory drift")
		return summary, err
	}

	for _, drift := range drifts {
		if ctx.Err() != nil {
			break
		}
		switch w.reconcile(ctx, drift) {
		case domain.DriftStatusResolved:
			summary.Resolved++
		case domain.DriftStatusAbandoned:
			summary.Abandoned++
		default:
			summary.Retrying++
		}
	}

	w.refreshBacklogMetrics(ctx)
	return summary, nil
}

func (w *Worker) reconcile(ctx context.Context, drift domain.InventoryDrift) domain.DriftStatus {
	fields := log.Fields{
		"drift_id":     drift.ID,
		"order_id":     drift.OrderID,
		"order_number": drift.OrderNumber,
		"product_id":   drift.ProductID,
		"delta":        drift.Delta,
	}

	err := w.catalog.AdjustInventory(ctx, drift.ProductID, drift.Delta)
	drift.Attempts++
	fields["attempts"] = drift.Attempts

	var result, eventType string
	switch {
	case err == nil:
		drift.Status = domain.DriftStatusResolved
		drift.LastError = ""
		result, eventType = metrics.DriftResultResolved, domain.EventInventoryDriftResolved
		w.logger.WithFields(fields).Info("inventory drift resolved")
	case errors.Is(err, domain.ErrInventoryRejected) || drift.Attempts >= w.maxAttempts:
		drift.Status = domain.DriftStatusAbandoned
		drift.LastError = err.Error()
		result, eventType = metrics.DriftResultAbandoned, domain.EventInventoryDriftAbandoned
		w.logger.WithError(err).WithFields(fields).Error("inventory drift abandoned, operator action required")
	default:
		drift.LastError = err.Error()
		drift.NextAttemptAt = w.clock().Add(w.retryBackoff(drift.Attempts))
		fields["next_attempt_at"] = drift.NextAttemptAt
		result = metrics.DriftResultRetry
		w.logger.WithError(err).WithFields(fields).Warn("inventory drift retry failed")
	}

	if w.metrics != nil {
		w.metrics.RecordAttempt(result)
	}
	if updateErr := w.repo.Update(ctx, drift); updateErr != nil {
		w.logger.WithError(updateErr).WithFields(fields).Error("failed to update inventory drift")
	}
	if eventType != "" {
		w.emit(ctx, drift, eventType)
	}
	return drift.Status
}

func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 {
		return 0
	}
	const maxDuration = time.Duration(1<<63 - 1)
	delay := w.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > maxDuration/2 {
			return maxDuration
		}
		delay *= 2
	}
	return delay
}

func (w *Worker) emit(ctx context.Context, drift domain.InventoryDrift, eventType string) {
	fields := log.Fields{"drift_id": drift.ID, "event": eventType}
	if w.outbox != nil {
		payload, err := json.Marshal(map[string]any{
			"order_id":     drift.OrderID,
			"order_number": drift.OrderNumber,
			"drift_id":     drift.ID,
			"product_id":   drift.ProductID,
			"delta":        drift.Delta,
			"attempts":     drift.Attempts,
			"reason":       drift.LastError,
		})
		if err != nil {
			w.logger.WithError(err).WithFields(fields).Error("marshal drift event failed")
		} else if _, err := w.outbox.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   drift.OrderID,
			EventType:     eventType,
			Payload:       payload,
		}); err != nil {
			w.logger.WithError(err).WithFields(fields).Error("enqueue drift event failed")
		}
	}
	if w.timeline != nil {
		if err := w.timeline.Append(ctx, domain.TimelineEvent{
			OrderID:  drift.OrderID,
			Type:     eventType,
			Reason:   drift.LastError,
			Occurred: w.clock(),
		}); err != nil {
			w.logger.WithError(err).WithFields(fields).Warn("append drift timeline event failed")
		}
	}
}

func (w *Worker) refreshBacklogMetrics(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect inventory drift backlog stats")
		return
	}
	w.metrics.SetBacklog(stats.PendingCount, stats.OldestPendingAt, w.clock())
}
