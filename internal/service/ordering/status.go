package ordering

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	statusSaveAttempts  = 3
	statusRetryBaseWait = 10 * time.Millisecond
)

// GetOrder возвращает заказ вместе с позициями.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.orders.Get(ctx, id)
}

// UpdateStatus переводит заказ в указанный статус. Допускается любой переход между известными статусами.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ordering.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	if !status.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.updateStatus(ctx, &order, status); err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}
	return order, nil
}

// CancelOrder отменяет заказ. Заказы не удаляются физически.
func (s *Service) CancelOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.UpdateStatus(ctx, id, domain.OrderStatusCancelled)
}

// ListOrders возвращает страницу заказов.
func (s *Service) ListOrders(ctx context.Context, query domain.OrderQuery) (domain.OrderPage, error) {
	if err := query.Normalize(); err != nil {
		return domain.OrderPage{}, err
	}
	return s.orders.List(ctx, query)
}

// Timeline возвращает историю заказа.
func (s *Service) Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return s.timeline.List(ctx, id)
}

// Drift возвращает расхождения инвентаря по заказу.
func (s *Service) Drift(ctx context.Context, id string) ([]domain.InventoryDrift, error) {
	if _, err := s.orders.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.drifts == nil {
		return []domain.InventoryDrift{}, nil
	}
	return s.drifts.ListByOrder(ctx, id)
}

// updateStatus сохраняет новый статус с повтором при конфликте версий.
// После конфликта заказ перечитывается, и статус применяется к свежей версии.
func (s *Service) updateStatus(ctx context.Context, order *domain.Order, status domain.OrderStatus) error {
	if order.Status == status {
		return nil
	}

	for attempt := 0; attempt < statusSaveAttempts; attempt++ {
		previous := order.Status
		order.Status = status
		order.UpdatedAt = s.clock()

		err := s.orders.Save(ctx, *order)
		if err == nil {
			order.Version++
			if s.metrics != nil {
				s.metrics.RecordStatusChange(string(status))
			}
			s.emitStatusEvent(ctx, *order, previous)
			return nil
		}

		if !errors.Is(err, domain.ErrOrderVersionConflict) || attempt == statusSaveAttempts-1 {
			order.Status = previous
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist status")
			return err
		}

		s.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"attempt":  attempt + 1,
			"version":  order.Version,
		}).Warn("version conflict detected, retrying")

		fresh, loadErr := s.orders.Get(ctx, order.ID)
		if loadErr != nil {
			return loadErr
		}
		*order = fresh
		if order.Status == status {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(statusRetryBaseWait * time.Duration(1<<uint(attempt))):
		}
	}
	return domain.ErrOrderVersionConflict
}

func (s *Service) emitStatusEvent(ctx context.Context, order domain.Order, previous domain.OrderStatus) {
	eventType := domain.EventOrderStatusChanged
	if order.Status == domain.OrderStatusCancelled {
		eventType = domain.EventOrderCancelled
	}
	s.emitEvent(ctx, order, eventType, map[string]any{
		"order_number":    order.OrderNumber,
		"status":          string(order.Status),
		"previous_status": string(previous),
		"ts":              order.UpdatedAt.Format(time.RFC3339Nano),
	})
}
