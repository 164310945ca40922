package ordering

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// PlaceOrder оформляет заказ.
//
// Строки проверяются последовательно в порядке запроса; первая же неудача отклоняет
// весь заказ (*domain.OrderRejectedError), ничего не сохраняя. Ошибка сохранения
// возвращается как domain.ErrOrderPersistenceFailed, остатки при этом не трогаются.
// Ошибки списания после сохранения фиксируются как расхождения и не возвращаются.
// Повторный одинаковый запрос создаёт ещё один заказ.
func (s *Service) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ordering.PlaceOrder", trace.WithAttributes(
		attribute.Int("order.items", len(req.Items)),
	))
	defer span.End()

	if s.metrics != nil {
		done := s.metrics.PlacementStarted()
		defer done()
	}

	if len(req.Items) == 0 {
		return domain.Order{}, s.reject(span, domain.Reject(domain.RejectionEmptyOrder, "", nil))
	}
	if err := validateRequest(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Order{}, err
	}

	products := make([]domain.Product, len(req.Items))
	for i, item := range req.Items {
		product, err := s.checkLine(ctx, item)
		if err != nil {
			return domain.Order{}, s.reject(span, err)
		}
		products[i] = product
	}

	order := s.buildOrder(req, products)
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.number", order.OrderNumber),
	)

	persistStart := time.Now()
	err := s.orders.Create(ctx, order)
	s.observeStep(metrics.StepPersistOrder, persistStart)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPersistenceFailed()
		}
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		}).Error("failed to persist order")
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrOrderPersistenceFailed, err)
	}
	if s.metrics != nil {
		s.metrics.RecordPlaced()
	}

	// Заказ уже существует: списания и учёт расхождений не зависят от отмены запроса.
	after := context.WithoutCancel(ctx)
	s.emitEvent(after, order, domain.EventOrderPlaced, map[string]any{
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID,
		"total_amount": order.TotalAmount.String(),
		"currency":     order.Currency,
		"items_count":  len(order.Items),
		"ts":           order.CreatedAt.Format(time.RFC3339Nano),
	})
	for _, line := range order.Items {
		s.decrementInventory(after, order, line)
	}

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount.String(),
		"currency":     order.Currency,
	}).Info("order placed")
	return order, nil
}

// validateRequest проверяет форму строк: непустой productId и положительное количество.
func validateRequest(req domain.OrderRequest) error {
	for i, item := range req.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: items[%d].productId is required", domain.ErrInvalidRequest, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: items[%d].quantity must be a positive integer", domain.ErrInvalidRequest, i)
		}
	}
	return nil
}

// checkLine читает товар и проверяет активность и остаток.
func (s *Service) checkLine(ctx context.Context, item domain.OrderRequestItem) (domain.Product, error) {
	start := time.Now()
	product, err := s.catalog.FetchProduct(ctx, item.ProductID)
	s.observeStep(metrics.StepFetchProduct, start)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.Product{}, domain.Reject(domain.RejectionProductNotFound, item.ProductID, err)
		}
		return domain.Product{}, domain.Reject(domain.RejectionUpstreamUnavailable, item.ProductID, err)
	}
	if !product.IsActive() {
		return domain.Product{}, domain.Reject(domain.RejectionProductInactive, item.ProductID, nil)
	}
	if product.InventoryCount < item.Quantity {
		return domain.Product{}, domain.RejectInsufficient(item.ProductID, product.InventoryCount, item.Quantity)
	}
	return product, nil
}

// buildOrder фиксирует цены и снимки товаров. Валюта заказа берётся у первого товара.
func (s *Service) buildOrder(req domain.OrderRequest, products []domain.Product) domain.Order {
	now := s.clock()
	lines := make([]domain.OrderLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = domain.NewOrderLine(s.newID(), products[i], item.Quantity, now)
	}
	return domain.Order{
		ID:          s.newID(),
		OrderNumber: s.numbers.Next(),
		CustomerID:  req.CustomerID,
		Status:      domain.OrderStatusCreated,
		TotalAmount: domain.SumLines(lines),
		Currency:    products[0].CurrencyOrDefault(),
		Items:       lines,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Service) decrementInventory(ctx context.Context, order domain.Order, line domain.OrderLine) {
	start := time.Now()
	err := s.catalog.AdjustInventory(ctx, line.ProductID, -line.Quantity)
	s.observeStep(metrics.StepAdjustInventory, start)
	if err != nil {
		s.recordDrift(ctx, order, line, err)
	}
}

// recordDrift фиксирует списание, которое не удалось применить. Заказ остаётся CREATED.
func (s *Service) recordDrift(ctx context.Context, order domain.Order, line domain.OrderLine, cause error) {
	fields := log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"product_id":   line.ProductID,
		"delta":        -line.Quantity,
	}
	s.logger.WithError(cause).WithFields(fields).Warn("inventory adjustment failed after order was persisted")
	if s.metrics != nil {
		s.metrics.RecordDrift()
	}

	payload := map[string]any{
		"order_number": order.OrderNumber,
		"product_id":   line.ProductID,
		"delta":        -line.Quantity,
		"reason":       cause.Error(),
	}
	if s.drifts != nil {
		now := s.clock()
		drift, err := s.drifts.Record(ctx, domain.InventoryDrift{
			ID:          s.newID(),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			ProductID:   line.ProductID,
			Delta:       -line.Quantity,
			Status:      domain.DriftStatusPending,
			LastError:   cause.Error(),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			s.logger.WithError(err).WithFields(fields).Error("failed to record inventory drift")
		} else {
			payload["drift_id"] = drift.ID
		}
	}
	s.emitEvent(ctx, order, domain.EventInventoryDriftRecorded, payload)
}

func (s *Service) reject(span trace.Span, err error) error {
	if rejected, ok := domain.AsRejection(err); ok {
		if s.metrics != nil {
			s.metrics.RecordRejected(string(rejected.Reason))
		}
		s.logger.WithFields(log.Fields{
			"reason":     rejected.Reason,
			"product_id": rejected.ProductID,
		}).Info("order rejected")
		span.SetAttributes(attribute.String("order.rejection", string(rejected.Reason)))
	}
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *Service) observeStep(step string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordStepDuration(step, time.Since(start))
	}
}
