// Package grpcsvc реализует gRPC API сервиса заказов.
package grpcsvc

import (
	"context"
	"errors"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const errorDomain = "storefront.order"

// Orders: операции сервиса заказов, которые обслуживает gRPC API.
type Orders interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error)
	CancelOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, query domain.OrderQuery) (domain.OrderPage, error)
	Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error)
}

// OrderService реализует OrderServiceServer поверх сервиса заказов.
type OrderService struct {
	orders Orders
	logger *log.Entry
}

// NewOrderService конструирует gRPC-сервис.
func NewOrderService(orders Orders, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "order-grpc")
	}
	return &OrderService{orders: orders, logger: logger}
}

// PlaceOrder оформляет заказ по актуальным данным каталога.
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*OrderResponse, error) {
	in := domain.OrderRequest{CustomerID: req.CustomerID}
	for _, item := range req.Items {
		in.Items = append(in.Items, domain.OrderRequestItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	order, err := s.orders.PlaceOrder(ctx, in)
	if err != nil {
		return nil, s.toStatus(err, methodPlaceOrder)
	}
	return &OrderResponse{Order: toOrder(order)}, nil
}

// GetOrder возвращает заказ и его историю.
func (s *OrderService) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, methodGetOrder)
	}
	events, err := s.orders.Timeline(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, methodGetOrder)
	}

	timeline := make([]TimelineEvent, 0, len(events))
	for _, ev := range events {
		timeline = append(timeline, TimelineEvent{Type: ev.Type, Reason: ev.Reason, Occurred: ev.Occurred})
	}
	return &GetOrderResponse{Order: toOrder(order), Timeline: timeline}, nil
}

// UpdateOrderStatus переводит заказ в указанный статус.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderResponse, error) {
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, s.toStatus(err, methodUpdateOrderStatus)
	}
	order, err := s.orders.UpdateStatus(ctx, req.OrderID, next)
	if err != nil {
		return nil, s.toStatus(err, methodUpdateOrderStatus)
	}
	return &OrderResponse{Order: toOrder(order)}, nil
}

// CancelOrder отменяет заказ.
func (s *OrderService) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*OrderResponse, error) {
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	order, err := s.orders.CancelOrder(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, methodCancelOrder)
	}
	return &OrderResponse{Order: toOrder(order)}, nil
}

// ListOrders возвращает страницу заказов.
func (s *OrderService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	query := domain.OrderQuery{
		Pagination: domain.Pagination{
			Page:      req.Page,
			Limit:     req.Limit,
			SortBy:    req.SortBy,
			SortOrder: domain.SortOrder(req.SortOrder),
		},
		Search: req.Search,
	}
	if req.Status != "" {
		st, err := domain.ParseOrderStatus(req.Status)
		if err != nil {
			return nil, s.toStatus(err, methodListOrders)
		}
		query.Status = st
	}

	page, err := s.orders.ListOrders(ctx, query)
	if err != nil {
		return nil, s.toStatus(err, methodListOrders)
	}
	orders := make([]Order, 0, len(page.Data))
	for _, order := range page.Data {
		orders = append(orders, toOrder(order))
	}
	return &ListOrdersResponse{Orders: orders, Meta: page.Meta}, nil
}

// toStatus переводит доменную ошибку в gRPC-статус. Отказы получают ErrorInfo с причиной.
func (s *OrderService) toStatus(err error, method string) error {
	code := codeFor(err)
	entry := s.logger.WithError(err).WithFields(log.Fields{"method": method, "code": code.String()})
	if code == codes.Internal {
		entry.Error("order operation failed")
	} else {
		entry.Debug("order operation rejected")
	}

	st := status.New(code, err.Error())
	rejected, ok := domain.AsRejection(err)
	if !ok {
		return st.Err()
	}
	info := &errdetails.ErrorInfo{
		Reason:   string(rejected.Reason),
		Domain:   errorDomain,
		Metadata: map[string]string{},
	}
	if rejected.ProductID != "" {
		info.Metadata["product_id"] = rejected.ProductID
	}
	if rejected.Reason == domain.RejectionInsufficientInventory {
		info.Metadata["available"] = strconv.Itoa(rejected.Available)
		info.Metadata["requested"] = strconv.Itoa(rejected.Requested)
	}
	detailed, detailErr := st.WithDetails(info)
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

func codeFor(err error) codes.Code {
	if rejected, ok := domain.AsRejection(err); ok {
		switch rejected.Reason {
		case domain.RejectionEmptyOrder:
			return codes.InvalidArgument
		case domain.RejectionProductNotFound:
			return codes.NotFound
		case domain.RejectionProductInactive, domain.RejectionInsufficientInventory:
			return codes.FailedPrecondition
		case domain.RejectionUpstreamUnavailable:
			return codes.Unavailable
		}
	}
	switch {
	case errors.Is(err, domain.ErrOrderPersistenceFailed):
		return codes.Internal
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrInvalidStatus):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrOrderNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrOrderVersionConflict):
		return codes.Aborted
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Internal
}

// LoggingInterceptor пишет строку лога на каждый unary-вызов.
func LoggingInterceptor(logger *log.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.WithFields(log.Fields{
			"method":      info.FullMethod,
			"code":        status.Code(err).String(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("grpc request served")
		return resp, err
	}
}

var _ OrderServiceServer = (*OrderService)(nil)
