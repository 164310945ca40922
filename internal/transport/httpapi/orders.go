package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrderService: операции сервиса заказов, доступные через REST.
type OrderService interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error)
	CancelOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, query domain.OrderQuery) (domain.OrderPage, error)
	Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error)
	Drift(ctx context.Context, id string) ([]domain.InventoryDrift, error)
}

// PlaceOrderRequest: тело POST /orders.
type PlaceOrderRequest struct {
	CustomerID string             `json:"customerId,omitempty"`
	Items      []OrderItemRequest `json:"items"`
}

// OrderItemRequest: строка запроса на заказ.
type OrderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// UpdateStatusRequest: тело PATCH /orders/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// OrderResponse: JSON-представление заказа.
type OrderResponse struct {
	ID          string              `json:"id"`
	OrderNumber string              `json:"orderNumber"`
	CustomerID  string              `json:"customerId,omitempty"`
	Status      domain.OrderStatus  `json:"status"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	Currency    string              `json:"currency"`
	Items       []OrderLineResponse `json:"items"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// OrderLineResponse: позиция заказа.
type OrderLineResponse struct {
	ID              string                 `json:"id"`
	ProductID       string                 `json:"productId"`
	Quantity        int                    `json:"quantity"`
	UnitPrice       decimal.Decimal        `json:"unitPrice"`
	LineTotal       decimal.Decimal        `json:"lineTotal"`
	ProductSnapshot domain.ProductSnapshot `json:"productSnapshot"`
}

// OrderListResponse: страница заказов.
type OrderListResponse struct {
	Data []OrderResponse `json:"data"`
	Meta domain.PageMeta `json:"meta"`
}

// TimelineEventResponse: событие истории заказа.
type TimelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// DriftResponse: запись о неприменённом списании.
type DriftResponse struct {
	ID        string             `json:"id"`
	ProductID string             `json:"productId"`
	Delta     int                `json:"delta"`
	Status    domain.DriftStatus `json:"status"`
	Attempts  int                `json:"attempts"`
	LastError string             `json:"lastError,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func newOrderResponse(o domain.Order) OrderResponse {
	items := make([]OrderLineResponse, 0, len(o.Items))
	for _, line := range o.Items {
		items = append(items, OrderLineResponse{
			ID:              line.ID,
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			LineTotal:       line.LineTotal,
			ProductSnapshot: line.Snapshot,
		})
	}
	return OrderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		Items:       items,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

// OrderHandler обслуживает /orders.
type OrderHandler struct {
	svc    OrderService
	logger *log.Entry
}

// NewOrderRouter собирает роутер сервиса заказов.
func NewOrderRouter(svc OrderService, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.WithField("component", "order-http")
	}
	h := &OrderHandler{svc: svc, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/orders", h.placeOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}", h.getOrder).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}", h.cancelOrder).Methods(http.MethodDelete)
	r.HandleFunc("/orders/{id}/status", h.updateStatus).Methods(http.MethodPatch)
	r.HandleFunc("/orders/{id}/timeline", h.timeline).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}/drift", h.drift).Methods(http.MethodGet)
	r.Use(logMiddleware(logger))
	return r
}

func (h *OrderHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var body PlaceOrderRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, h.logger)
		return
	}
	req := domain.OrderRequest{CustomerID: body.CustomerID}
	for _, item := range body.Items {
		req.Items = append(req.Items, domain.OrderRequestItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.svc.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(order), h.logger)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order), h.logger)
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.CancelOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order), h.logger)
}

func (h *OrderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body UpdateStatusRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, h.logger)
		return
	}
	status, err := domain.ParseOrderStatus(body.Status)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	order, err := h.svc.UpdateStatus(r.Context(), mux.Vars(r)["id"], status)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order), h.logger)
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, err := pagination(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	query := domain.OrderQuery{Pagination: p, Search: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			writeError(w, err, h.logger)
			return
		}
		query.Status = status
	}

	page, err := h.svc.ListOrders(r.Context(), query)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	resp := OrderListResponse{Data: make([]OrderResponse, 0, len(page.Data)), Meta: page.Meta}
	for _, order := range page.Data {
		resp.Data = append(resp.Data, newOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

func (h *OrderHandler) timeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Timeline(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	resp := make([]TimelineEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, TimelineEventResponse{Type: ev.Type, Reason: ev.Reason, Occurred: ev.Occurred})
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

func (h *OrderHandler) drift(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.svc.Drift(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	resp := make([]DriftResponse, 0, len(drifts))
	for _, d := range drifts {
		resp = append(resp, DriftResponse{
			ID:        d.ID,
			ProductID: d.ProductID,
			Delta:     d.Delta,
			Status:    d.Status,
			Attempts:  d.Attempts,
			LastError: d.LastError,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}
