package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	catalogclient "github.com/vladislavdragonenkov/storefront/internal/client/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ProductService: операции каталога, доступные через REST.
type ProductService interface {
	Create(ctx context.Context, in domain.NewProduct) (domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	GetBySKU(ctx context.Context, sku string) (domain.Product, error)
	Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error)
	AdjustInventory(ctx context.Context, id string, delta int) (domain.Product, error)
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, query domain.ProductQuery) (domain.ProductPage, error)
}

// CreateProductRequest: тело POST /products. SKU назначается сервисом.
type CreateProductRequest struct {
	Name           string                     `json:"name"`
	Description    string                     `json:"description,omitempty"`
	Price          decimal.Decimal            `json:"price"`
	Currency       string                     `json:"currency,omitempty"`
	InventoryCount int                        `json:"inventoryCount"`
	Status         *catalogclient.StatusValue `json:"status,omitempty"`
}

// UpdateProductRequest: тело PATCH /products/{id}; отсутствующие поля не меняются.
type UpdateProductRequest struct {
	SKU            *string                    `json:"sku,omitempty"`
	Name           *string                    `json:"name,omitempty"`
	Description    *string                    `json:"description,omitempty"`
	Price          *decimal.Decimal           `json:"price,omitempty"`
	Currency       *string                    `json:"currency,omitempty"`
	InventoryCount *int                       `json:"inventoryCount,omitempty"`
	Status         *catalogclient.StatusValue `json:"status,omitempty"`
}

func (r UpdateProductRequest) patch() domain.ProductPatch {
	return domain.ProductPatch{
		SKU:            r.SKU,
		Name:           r.Name,
		Description:    r.Description,
		Price:          r.Price,
		Currency:       r.Currency,
		InventoryCount: r.InventoryCount,
		Status:         statusPtr(r.Status),
	}
}

func statusPtr(v *catalogclient.StatusValue) *domain.ProductStatus {
	if v == nil {
		return nil
	}
	status := domain.ProductStatus(*v)
	return &status
}

// ProductListResponse: страница товаров.
type ProductListResponse struct {
	Data []catalogclient.ProductPayload `json:"data"`
	Meta domain.PageMeta                `json:"meta"`
}

// ProductHandler обслуживает /products.
type ProductHandler struct {
	svc    ProductService
	logger *log.Entry
}

// NewProductRouter собирает роутер сервиса каталога.
func NewProductRouter(svc ProductService, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.WithField("component", "catalog-http")
	}
	h := &ProductHandler{svc: svc, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/products", h.create).Methods(http.MethodPost)
	r.HandleFunc("/products", h.list).Methods(http.MethodGet)
	r.HandleFunc("/products/sku/{sku}", h.getBySKU).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}", h.update).Methods(http.MethodPatch)
	r.HandleFunc("/products/{id}", h.deactivate).Methods(http.MethodDelete)
	r.HandleFunc("/products/{id}/hard", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/products/{id}/inventory", h.adjustInventory).Methods(http.MethodPatch)
	r.Use(logMiddleware(logger))
	return r
}

func (h *ProductHandler) create(w http.ResponseWriter, r *http.Request) {
	var body CreateProductRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, h.logger)
		return
	}
	product, err := h.svc.Create(r.Context(), domain.NewProduct{
		Name:           body.Name,
		Description:    body.Description,
		Price:          body.Price,
		Currency:       body.Currency,
		InventoryCount: body.InventoryCount,
		Status:         statusPtr(body.Status),
	})
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, catalogclient.NewProductPayload(product), h.logger)
}

func (h *ProductHandler) get(w http.ResponseWriter, r *http.Request) {
	h.respondProduct(w, func(ctx context.Context) (domain.Product, error) {
		return h.svc.Get(ctx, mux.Vars(r)["id"])
	}, r)
}

func (h *ProductHandler) getBySKU(w http.ResponseWriter, r *http.Request) {
	h.respondProduct(w, func(ctx context.Context) (domain.Product, error) {
		return h.svc.GetBySKU(ctx, mux.Vars(r)["sku"])
	}, r)
}

func (h *ProductHandler) update(w http.ResponseWriter, r *http.Request) {
	var body UpdateProductRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, h.logger)
		return
	}
	h.respondProduct(w, func(ctx context.Context) (domain.Product, error) {
		return h.svc.Update(ctx, mux.Vars(r)["id"], body.patch())
	}, r)
}

func (h *ProductHandler) adjustInventory(w http.ResponseWriter, r *http.Request) {
	var body catalogclient.InventoryAdjustmentPayload
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, h.logger)
		return
	}
	h.respondProduct(w, func(ctx context.Context) (domain.Product, error) {
		return h.svc.AdjustInventory(ctx, mux.Vars(r)["id"], body.Quantity)
	}, r)
}

func (h *ProductHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Deactivate(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request) {
	p, err := pagination(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	query := domain.ProductQuery{Pagination: p, Search: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseProductStatus(raw)
		if err != nil {
			writeError(w, err, h.logger)
			return
		}
		query.Status = &status
	}

	page, err := h.svc.List(r.Context(), query)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	resp := ProductListResponse{Data: make([]catalogclient.ProductPayload, 0, len(page.Data)), Meta: page.Meta}
	for _, product := range page.Data {
		resp.Data = append(resp.Data, catalogclient.NewProductPayload(product))
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

func (h *ProductHandler) respondProduct(w http.ResponseWriter, load func(context.Context) (domain.Product, error), r *http.Request) {
	product, err := load(r.Context())
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, catalogclient.NewProductPayload(product), h.logger)
}
