// Package httpapi содержит REST-обработчики сервисов заказов и каталога на gorilla/mux.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const maxRequestBody = 1 << 20

// ErrorResponse: тело ответа с ошибкой.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Reason    string `json:"reason,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

// statusRecorder запоминает код ответа для access-лога.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logMiddleware пишет access-лог и извлекает W3C trace context из заголовков.
func logMiddleware(logger *log.Entry) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			h.ServeHTTP(rec, r.WithContext(ctx))

			logger.WithFields(log.Fields{
				"method":      r.Method,
				"url":         r.URL.String(),
				"remoteAddr":  r.RemoteAddr,
				"userAgent":   r.UserAgent(),
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request served")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *log.Entry) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("write response body")
	}
}

func writeError(w http.ResponseWriter, err error, logger *log.Entry) {
	status, code := errorStatus(err)
	resp := ErrorResponse{Error: code, Message: err.Error()}
	if rejected, ok := domain.AsRejection(err); ok {
		resp.Reason = string(rejected.Reason)
		resp.ProductID = rejected.ProductID
		if rejected.Reason == domain.RejectionInsufficientInventory {
			resp.Available = &rejected.Available
			resp.Requested = &rejected.Requested
		}
	}
	entry := logger.WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	writeJSON(w, status, resp, logger)
}

// errorStatus сопоставляет доменные ошибки с HTTP-кодами.
func errorStatus(err error) (int, string) {
	if rejected, ok := domain.AsRejection(err); ok {
		switch rejected.Reason {
		case domain.RejectionProductNotFound:
			return http.StatusNotFound, "not_found"
		case domain.RejectionUpstreamUnavailable:
			return http.StatusServiceUnavailable, "upstream_unavailable"
		}
		return http.StatusBadRequest, "order_rejected"
	}

	switch {
	case errors.Is(err, domain.ErrOrderPersistenceFailed):
		return http.StatusInternalServerError, "internal"
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidProductStatus),
		errors.Is(err, domain.ErrInsufficientInventory):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrSKUConflict),
		domain.IsVersionConflict(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

// decodeBody разбирает JSON-тело запроса; ошибка оборачивает ErrInvalidRequest.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		return errors.Join(domain.ErrInvalidRequest, err)
	}
	return nil
}

// pagination читает page/limit/sortBy/sortOrder из query string.
func pagination(r *http.Request) (domain.Pagination, error) {
	q := r.URL.Query()
	var p domain.Pagination
	var err error
	if p.Page, err = intParam(q.Get("page")); err != nil {
		return p, err
	}
	if p.Limit, err = intParam(q.Get("limit")); err != nil {
		return p, err
	}
	p.SortBy = q.Get("sortBy")
	p.SortOrder = domain.SortOrder(q.Get("sortOrder"))
	return p, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Join(domain.ErrInvalidQuery, err)
	}
	return v, nil
}
