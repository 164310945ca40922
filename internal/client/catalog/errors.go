package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// UpstreamError описывает неуспешный вызов каталога. Всегда сопоставляется с domain.ErrUpstreamUnavailable.
type UpstreamError struct {
	Op        string
	ProductID string
	// StatusCode равен нулю, если ответ не был получен.
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Op, e.ProductID)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap сопоставляет ошибку с ErrUpstreamUnavailable, а отказ каталога в корректировке ещё и с ErrInventoryRejected.
func (e *UpstreamError) Unwrap() []error {
	errs := []error{domain.ErrUpstreamUnavailable}
	if e.Rejected() {
		errs = append(errs, domain.ErrInventoryRejected)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Rejected сообщает, что каталог отклонил запрос по бизнес-причине и повтор не поможет.
func (e *UpstreamError) Rejected() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func newStatusError(op, productID string, resp *http.Response) *UpstreamError {
	return &UpstreamError{
		Op:         op,
		ProductID:  productID,
		StatusCode: resp.StatusCode,
		Message:    readErrorMessage(resp.Body),
	}
}

// readErrorMessage достаёт message/error из JSON-тела или возвращает тело как есть.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
