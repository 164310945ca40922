package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего номера заказа.
	ErrOrderNumberRequired = errors.New("order_number is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_amount must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// ErrInvalidStatus: неизвестный статус заказа.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidProductStatus: статус товара вне 0/1 и ACTIVE/INACTIVE.
	ErrInvalidProductStatus = errors.New("invalid product status")
	// ErrInvalidRequest: запрос не прошёл проверку формы (пустой productId, quantity <= 0).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidQuery: параметры пагинации или сортировки вне допустимых значений.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrOrderRejected: общий признак отказа в оформлении заказа.
	ErrOrderRejected = errors.New("order rejected")
	// ErrEmptyOrder: в запросе нет ни одной позиции.
	ErrEmptyOrder = errors.New("order must contain at least one item")
	// ErrProductNotFound: товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductInactive: товар снят с продажи.
	ErrProductInactive = errors.New("product is not active")
	// ErrInsufficientInventory: остатка не хватает на запрошенное количество.
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrUpstreamUnavailable: каталог недоступен, ответил ошибкой или по таймауту.
	ErrUpstreamUnavailable = errors.New("product service unavailable")
	// ErrInventoryRejected: каталог отклонил корректировку остатка по бизнес-причине; повтор бесполезен.
	ErrInventoryRejected = errors.New("inventory adjustment rejected")
	// ErrSKUConflict: SKU уже занят другим товаром.
	ErrSKUConflict = errors.New("product sku already exists")

	// ErrOrderPersistenceFailed: заказ не удалось сохранить; инвентарь не затрагивался.
	ErrOrderPersistenceFailed = errors.New("order persistence failed")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrProductVersionConflict: конфликт версий товара.
	ErrProductVersionConflict = errors.New("product version conflict")
	// ErrDriftNotFound: запись о расхождении инвентаря не найдена.
	ErrDriftNotFound = errors.New("inventory drift not found")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict) || errors.Is(err, ErrProductVersionConflict)
}

// RejectionReason: машинно-читаемая причина отказа в оформлении.
type RejectionReason string

const (
	RejectionEmptyOrder            RejectionReason = "EMPTY_ORDER"
	RejectionProductNotFound       RejectionReason = "PRODUCT_NOT_FOUND"
	RejectionProductInactive       RejectionReason = "PRODUCT_INACTIVE"
	RejectionInsufficientInventory RejectionReason = "INSUFFICIENT_INVENTORY"
	RejectionUpstreamUnavailable   RejectionReason = "UPSTREAM_UNAVAILABLE"
)

func (r RejectionReason) sentinel() error {
	switch r {
	case RejectionEmptyOrder:
		return ErrEmptyOrder
	case RejectionProductNotFound:
		return ErrProductNotFound
	case RejectionProductInactive:
		return ErrProductInactive
	case RejectionInsufficientInventory:
		return ErrInsufficientInventory
	case RejectionUpstreamUnavailable:
		return ErrUpstreamUnavailable
	}
	return nil
}

// OrderRejectedError описывает отказ в оформлении заказа. Заказ при этом не создаётся.
type OrderRejectedError struct {
	Reason    RejectionReason
	ProductID string
	// Available и Requested заполняются только для INSUFFICIENT_INVENTORY.
	Available int
	Requested int
	Err       error
}

func (e *OrderRejectedError) Error() string {
	switch e.Reason {
	case RejectionEmptyOrder:
		return ErrEmptyOrder.Error()
	case RejectionProductNotFound:
		return fmt.Sprintf("product with ID %s not found", e.ProductID)
	case RejectionProductInactive:
		return fmt.Sprintf("product %s is not active", e.ProductID)
	case RejectionInsufficientInventory:
		return fmt.Sprintf("insufficient inventory for product %s. Available: %d, Requested: %d",
			e.ProductID, e.Available, e.Requested)
	case RejectionUpstreamUnavailable:
		if e.Err != nil {
			return fmt.Sprintf("failed to fetch product %s: %v", e.ProductID, e.Err)
		}
		return fmt.Sprintf("failed to fetch product %s", e.ProductID)
	}
	return ErrOrderRejected.Error()
}

// Unwrap позволяет errors.Is сопоставлять ошибку и с ErrOrderRejected, и с сентинелом причины.
func (e *OrderRejectedError) Unwrap() []error {
	errs := []error{ErrOrderRejected}
	if s := e.Reason.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Reject создаёт отказ с указанной причиной.
func Reject(reason RejectionReason, productID string, cause error) *OrderRejectedError {
	return &OrderRejectedError{Reason: reason, ProductID: productID, Err: cause}
}

// RejectInsufficient создаёт отказ по нехватке остатка.
func RejectInsufficient(productID string, available, requested int) *OrderRejectedError {
	return &OrderRejectedError{
		Reason:    RejectionInsufficientInventory,
		ProductID: productID,
		Available: available,
		Requested: requested,
	}
}

// AsRejection извлекает OrderRejectedError из цепочки ошибок.
func AsRejection(err error) (*OrderRejectedError, bool) {
	var rejected *OrderRejectedError
	if errors.As(err, &rejected) {
		return rejected, true
	}
	return nil, false
}
