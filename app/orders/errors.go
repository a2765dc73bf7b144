package orders

import (
	"errors"
	"fmt"

	"github.com/mytheresa/go-storefront/app/database"
)

// ErrInvalidOrder is returned for a request with no items or a non-positive
// quantity. Upstream validation normally rejects these first.
var ErrInvalidOrder = errors.New("invalid order request")

// ProductNotFoundError reports a referenced product that does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with ID %d not found", e.ProductID)
}

// InsufficientStockError reports a requested quantity above available stock.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product ID %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// TransactionError wraps any other fault raised during checkout. The
// transaction has been rolled back before it is returned.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("order transaction failed: %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// IsBusinessError reports whether err is a client-correctable checkout
// rejection rather than an infrastructure failure.
func IsBusinessError(err error) bool {
	var notFound *ProductNotFoundError
	var noStock *InsufficientStockError
	return errors.As(err, &notFound) || errors.As(err, &noStock) || errors.Is(err, ErrInvalidOrder)
}

func failureReason(err error) string {
	var notFound *ProductNotFoundError
	var noStock *InsufficientStockError
	switch {
	case errors.As(err, &notFound):
		return "product_not_found"
	case errors.As(err, &noStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidOrder):
		return "invalid_order"
	case errors.Is(err, database.ErrNotConnected):
		return "not_connected"
	default:
		return "transaction_failure"
	}
}
