package returns

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidationError is a field-level draft validation failure. The Field
// names the offending input so clients can attach the message to the
// right form control.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new field-level validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ReconciliationError reports why an approval's stock reconciliation
// was aborted. The whole transaction rolls back and the return stays
// PENDING; the error names the product so the approver can act on it.
type ReconciliationError struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Requested   decimal.Decimal `json:"requested"`
	Available   decimal.Decimal `json:"available"`
	Reason      string          `json:"reason"`
}

// Error implements the error interface
func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed for %s: %s (requested %s, available %s)",
		e.ProductName, e.Reason, e.Requested, e.Available)
}

// NewInsufficientStockError reports an exchange line that cannot be
// fulfilled from current stock
func NewInsufficientStockError(productID uuid.UUID, name string, requested, available decimal.Decimal) *ReconciliationError {
	return &ReconciliationError{
		ProductID:   productID,
		ProductName: name,
		Requested:   requested,
		Available:   available,
		Reason:      "insufficient stock for exchange item",
	}
}

// NewExceedsReturnableError reports a return line whose quantity no
// longer fits within what is still returnable on the sale, typically
// because a concurrent return against the same sale completed first
func NewExceedsReturnableError(productID uuid.UUID, name string, requested, available decimal.Decimal) *ReconciliationError {
	return &ReconciliationError{
		ProductID:   productID,
		ProductName: name,
		Requested:   requested,
		Available:   available,
		Reason:      "quantity exceeds the remaining returnable quantity",
	}
}
