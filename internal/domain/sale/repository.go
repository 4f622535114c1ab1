package sale

import (
	"context"

	"github.com/google/uuid"

	"github.com/storeops/backend/internal/domain/shared"
)

// SaleRepository defines the interface for sale persistence.
// Sales are written by the point-of-sale system; this core reads them
// and may only flip the fully-returned status flag.
type SaleRepository interface {
	// FindByID finds a sale by ID, items included
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindByInvoiceNumber finds a sale by its invoice number
	FindByInvoiceNumber(ctx context.Context, invoiceNumber string) (*Sale, error)

	// FindAll finds sales with filtering
	FindAll(ctx context.Context, filter shared.Filter) ([]Sale, error)

	// Count counts sales with optional filters
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// MarkReturned flips a sale's status to RETURNED once every item
	// has been fully returned
	MarkReturned(ctx context.Context, id uuid.UUID) error
}
