package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/backend/internal/domain/shared"
)

// ProductRepository defines the interface for product catalog access.
// Deleted products are invisible to every method; a missing ID is how a
// dangling product reference on an old sale manifests.
type ProductRepository interface {
	// FindByID finds a live product by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByIDs finds the live products among the given IDs.
	// IDs without a live product are silently absent from the result.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	// FindInStock finds products with stock quantity greater than zero
	FindInStock(ctx context.Context, filter shared.Filter) ([]Product, error)

	// CountInStock counts products with stock quantity greater than zero
	CountInStock(ctx context.Context, filter shared.Filter) (int64, error)

	// IncreaseStock unconditionally adds quantity to a product's stock
	IncreaseStock(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error

	// DecreaseStock atomically subtracts quantity from a product's stock,
	// failing with shared.ErrInsufficientStock if less than quantity is
	// available. The check and the mutation are a single operation.
	DecreaseStock(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error
}
