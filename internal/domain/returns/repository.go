package returns

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/backend/internal/domain/shared"
)

// ReturnStats aggregates returns for the list-view header
type ReturnStats struct {
	TotalReturns  int64                  `json:"total_returns"`
	ByStatus      map[ReturnStatus]int64 `json:"by_status"`
	TotalRefunded decimal.Decimal        `json:"total_refunded"` // Sum of completed return totals
}

// ReturnRepository defines the interface for return persistence.
// Returns are append-and-decide: created once, decided once, never
// deleted.
type ReturnRepository interface {
	// Create persists a new return, assigning its return number inside
	// the same transaction
	Create(ctx context.Context, ret *Return) error

	// FindByID finds a return by ID, items and exchange items included
	FindByID(ctx context.Context, id uuid.UUID) (*Return, error)

	// FindByReturnNumber finds a return by its business number
	FindByReturnNumber(ctx context.Context, number string) (*Return, error)

	// FindAll finds returns with filtering and pagination
	FindAll(ctx context.Context, filter shared.Filter) ([]Return, error)

	// Count counts returns with optional filters
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Stats aggregates counts and totals over all returns
	Stats(ctx context.Context) (*ReturnStats, error)

	// FindBySale finds all returns recorded against a sale
	FindBySale(ctx context.Context, saleID uuid.UUID) ([]Return, error)

	// ReturnedQuantitiesBySale sums non-rejected returned quantities for
	// a sale, keyed by product
	ReturnedQuantitiesBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)

	// SaveDecision persists a decided return's status and decision
	// fields, guarded by the status the caller loaded. A stale guard
	// fails with shared.ErrConcurrentConflict.
	SaveDecision(ctx context.Context, ret *Return, loadedStatus ReturnStatus) error
}

// ReconciliationStore applies an approved return's stock effects and its
// terminal status as one atomic unit. Any failure rolls back everything
// and leaves the return PENDING.
type ReconciliationStore interface {
	// Reconcile, inside a single transaction:
	//   - re-validates every return line against the quantities still
	//     returnable on the sale
	//   - decrements stock for exchange lines, failing on shortfall
	//   - increments stock for returned lines
	//   - persists the COMPLETED status and decision fields, guarded by
	//     the PENDING status
	//   - flips the sale to RETURNED when every line is now fully
	//     returned
	// Validation failures surface as *ReconciliationError.
	Reconcile(ctx context.Context, ret *Return) error
}
