package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/returns"
	"github.com/storeops/backend/internal/domain/shared"
)

// GormReturnRepository implements ReturnRepository and
// ReconciliationStore using GORM
type GormReturnRepository struct {
	db *gorm.DB
}

// NewGormReturnRepository creates a new GormReturnRepository
func NewGormReturnRepository(db *gorm.DB) *GormReturnRepository {
	return &GormReturnRepository{db: db}
}

// Create persists a new return. The return number is generated inside
// the transaction so a failed insert never burns a number.
func (r *GormReturnRepository) Create(ctx context.Context, ret *returns.Return) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := generateReturnNumber(tx)
		if err != nil {
			return err
		}
		ret.ReturnNumber = number

		if err := tx.Omit("Items", "ExchangeItems").Create(ret).Error; err != nil {
			return err
		}

		for i := range ret.Items {
			ret.Items[i].ReturnID = ret.ID
			if err := tx.Create(&ret.Items[i]).Error; err != nil {
				return err
			}
		}
		for i := range ret.ExchangeItems {
			ret.ExchangeItems[i].ReturnID = ret.ID
			if err := tx.Create(&ret.ExchangeItems[i]).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// FindByID finds a return by its ID
func (r *GormReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*returns.Return, error) {
	var ret returns.Return
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("ExchangeItems").
		First(&ret, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ret, nil
}

// FindByReturnNumber finds a return by its business number
func (r *GormReturnRepository) FindByReturnNumber(ctx context.Context, number string) (*returns.Return, error) {
	var ret returns.Return
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("ExchangeItems").
		Where("return_number = ?", number).
		First(&ret).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ret, nil
}

// FindAll finds returns with filtering and pagination
func (r *GormReturnRepository) FindAll(ctx context.Context, filter shared.Filter) ([]returns.Return, error) {
	var rets []returns.Return
	query := r.applyFilter(r.db.WithContext(ctx).Model(&returns.Return{}), filter).
		Preload("Items").
		Preload("ExchangeItems")
	if err := query.Find(&rets).Error; err != nil {
		return nil, err
	}
	return rets, nil
}

// Count counts returns with optional filters
func (r *GormReturnRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&returns.Return{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Stats aggregates counts per status and the total refunded on
// completed returns
func (r *GormReturnRepository) Stats(ctx context.Context) (*returns.ReturnStats, error) {
	stats := &returns.ReturnStats{
		ByStatus:      make(map[returns.ReturnStatus]int64),
		TotalRefunded: decimal.Zero,
	}

	var rows []struct {
		Status returns.ReturnStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&returns.Return{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.TotalReturns += row.Count
	}

	var total decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&returns.Return{}).
		Select("SUM(total_amount)").
		Where("status = ?", returns.ReturnStatusCompleted).
		Scan(&total).Error; err != nil {
		return nil, err
	}
	if total.Valid {
		stats.TotalRefunded = total.Decimal
	}

	return stats, nil
}

// FindBySale finds all returns recorded against a sale
func (r *GormReturnRepository) FindBySale(ctx context.Context, saleID uuid.UUID) ([]returns.Return, error) {
	var rets []returns.Return
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("ExchangeItems").
		Where("sale_id = ?", saleID).
		Order("created_at DESC").
		Find(&rets).Error; err != nil {
		return nil, err
	}
	return rets, nil
}

// ReturnedQuantitiesBySale sums non-rejected returned quantities for a
// sale, keyed by product. Pending returns count here: at draft time a
// unit already claimed by an open return is not offered again.
func (r *GormReturnRepository) ReturnedQuantitiesBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	return returnedQuantitiesBySale(r.db.WithContext(ctx), saleID, uuid.Nil, openOrSettledStatuses)
}

// SaveDecision persists the status and decision fields guarded by the
// status the caller loaded
func (r *GormReturnRepository) SaveDecision(ctx context.Context, ret *returns.Return, loadedStatus returns.ReturnStatus) error {
	return saveDecision(r.db.WithContext(ctx), ret, loadedStatus)
}

// Reconcile applies an approved return's stock effects and terminal
// status as one transaction. See ReconciliationStore for the contract.
func (r *GormReturnRepository) Reconcile(ctx context.Context, ret *returns.Return) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := revalidateReturnable(tx, ret); err != nil {
			return err
		}

		// Exchange lines first: a shortfall must abort before any stock
		// was added back
		for idx := range ret.ExchangeItems {
			ex := &ret.ExchangeItems[idx]
			if err := decreaseStock(tx, ex.ProductID, ex.Quantity); err != nil {
				if errors.Is(err, shared.ErrInsufficientStock) {
					available, lookupErr := currentStock(tx, ex.ProductID)
					if lookupErr != nil {
						return lookupErr
					}
					return returns.NewInsufficientStockError(ex.ProductID, ex.ProductName, ex.Quantity, available)
				}
				if errors.Is(err, shared.ErrNotFound) {
					return returns.NewInsufficientStockError(ex.ProductID, ex.ProductName, ex.Quantity, decimal.Zero)
				}
				return err
			}
		}

		for productID, quantity := range ret.QuantityByProduct() {
			if err := increaseStock(tx, productID, quantity); err != nil {
				// The product may have been deleted since the sale; the
				// returned unit then has no stock row to go back to
				if errors.Is(err, shared.ErrNotFound) {
					continue
				}
				return err
			}
		}

		if err := ret.Complete(); err != nil {
			return err
		}
		if err := saveDecision(tx, ret, returns.ReturnStatusPending); err != nil {
			return err
		}

		fullyReturned, err := saleFullyReturned(tx, ret.SaleID)
		if err != nil {
			return err
		}
		if fullyReturned {
			if err := markSaleReturned(tx, ret.SaleID); err != nil && !errors.Is(err, shared.ErrNotFound) {
				return err
			}
		}

		return nil
	})
}

// revalidateReturnable re-checks every line against what is still
// returnable on the sale, counting only other returns whose stock
// effects are settled. Pending siblings do not block each other: when
// two open returns together overclaim a product, the first approval
// wins and the second fails here against the settled total.
func revalidateReturnable(tx *gorm.DB, ret *returns.Return) error {
	sold, err := soldQuantitiesBySale(tx, ret.SaleID)
	if err != nil {
		return err
	}
	settledByOthers, err := returnedQuantitiesBySale(tx, ret.SaleID, ret.ID, settledStatuses)
	if err != nil {
		return err
	}

	for productID, requested := range ret.QuantityByProduct() {
		available := sold[productID].Sub(settledByOthers[productID])
		if available.IsNegative() {
			available = decimal.Zero
		}
		if requested.GreaterThan(available) {
			name := productID.String()
			for _, item := range ret.Items {
				if item.ProductID == productID {
					name = item.ProductName
					break
				}
			}
			return returns.NewExceedsReturnableError(productID, name, requested, available)
		}
	}

	return nil
}

func saveDecision(db *gorm.DB, ret *returns.Return, loadedStatus returns.ReturnStatus) error {
	result := db.Model(&returns.Return{}).
		Where("id = ? AND status = ?", ret.ID, loadedStatus).
		Updates(map[string]any{
			"status":         ret.Status,
			"approved_by":    ret.ApprovedBy,
			"decision_notes": ret.DecisionNotes,
			"decided_at":     ret.DecidedAt,
			"updated_at":     ret.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&returns.Return{}).
			Where("id = ?", ret.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrentConflict
	}
	return nil
}

type quantityRow struct {
	ProductID uuid.UUID
	Total     decimal.Decimal
}

func soldQuantitiesBySale(db *gorm.DB, saleID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []quantityRow
	if err := db.
		Table("sale_items").
		Select("product_id, SUM(quantity) AS total").
		Where("sale_id = ?", saleID).
		Group("product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}

// Status sets for the per-product quantity sums. Settled means the
// return's stock effects have been applied (or are being applied in the
// current transaction); open-or-settled additionally reserves units
// claimed by pending returns.
var (
	settledStatuses = []returns.ReturnStatus{
		returns.ReturnStatusApproved,
		returns.ReturnStatusCompleted,
	}
	openOrSettledStatuses = []returns.ReturnStatus{
		returns.ReturnStatusPending,
		returns.ReturnStatusApproved,
		returns.ReturnStatusCompleted,
	}
)

// returnedQuantitiesBySale sums return-item quantities for the sale,
// restricted to the given statuses and keyed by product.
// excludeReturnID carves out the return being reconciled.
func returnedQuantitiesBySale(db *gorm.DB, saleID, excludeReturnID uuid.UUID, statuses []returns.ReturnStatus) (map[uuid.UUID]decimal.Decimal, error) {
	query := db.
		Table("return_items").
		Select("return_items.product_id, SUM(return_items.quantity) AS total").
		Joins("JOIN returns ON returns.id = return_items.return_id").
		Where("returns.sale_id = ? AND returns.status IN ?", saleID, statuses).
		Group("return_items.product_id")
	if excludeReturnID != uuid.Nil {
		query = query.Where("returns.id <> ?", excludeReturnID)
	}

	var rows []quantityRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}

// saleFullyReturned reports whether every sold quantity is now covered
// by settled returns. Pending ones do not count; they may still be
// rejected.
func saleFullyReturned(db *gorm.DB, saleID uuid.UUID) (bool, error) {
	sold, err := soldQuantitiesBySale(db, saleID)
	if err != nil {
		return false, err
	}
	returned, err := returnedQuantitiesBySale(db, saleID, uuid.Nil, settledStatuses)
	if err != nil {
		return false, err
	}
	for productID, quantity := range sold {
		if returned[productID].LessThan(quantity) {
			return false, nil
		}
	}
	return len(sold) > 0, nil
}

func currentStock(db *gorm.DB, productID uuid.UUID) (decimal.Decimal, error) {
	var product catalog.Product
	if err := db.
		Where("id = ? AND deleted_at IS NULL", productID).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return product.StockQuantity, nil
}

// generateReturnNumber generates the next return number.
// Format: RT-YYYY-NNNNN (e.g., RT-2026-00001)
func generateReturnNumber(tx *gorm.DB) (string, error) {
	year := time.Now().Year()
	prefix := fmt.Sprintf("RT-%d-", year)

	var lastNumber string
	err := tx.Model(&returns.Return{}).
		Select("return_number").
		Where("return_number LIKE ?", prefix+"%").
		Order("return_number DESC").
		Limit(1).
		Scan(&lastNumber).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	var nextNum int64 = 1
	if lastNumber != "" {
		parts := strings.Split(lastNumber, "-")
		if len(parts) == 3 {
			var num int64
			if _, parseErr := fmt.Sscanf(parts[2], "%d", &num); parseErr == nil {
				nextNum = num + 1
			}
		}
	}

	return fmt.Sprintf("%s%05d", prefix, nextNum), nil
}

func (r *GormReturnRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}

func (r *GormReturnRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		// LOWER(...) LIKE instead of ILIKE so the sqlite-backed tests
		// run the same SQL as postgres
		searchPattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(
			"LOWER(return_number) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(sale_invoice_number) LIKE ?",
			searchPattern, searchPattern, searchPattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "reason":
			query = query.Where("reason = ?", value)
		case "sale_id":
			query = query.Where("sale_id = ?", value)
		case "customer_id":
			query = query.Where("customer_id = ?", value)
		case "start_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("created_at >= ?", t)
			}
		case "end_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("created_at <= ?", t)
			}
		}
	}

	return query
}

// Ensure GormReturnRepository implements both persistence contracts
var (
	_ returns.ReturnRepository    = (*GormReturnRepository)(nil)
	_ returns.ReconciliationStore = (*GormReturnRepository)(nil)
)
