package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storeops/backend/internal/domain/sale"
	"github.com/storeops/backend/internal/domain/shared"
)

// GormSaleRepository implements SaleRepository using GORM. Sales are
// written by the point-of-sale system; this repository reads them and
// only ever writes the RETURNED status flag.
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// FindByID finds a sale by its ID, items included
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	var s sale.Sale
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindByInvoiceNumber finds a sale by its invoice number
func (r *GormSaleRepository) FindByInvoiceNumber(ctx context.Context, invoiceNumber string) (*sale.Sale, error) {
	var s sale.Sale
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("invoice_number = ?", invoiceNumber).
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindAll finds sales with filtering and pagination
func (r *GormSaleRepository) FindAll(ctx context.Context, filter shared.Filter) ([]sale.Sale, error) {
	var sales []sale.Sale
	query := r.applyFilter(r.db.WithContext(ctx).Model(&sale.Sale{}), filter).
		Preload("Items")
	if err := query.Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

// Count counts sales with optional filters
func (r *GormSaleRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&sale.Sale{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MarkReturned flips a COMPLETED sale to RETURNED. Used inside the
// reconciliation transaction once every item has been fully returned.
func (r *GormSaleRepository) MarkReturned(ctx context.Context, id uuid.UUID) error {
	return markSaleReturned(r.db.WithContext(ctx), id)
}

func markSaleReturned(db *gorm.DB, id uuid.UUID) error {
	result := db.Model(&sale.Sale{}).
		Where("id = ? AND status = ?", id, sale.SaleStatusCompleted).
		Updates(map[string]any{
			"status":     sale.SaleStatusReturned,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormSaleRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
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
		query = query.Order("sold_at DESC")
	}

	return query
}

func (r *GormSaleRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		// LOWER(...) LIKE instead of ILIKE so the sqlite-backed tests
		// run the same SQL as postgres
		searchPattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(invoice_number) LIKE ? OR LOWER(customer_name) LIKE ?",
			searchPattern, searchPattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "customer_id":
			query = query.Where("customer_id = ?", value)
		case "start_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("sold_at >= ?", t)
			}
		case "end_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("sold_at <= ?", t)
			}
		}
	}

	return query
}

// Ensure GormSaleRepository implements SaleRepository
var _ sale.SaleRepository = (*GormSaleRepository)(nil)
