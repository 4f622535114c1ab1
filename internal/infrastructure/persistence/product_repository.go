package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/shared"
)

// GormProductRepository implements ProductRepository using GORM.
// The catalog is owned by the merchandising system; products deleted
// there keep their row with deleted_at set and are invisible here.
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a live product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindByIDs finds the live products among the given IDs
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []catalog.Product
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindInStock finds live products with stock available
func (r *GormProductRepository) FindInStock(ctx context.Context, filter shared.Filter) ([]catalog.Product, error) {
	var products []catalog.Product
	query := r.applyFilter(r.inStockQuery(ctx), filter)
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// CountInStock counts live products with stock available
func (r *GormProductRepository) CountInStock(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applySearch(r.inStockQuery(ctx), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// IncreaseStock unconditionally adds quantity to a product's stock
func (r *GormProductRepository) IncreaseStock(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	return increaseStock(r.db.WithContext(ctx), id, quantity)
}

// DecreaseStock atomically subtracts quantity, failing when less than
// quantity is on hand. The guard lives in the WHERE clause so the check
// and the mutation cannot be split by a concurrent writer.
func (r *GormProductRepository) DecreaseStock(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	return decreaseStock(r.db.WithContext(ctx), id, quantity)
}

func increaseStock(db *gorm.DB, id uuid.UUID, quantity decimal.Decimal) error {
	result := db.Model(&catalog.Product{}).
		Where("id = ? AND deleted_at IS NULL", id).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func decreaseStock(db *gorm.DB, id uuid.UUID, quantity decimal.Decimal) error {
	result := db.Model(&catalog.Product{}).
		Where("id = ? AND deleted_at IS NULL AND stock_quantity >= ?", id, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing product from a stock shortfall
		var count int64
		if err := db.Model(&catalog.Product{}).
			Where("id = ? AND deleted_at IS NULL", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrInsufficientStock
	}
	return nil
}

func (r *GormProductRepository) inStockQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&catalog.Product{}).
		Where("deleted_at IS NULL AND stock_quantity > 0")
}

func (r *GormProductRepository) applySearch(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR sku ILIKE ?", searchPattern, searchPattern)
	}
	return query
}

func (r *GormProductRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applySearch(query, filter)

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
		query = query.Order("name ASC")
	}

	return query
}

// Ensure GormProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
