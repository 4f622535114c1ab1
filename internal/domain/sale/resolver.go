package sale

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/shared"
)

// ErrSaleNotReturnable is returned when a sale exists but cannot accept
// further returns (cancelled or already fully returned)
var ErrSaleNotReturnable = shared.NewDomainError("SALE_NOT_RETURNABLE", "Sale is cancelled or already fully returned")

// ReturnedQuantityReader reports quantities already returned against a
// sale, keyed by product. Implemented by the returns repository; only
// non-rejected returns count.
type ReturnedQuantityReader interface {
	ReturnedQuantitiesBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

// ResolvedItem is a sale line whose product reference still resolves,
// annotated with the quantity still available to return
type ResolvedItem struct {
	SaleItemID        uuid.UUID
	ProductID         uuid.UUID
	ProductName       string
	ProductSKU        string
	SoldQuantity      decimal.Decimal
	RemainingQuantity decimal.Decimal // Sold minus already returned (non-rejected)
	PriceAtSale       decimal.Decimal
}

// ResolvedSale is a sale normalized for return drafting: only items with
// a live product reference, with a count of how many lines were dropped
type ResolvedSale struct {
	Sale          *Sale
	Items         []ResolvedItem
	ExcludedItems int // Lines dropped because their product was deleted
}

// Item returns a resolved item by its sale item ID
func (r *ResolvedSale) Item(saleItemID uuid.UUID) *ResolvedItem {
	for idx := range r.Items {
		if r.Items[idx].SaleItemID == saleItemID {
			return &r.Items[idx]
		}
	}
	return nil
}

// Resolver locates a sale by search key and normalizes its item list
// for return drafting
type Resolver struct {
	sales    SaleRepository
	products catalog.ProductRepository
	returned ReturnedQuantityReader
}

// NewResolver creates a new Resolver
func NewResolver(
	sales SaleRepository,
	products catalog.ProductRepository,
	returned ReturnedQuantityReader,
) *Resolver {
	return &Resolver{
		sales:    sales,
		products: products,
		returned: returned,
	}
}

// Resolve finds a sale by ID or invoice number and filters its items
// down to those whose product still exists. Items whose product was
// deleted are dropped and counted in ExcludedItems. A sale with no
// resolvable items, or one that is cancelled or fully returned, cannot
// be drafted against.
func (r *Resolver) Resolve(ctx context.Context, searchKey string) (*ResolvedSale, error) {
	s, err := r.find(ctx, searchKey)
	if err != nil {
		return nil, err
	}

	if !s.IsReturnable() {
		return nil, ErrSaleNotReturnable
	}

	productIDs := make([]uuid.UUID, 0, len(s.Items))
	for _, item := range s.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := r.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("resolving sale products: %w", err)
	}
	live := make(map[uuid.UUID]struct{}, len(products))
	for _, p := range products {
		live[p.ID] = struct{}{}
	}

	returned, err := r.returned.ReturnedQuantitiesBySale(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("loading returned quantities: %w", err)
	}

	resolved := &ResolvedSale{Sale: s, Items: make([]ResolvedItem, 0, len(s.Items))}
	for _, item := range s.Items {
		if _, ok := live[item.ProductID]; !ok {
			resolved.ExcludedItems++
			continue
		}

		remaining := item.Quantity.Sub(returned[item.ProductID])
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		resolved.Items = append(resolved.Items, ResolvedItem{
			SaleItemID:        item.ID,
			ProductID:         item.ProductID,
			ProductName:       item.ProductName,
			ProductSKU:        item.ProductSKU,
			SoldQuantity:      item.Quantity,
			RemainingQuantity: remaining,
			PriceAtSale:       item.PriceAtSale,
		})
	}

	if len(resolved.Items) == 0 {
		return nil, shared.ErrNoValidItems
	}

	return resolved, nil
}

// find locates the sale by UUID first, then by invoice number
func (r *Resolver) find(ctx context.Context, searchKey string) (*Sale, error) {
	if id, err := uuid.Parse(searchKey); err == nil {
		return r.sales.FindByID(ctx, id)
	}
	return r.sales.FindByInvoiceNumber(ctx, searchKey)
}
