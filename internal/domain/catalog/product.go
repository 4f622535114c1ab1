package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/storeops/backend/internal/domain/shared"
)

// Product represents a sellable product in the store catalog.
// The catalog itself is managed by an external system; this core only
// reads product identity, price and the stock counter it reconciles.
type Product struct {
	shared.BaseEntity
	SKU           string
	Name          string
	Price         decimal.Decimal
	StockQuantity decimal.Decimal
}

// InStock returns true if the product has stock available
func (p *Product) InStock() bool {
	return p.StockQuantity.GreaterThan(decimal.Zero)
}

// HasStock returns true if at least the given quantity is available
func (p *Product) HasStock(quantity decimal.Decimal) bool {
	return p.StockQuantity.GreaterThanOrEqual(quantity)
}
