package sale

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/backend/internal/domain/shared"
)

// SaleStatus represents the status of a completed sale
type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "COMPLETED"
	SaleStatusCancelled SaleStatus = "CANCELLED"
	SaleStatusReturned  SaleStatus = "RETURNED" // Every item fully returned
)

// IsValid checks if the status is a valid SaleStatus
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusCompleted, SaleStatusCancelled, SaleStatusReturned:
		return true
	}
	return false
}

// String returns the string representation of SaleStatus
func (s SaleStatus) String() string {
	return string(s)
}

// SaleItem represents a single product line within a sale.
// ProductID may dangle: the product can be deleted from the catalog
// after the sale was recorded.
type SaleItem struct {
	ID          uuid.UUID
	SaleID      uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	ProductSKU  string
	Quantity    decimal.Decimal
	PriceAtSale decimal.Decimal // Unit price at the time of sale
	CreatedAt   time.Time
}

// LineTotal returns quantity times the price at sale
func (i *SaleItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.PriceAtSale)
}

// Sale represents a previously completed sale. It is read-only to the
// returns core except for the fully-returned status flag.
type Sale struct {
	shared.BaseEntity
	InvoiceNumber string
	Status        SaleStatus
	Items         []SaleItem `gorm:"foreignKey:SaleID;references:ID"`
	CustomerID    *uuid.UUID
	CustomerName  string
	TotalAmount   decimal.Decimal
	SoldBy        uuid.UUID
	SoldAt        time.Time
}

// GetItem returns an item by its ID
func (s *Sale) GetItem(itemID uuid.UUID) *SaleItem {
	for idx := range s.Items {
		if s.Items[idx].ID == itemID {
			return &s.Items[idx]
		}
	}
	return nil
}

// GetItemByProduct returns the first item for the given product
func (s *Sale) GetItemByProduct(productID uuid.UUID) *SaleItem {
	for idx := range s.Items {
		if s.Items[idx].ProductID == productID {
			return &s.Items[idx]
		}
	}
	return nil
}

// IsReturnable returns true if returns may be drafted against this sale
func (s *Sale) IsReturnable() bool {
	return s.Status == SaleStatusCompleted
}
