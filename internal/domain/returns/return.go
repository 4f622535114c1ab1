package returns

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/sale"
	"github.com/storeops/backend/internal/domain/shared"
)

// ReturnStatus represents the status of a return
type ReturnStatus string

const (
	ReturnStatusPending   ReturnStatus = "PENDING"   // Waiting for approval
	ReturnStatusApproved  ReturnStatus = "APPROVED"  // Transient: reconciliation in flight
	ReturnStatusRejected  ReturnStatus = "REJECTED"  // Rejected by approver
	ReturnStatusCompleted ReturnStatus = "COMPLETED" // Stock effects applied
)

// IsValid checks if the status is a valid ReturnStatus
func (s ReturnStatus) IsValid() bool {
	switch s {
	case ReturnStatusPending, ReturnStatusApproved, ReturnStatusRejected, ReturnStatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of ReturnStatus
func (s ReturnStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// Transitions are one-directional; REJECTED and COMPLETED are terminal.
// APPROVED never rests: it only exists inside the reconciliation
// transaction, between approval and completion.
func (s ReturnStatus) CanTransitionTo(target ReturnStatus) bool {
	switch s {
	case ReturnStatusPending:
		return target == ReturnStatusApproved || target == ReturnStatusRejected
	case ReturnStatusApproved:
		return target == ReturnStatusCompleted
	case ReturnStatusRejected, ReturnStatusCompleted:
		return false
	}
	return false
}

// IsTerminal returns true for states that accept no further transitions
func (s ReturnStatus) IsTerminal() bool {
	return s == ReturnStatusRejected || s == ReturnStatusCompleted
}

// ReturnReason categorizes why items are being returned
type ReturnReason string

const (
	ReasonDefective ReturnReason = "DEFECTIVE"
	ReasonIncorrect ReturnReason = "INCORRECT"
	ReasonNotNeeded ReturnReason = "NOT_NEEDED"
	ReasonExchange  ReturnReason = "EXCHANGE"
	ReasonOther     ReturnReason = "OTHER"
)

// IsValid checks if the reason is a valid ReturnReason
func (r ReturnReason) IsValid() bool {
	switch r {
	case ReasonDefective, ReasonIncorrect, ReasonNotNeeded, ReasonExchange, ReasonOther:
		return true
	}
	return false
}

// String returns the string representation of ReturnReason
func (r ReturnReason) String() string {
	return string(r)
}

// IsExchange returns true if the reason selects the exchange payload
func (r ReturnReason) IsExchange() bool {
	return r == ReasonExchange
}

// RefundMethod is how a non-exchange return's value goes back to the customer
type RefundMethod string

const (
	RefundCash        RefundMethod = "CASH"
	RefundCard        RefundMethod = "CARD"
	RefundStoreCredit RefundMethod = "STORE_CREDIT"
)

// IsValid checks if the method is a valid RefundMethod
func (m RefundMethod) IsValid() bool {
	switch m {
	case RefundCash, RefundCard, RefundStoreCredit:
		return true
	}
	return false
}

// String returns the string representation of RefundMethod
func (m RefundMethod) String() string {
	return string(m)
}

// ReturnItem represents a line item being returned
type ReturnItem struct {
	ID                uuid.UUID
	ReturnID          uuid.UUID
	SaleItemID        uuid.UUID // Reference to the original sale line
	ProductID         uuid.UUID
	ProductName       string
	ProductSKU        string
	Quantity          decimal.Decimal
	OriginalUnitPrice decimal.Decimal // Price at the time of sale
	ReturnAmount      decimal.Decimal // Quantity * OriginalUnitPrice
	CreatedAt         time.Time
}

// ExchangeItem represents a replacement product line on an exchange return
type ExchangeItem struct {
	ID          uuid.UUID
	ReturnID    uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	ProductSKU  string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal // Current catalog price at draft time
	CreatedAt   time.Time
}

// LineTotal returns quantity times unit price
func (i *ExchangeItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// ItemSelection pairs a sale item with the quantity being returned
type ItemSelection struct {
	SaleItemID uuid.UUID
	Quantity   decimal.Decimal
}

// ExchangeSelection pairs a replacement product with the requested quantity
type ExchangeSelection struct {
	Product  catalog.Product
	Quantity decimal.Decimal
}

// Return is the aggregate root for a customer return or exchange.
// It is created in PENDING from a submitted draft and afterwards mutated
// only by the approval engine; returns are permanent audit records and
// are never deleted.
type Return struct {
	shared.BaseEntity
	ReturnNumber      string
	SaleID            uuid.UUID // Immutable once created
	SaleInvoiceNumber string
	CustomerID        *uuid.UUID // Copied from the sale at creation
	CustomerName      string
	Items             []ReturnItem `gorm:"foreignKey:ReturnID;references:ID"`
	Reason            ReturnReason
	ExchangeItems     []ExchangeItem `gorm:"foreignKey:ReturnID;references:ID"` // Non-empty iff Reason is EXCHANGE
	RefundMethod      *RefundMethod   // Set iff Reason is not EXCHANGE
	PriceDifference   decimal.Decimal // Meaningful only for EXCHANGE
	TotalAmount       decimal.Decimal // Sum of item return amounts
	Notes             string
	Status            ReturnStatus
	ProcessedBy       uuid.UUID // Who submitted the draft
	ApprovedBy        *uuid.UUID
	DecisionNotes     string
	DecidedAt         *time.Time
}

// NewReturn assembles a Return from a submitted draft. The selections
// have already been clamped by the draft builder; this re-validates every
// invariant so a Return can never be constructed in an inconsistent shape.
func NewReturn(
	resolved *sale.ResolvedSale,
	selections []ItemSelection,
	reason ReturnReason,
	refundMethod *RefundMethod,
	exchanges []ExchangeSelection,
	notes string,
	processedBy uuid.UUID,
) (*Return, error) {
	if resolved == nil || resolved.Sale == nil {
		return nil, shared.NewDomainError("INVALID_SALE", "Sale cannot be nil")
	}
	if processedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROCESSOR", "Processing user is required")
	}
	if !reason.IsValid() {
		return nil, NewValidationError("reason", "a return reason is required")
	}

	if reason.IsExchange() {
		if refundMethod != nil {
			return nil, NewValidationError("refund_method", "refund method must be absent for exchanges")
		}
		if len(exchanges) == 0 {
			return nil, NewValidationError("exchange_items", "an exchange requires at least one replacement item")
		}
	} else {
		if len(exchanges) > 0 {
			return nil, NewValidationError("exchange_items", "exchange items are only allowed when the reason is exchange")
		}
		if refundMethod == nil {
			return nil, NewValidationError("refund_method", "a refund method is required")
		}
		if !refundMethod.IsValid() {
			return nil, NewValidationError("refund_method", fmt.Sprintf("unknown refund method %q", *refundMethod))
		}
	}

	r := &Return{
		BaseEntity:        shared.NewBaseEntity(),
		SaleID:            resolved.Sale.ID,
		SaleInvoiceNumber: resolved.Sale.InvoiceNumber,
		CustomerID:        resolved.Sale.CustomerID,
		CustomerName:      resolved.Sale.CustomerName,
		Reason:            reason,
		RefundMethod:      refundMethod,
		Notes:             notes,
		Status:            ReturnStatusPending,
		ProcessedBy:       processedBy,
	}

	for _, sel := range selections {
		if sel.Quantity.LessThanOrEqual(decimal.Zero) {
			continue
		}
		item := resolved.Item(sel.SaleItemID)
		if item == nil {
			return nil, NewValidationError("items", fmt.Sprintf("sale item %s not found on sale", sel.SaleItemID))
		}
		if sel.Quantity.GreaterThan(item.RemainingQuantity) {
			return nil, NewValidationError("items", fmt.Sprintf(
				"quantity %s for %s exceeds the returnable quantity %s",
				sel.Quantity, item.ProductName, item.RemainingQuantity))
		}
		r.Items = append(r.Items, ReturnItem{
			ID:                uuid.New(),
			ReturnID:          r.ID,
			SaleItemID:        item.SaleItemID,
			ProductID:         item.ProductID,
			ProductName:       item.ProductName,
			ProductSKU:        item.ProductSKU,
			Quantity:          sel.Quantity,
			OriginalUnitPrice: item.PriceAtSale,
			ReturnAmount:      sel.Quantity.Mul(item.PriceAtSale),
			CreatedAt:         r.CreatedAt,
		})
	}
	if len(r.Items) == 0 {
		return nil, NewValidationError("items", "at least one item with a positive quantity must be selected")
	}

	for _, ex := range exchanges {
		if ex.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, NewValidationError("exchange_items", fmt.Sprintf("exchange quantity for %s must be positive", ex.Product.Name))
		}
		if !ex.Product.HasStock(ex.Quantity) {
			return nil, NewValidationError("exchange_items", fmt.Sprintf(
				"requested %s of %s but only %s in stock",
				ex.Quantity, ex.Product.Name, ex.Product.StockQuantity))
		}
		r.ExchangeItems = append(r.ExchangeItems, ExchangeItem{
			ID:          uuid.New(),
			ReturnID:    r.ID,
			ProductID:   ex.Product.ID,
			ProductName: ex.Product.Name,
			ProductSKU:  ex.Product.SKU,
			Quantity:    ex.Quantity,
			UnitPrice:   ex.Product.Price,
			CreatedAt:   r.CreatedAt,
		})
	}

	r.TotalAmount = ReturnTotal(r.Items)
	if reason.IsExchange() {
		r.PriceDifference = PriceDifference(r.Items, r.ExchangeItems)
	}

	return r, nil
}

// Settlement recomputes the monetary settlement from persisted state.
// It is pure: the result depends only on the items and reason stored on
// the Return, never on draft-time caches.
func (r *Return) Settlement() Settlement {
	return ComputeSettlement(r.Reason, r.RefundMethod, r.Items, r.ExchangeItems)
}

// Approve transitions PENDING to APPROVED. Callers must follow up with
// Complete in the same reconciliation transaction; an approved Return is
// never persisted without its stock effects.
func (r *Return) Approve(approverID uuid.UUID, notes string) error {
	if approverID == uuid.Nil {
		return shared.NewDomainError("INVALID_APPROVER", "Approver ID cannot be empty")
	}
	if !r.Status.CanTransitionTo(ReturnStatusApproved) {
		return transitionError(r.Status, ReturnStatusApproved)
	}

	now := time.Now()
	r.Status = ReturnStatusApproved
	r.ApprovedBy = &approverID
	r.DecisionNotes = notes
	r.DecidedAt = &now
	r.UpdatedAt = now

	return nil
}

// Complete transitions APPROVED to COMPLETED after stock reconciliation
func (r *Return) Complete() error {
	if !r.Status.CanTransitionTo(ReturnStatusCompleted) {
		return transitionError(r.Status, ReturnStatusCompleted)
	}

	now := time.Now()
	r.Status = ReturnStatusCompleted
	r.UpdatedAt = now

	return nil
}

// Reject transitions PENDING to REJECTED. A rejection note is required;
// rejection has no stock or financial effects.
func (r *Return) Reject(rejecterID uuid.UUID, notes string) error {
	if rejecterID == uuid.Nil {
		return shared.NewDomainError("INVALID_REJECTER", "Rejecter ID cannot be empty")
	}
	if notes == "" {
		return NewValidationError("notes", "a rejection note is required")
	}
	if !r.Status.CanTransitionTo(ReturnStatusRejected) {
		return transitionError(r.Status, ReturnStatusRejected)
	}

	now := time.Now()
	r.Status = ReturnStatusRejected
	r.ApprovedBy = &rejecterID
	r.DecisionNotes = notes
	r.DecidedAt = &now
	r.UpdatedAt = now

	return nil
}

// IsPending returns true if the return is awaiting a decision
func (r *Return) IsPending() bool {
	return r.Status == ReturnStatusPending
}

// IsCompleted returns true if stock effects have been applied
func (r *Return) IsCompleted() bool {
	return r.Status == ReturnStatusCompleted
}

// IsRejected returns true if the return was rejected
func (r *Return) IsRejected() bool {
	return r.Status == ReturnStatusRejected
}

// IsExchange returns true if this return swaps items rather than refunds
func (r *Return) IsExchange() bool {
	return r.Reason.IsExchange()
}

// ItemCount returns the number of returned line items
func (r *Return) ItemCount() int {
	return len(r.Items)
}

// TotalReturnQuantity returns the sum of all returned quantities
func (r *Return) TotalReturnQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Quantity)
	}
	return total
}

// QuantityByProduct aggregates returned quantities keyed by product
func (r *Return) QuantityByProduct() map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(r.Items))
	for _, item := range r.Items {
		out[item.ProductID] = out[item.ProductID].Add(item.Quantity)
	}
	return out
}

func transitionError(from, to ReturnStatus) error {
	return shared.NewDomainError("INVALID_TRANSITION",
		fmt.Sprintf("Cannot transition return from %s to %s", from, to))
}
