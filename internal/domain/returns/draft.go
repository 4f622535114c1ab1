package returns

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/sale"
	"github.com/storeops/backend/internal/domain/shared"
)

// DraftState is a step in the return drafting flow
type DraftState string

const (
	StateSelectSale          DraftState = "SELECT_SALE"
	StateSelectItems         DraftState = "SELECT_ITEMS"
	StateDetails             DraftState = "DETAILS"
	StateSelectExchangeItems DraftState = "SELECT_EXCHANGE_ITEMS"
	StateReady               DraftState = "READY"
)

// String returns the string representation of DraftState
func (s DraftState) String() string {
	return string(s)
}

type draftExchangeLine struct {
	product  catalog.Product
	quantity decimal.Decimal
}

// DraftBuilder walks a clerk through assembling a return: pick the sale,
// pick items and quantities, set reason and refund method, optionally
// pick exchange replacements, then build the PENDING aggregate.
//
// The builder is a per-request state machine and is not safe for
// concurrent use. Moving backwards keeps entered data; only re-selecting
// a different sale resets it.
type DraftBuilder struct {
	state       DraftState
	resolver    *sale.Resolver
	products    catalog.ProductRepository
	processedBy uuid.UUID

	resolved   *sale.ResolvedSale
	quantities map[uuid.UUID]decimal.Decimal // saleItemID -> quantity
	order      []uuid.UUID                   // selection order, for stable item listing

	reason       ReturnReason
	refundMethod *RefundMethod
	notes        string
	exchanges    []draftExchangeLine
}

// NewDraftBuilder creates a builder in the sale-selection step
func NewDraftBuilder(resolver *sale.Resolver, products catalog.ProductRepository, processedBy uuid.UUID) *DraftBuilder {
	return &DraftBuilder{
		state:       StateSelectSale,
		resolver:    resolver,
		products:    products,
		processedBy: processedBy,
		quantities:  make(map[uuid.UUID]decimal.Decimal),
	}
}

// State returns the current drafting step
func (b *DraftBuilder) State() DraftState {
	return b.state
}

// Sale returns the resolved sale, nil before one is selected
func (b *DraftBuilder) Sale() *sale.ResolvedSale {
	return b.resolved
}

// SelectSale resolves the sale behind the search key and advances to
// item selection. Selecting a different sale discards any previously
// entered items, reason and exchange lines.
func (b *DraftBuilder) SelectSale(ctx context.Context, searchKey string) error {
	if b.state != StateSelectSale {
		return b.stepError(StateSelectSale)
	}

	resolved, err := b.resolver.Resolve(ctx, searchKey)
	if err != nil {
		return err
	}

	b.resolved = resolved
	b.quantities = make(map[uuid.UUID]decimal.Decimal)
	b.order = nil
	b.reason = ""
	b.refundMethod = nil
	b.exchanges = nil
	b.state = StateSelectItems

	return nil
}

// ToggleItem selects or deselects a sale line. Selecting defaults the
// quantity to everything still returnable on that line.
func (b *DraftBuilder) ToggleItem(saleItemID uuid.UUID) error {
	if b.state != StateSelectItems {
		return b.stepError(StateSelectItems)
	}

	item := b.resolved.Item(saleItemID)
	if item == nil {
		return NewValidationError("items", fmt.Sprintf("sale item %s not found on sale", saleItemID))
	}

	if _, selected := b.quantities[saleItemID]; selected {
		delete(b.quantities, saleItemID)
		for idx, id := range b.order {
			if id == saleItemID {
				b.order = append(b.order[:idx], b.order[idx+1:]...)
				break
			}
		}
		return nil
	}

	b.quantities[saleItemID] = item.RemainingQuantity
	b.order = append(b.order, saleItemID)

	return nil
}

// SetItemQuantity overrides a selected line's quantity, clamped to the
// range from zero to the line's remaining returnable quantity
func (b *DraftBuilder) SetItemQuantity(saleItemID uuid.UUID, quantity decimal.Decimal) error {
	if b.state != StateSelectItems {
		return b.stepError(StateSelectItems)
	}
	if _, selected := b.quantities[saleItemID]; !selected {
		return NewValidationError("items", "item is not selected")
	}

	item := b.resolved.Item(saleItemID)
	if quantity.IsNegative() {
		quantity = decimal.Zero
	}
	if quantity.GreaterThan(item.RemainingQuantity) {
		quantity = item.RemainingQuantity
	}
	b.quantities[saleItemID] = quantity

	return nil
}

// Selections returns the selected items in selection order
func (b *DraftBuilder) Selections() []ItemSelection {
	out := make([]ItemSelection, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, ItemSelection{SaleItemID: id, Quantity: b.quantities[id]})
	}
	return out
}

// ReturnTotal is the running total of the current selection at original
// sale prices
func (b *DraftBuilder) ReturnTotal() decimal.Decimal {
	total := decimal.Zero
	if b.resolved == nil {
		return total
	}
	for id, qty := range b.quantities {
		if item := b.resolved.Item(id); item != nil {
			total = total.Add(qty.Mul(item.PriceAtSale))
		}
	}
	return total
}

// SetReason records the return reason. Switching away from exchange
// clears any picked exchange lines; switching to exchange clears the
// refund method.
func (b *DraftBuilder) SetReason(reason ReturnReason) error {
	if b.state != StateDetails {
		return b.stepError(StateDetails)
	}
	if !reason.IsValid() {
		return NewValidationError("reason", fmt.Sprintf("unknown reason %q", reason))
	}

	b.reason = reason
	if reason.IsExchange() {
		b.refundMethod = nil
	} else {
		b.exchanges = nil
	}

	return nil
}

// SetRefundMethod records how the refund is paid out. Not applicable to
// exchanges.
func (b *DraftBuilder) SetRefundMethod(method RefundMethod) error {
	if b.state != StateDetails {
		return b.stepError(StateDetails)
	}
	if b.reason.IsExchange() {
		return NewValidationError("refund_method", "exchanges settle by price difference, not a refund method")
	}
	if !method.IsValid() {
		return NewValidationError("refund_method", fmt.Sprintf("unknown refund method %q", method))
	}

	b.refundMethod = &method

	return nil
}

// SetNotes records free-form notes; allowed at any step after a sale is
// selected
func (b *DraftBuilder) SetNotes(notes string) error {
	if b.state == StateSelectSale {
		return b.stepError(StateSelectItems)
	}
	b.notes = notes
	return nil
}

// ExchangeCandidates lists in-stock products available as replacements
func (b *DraftBuilder) ExchangeCandidates(ctx context.Context, filter shared.Filter) ([]catalog.Product, error) {
	if b.state != StateSelectExchangeItems {
		return nil, b.stepError(StateSelectExchangeItems)
	}
	return b.products.FindInStock(ctx, filter)
}

// AddExchangeItem adds a replacement product line, clamping the quantity
// to current stock. Out-of-stock products are rejected outright.
func (b *DraftBuilder) AddExchangeItem(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) error {
	if b.state != StateSelectExchangeItems {
		return b.stepError(StateSelectExchangeItems)
	}

	product, err := b.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if !product.InStock() {
		return NewValidationError("exchange_items", fmt.Sprintf("%s is out of stock", product.Name))
	}

	if quantity.LessThan(decimal.NewFromInt(1)) {
		quantity = decimal.NewFromInt(1)
	}
	if quantity.GreaterThan(product.StockQuantity) {
		quantity = product.StockQuantity
	}

	for idx := range b.exchanges {
		if b.exchanges[idx].product.ID == productID {
			b.exchanges[idx].quantity = quantity
			return nil
		}
	}
	b.exchanges = append(b.exchanges, draftExchangeLine{product: *product, quantity: quantity})

	return nil
}

// RemoveExchangeItem drops a replacement product line
func (b *DraftBuilder) RemoveExchangeItem(productID uuid.UUID) error {
	if b.state != StateSelectExchangeItems {
		return b.stepError(StateSelectExchangeItems)
	}
	for idx := range b.exchanges {
		if b.exchanges[idx].product.ID == productID {
			b.exchanges = append(b.exchanges[:idx], b.exchanges[idx+1:]...)
			return nil
		}
	}
	return NewValidationError("exchange_items", "product is not on the exchange list")
}

// ExchangeSelections returns the picked replacement lines
func (b *DraftBuilder) ExchangeSelections() []ExchangeSelection {
	out := make([]ExchangeSelection, 0, len(b.exchanges))
	for _, line := range b.exchanges {
		out = append(out, ExchangeSelection{Product: line.product, Quantity: line.quantity})
	}
	return out
}

// PriceDifference is the running exchange-minus-return difference for
// the current draft
func (b *DraftBuilder) PriceDifference() decimal.Decimal {
	total := decimal.Zero
	for _, line := range b.exchanges {
		total = total.Add(line.quantity.Mul(line.product.Price))
	}
	return total.Sub(b.ReturnTotal())
}

// Next advances to the following step, enforcing each step's gate
func (b *DraftBuilder) Next() error {
	switch b.state {
	case StateSelectItems:
		if !b.hasPositiveSelection() {
			return NewValidationError("items", "select at least one item with a positive quantity")
		}
		b.state = StateDetails
		return nil

	case StateDetails:
		if !b.reason.IsValid() {
			return NewValidationError("reason", "a return reason is required")
		}
		if b.reason.IsExchange() {
			b.state = StateSelectExchangeItems
			return nil
		}
		if b.refundMethod == nil {
			return NewValidationError("refund_method", "a refund method is required")
		}
		b.state = StateReady
		return nil

	case StateSelectExchangeItems:
		if len(b.exchanges) == 0 {
			return NewValidationError("exchange_items", "an exchange requires at least one replacement item")
		}
		b.state = StateReady
		return nil
	}

	return b.stepError(b.state)
}

// Back moves to the previous step, keeping entered data
func (b *DraftBuilder) Back() error {
	switch b.state {
	case StateSelectItems:
		b.state = StateSelectSale
	case StateDetails:
		b.state = StateSelectItems
	case StateSelectExchangeItems:
		b.state = StateDetails
	case StateReady:
		if b.reason.IsExchange() {
			b.state = StateSelectExchangeItems
		} else {
			b.state = StateDetails
		}
	default:
		return b.stepError(b.state)
	}
	return nil
}

// Build runs final validation and assembles the PENDING Return. Only a
// READY draft can build; the builder stays READY so a failed submission
// can be retried.
func (b *DraftBuilder) Build() (*Return, error) {
	if b.state != StateReady {
		return nil, b.stepError(StateReady)
	}
	return NewReturn(b.resolved, b.Selections(), b.reason, b.refundMethod, b.ExchangeSelections(), b.notes, b.processedBy)
}

func (b *DraftBuilder) hasPositiveSelection() bool {
	for _, qty := range b.quantities {
		if qty.IsPositive() {
			return true
		}
	}
	return false
}

func (b *DraftBuilder) stepError(want DraftState) error {
	return shared.NewDomainError("INVALID_DRAFT_STEP",
		fmt.Sprintf("Operation requires the %s step, draft is at %s", want, b.state))
}
