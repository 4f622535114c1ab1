package returns

import (
	"github.com/shopspring/decimal"
)

// SettlementKind distinguishes the two settlement shapes
type SettlementKind string

const (
	SettlementRefund   SettlementKind = "REFUND"
	SettlementExchange SettlementKind = "EXCHANGE"
)

// Settlement is the monetary outcome of a return.
//
// For a refund, ReturnTotal is the amount owed back to the customer via
// RefundMethod. For an exchange, PriceDifference is signed from the
// store's point of view: positive means the customer pays the store,
// negative means the store pays the customer, zero means an even swap.
type Settlement struct {
	Kind            SettlementKind  `json:"kind"`
	ReturnTotal     decimal.Decimal `json:"return_total"`
	ExchangeTotal   decimal.Decimal `json:"exchange_total"`
	PriceDifference decimal.Decimal `json:"price_difference"`
	RefundMethod    *RefundMethod   `json:"refund_method,omitempty"`
}

// CustomerOwes returns true when the exchange items cost more than the
// returned items
func (s Settlement) CustomerOwes() bool {
	return s.Kind == SettlementExchange && s.PriceDifference.IsPositive()
}

// StoreOwes returns true when the store owes money back to the customer
func (s Settlement) StoreOwes() bool {
	if s.Kind == SettlementRefund {
		return s.ReturnTotal.IsPositive()
	}
	return s.PriceDifference.IsNegative()
}

// ReturnTotal sums the return amounts of all returned items, each frozen
// at the original sale price
func ReturnTotal(items []ReturnItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.ReturnAmount)
	}
	return total
}

// ExchangeTotal sums the line totals of all exchange items at their
// draft-time catalog prices
func ExchangeTotal(items []ExchangeItem) decimal.Decimal {
	total := decimal.Zero
	for idx := range items {
		total = total.Add(items[idx].LineTotal())
	}
	return total
}

// PriceDifference is exchange total minus return total, signed from the
// store's point of view
func PriceDifference(items []ReturnItem, exchanges []ExchangeItem) decimal.Decimal {
	return ExchangeTotal(exchanges).Sub(ReturnTotal(items))
}

// ComputeSettlement derives the settlement from return state. The same
// inputs always produce the same settlement.
func ComputeSettlement(reason ReturnReason, method *RefundMethod, items []ReturnItem, exchanges []ExchangeItem) Settlement {
	returnTotal := ReturnTotal(items)

	if reason.IsExchange() {
		exchangeTotal := ExchangeTotal(exchanges)
		return Settlement{
			Kind:            SettlementExchange,
			ReturnTotal:     returnTotal,
			ExchangeTotal:   exchangeTotal,
			PriceDifference: exchangeTotal.Sub(returnTotal),
		}
	}

	return Settlement{
		Kind:         SettlementRefund,
		ReturnTotal:  returnTotal,
		RefundMethod: method,
	}
}
