package returns

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/backend/internal/domain/returns"
	"github.com/storeops/backend/internal/domain/sale"
)

// CreateReturnRequest represents a request to record a return against a
// sale. SaleKey accepts either a sale ID or an invoice number.
type CreateReturnRequest struct {
	SaleKey       string                      `json:"sale_key" binding:"required"`
	Items         []CreateReturnItemRequest   `json:"items" binding:"required,min=1,dive"`
	Reason        string                      `json:"reason" binding:"required"`
	RefundMethod  *string                     `json:"refund_method,omitempty"`
	ExchangeItems []CreateExchangeItemRequest `json:"exchange_items,omitempty" binding:"omitempty,dive"`
	Notes         string                      `json:"notes,omitempty"`
	ProcessedBy   uuid.UUID                   `json:"-"` // From JWT context via handler
}

// CreateReturnItemRequest represents one returned line
type CreateReturnItemRequest struct {
	SaleItemID uuid.UUID       `json:"sale_item_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
}

// CreateExchangeItemRequest represents one replacement line on an exchange
type CreateExchangeItemRequest struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
}

// ApproveReturnRequest carries an approval decision
type ApproveReturnRequest struct {
	ReturnID   uuid.UUID `json:"-"`
	ApproverID uuid.UUID `json:"-"`
	Privileged bool      `json:"-"`
	Notes      string    `json:"notes,omitempty"`
}

// RejectReturnRequest carries a rejection decision; notes are mandatory
type RejectReturnRequest struct {
	ReturnID   uuid.UUID `json:"-"`
	RejecterID uuid.UUID `json:"-"`
	Privileged bool      `json:"-"`
	Notes      string    `json:"notes" binding:"required"`
}

// ReturnListFilter represents filter options for listing returns
type ReturnListFilter struct {
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir"`
	Search    string     `form:"search"`
	Status    *string    `form:"status"`
	Reason    *string    `form:"reason"`
	SaleID    *uuid.UUID `form:"sale_id"`
	StartDate *time.Time `form:"start_date" time_format:"2006-01-02"`
	EndDate   *time.Time `form:"end_date" time_format:"2006-01-02"`
}

// ReturnResponse represents a return in API responses
type ReturnResponse struct {
	ID                uuid.UUID              `json:"id"`
	ReturnNumber      string                 `json:"return_number"`
	SaleID            uuid.UUID              `json:"sale_id"`
	SaleInvoiceNumber string                 `json:"sale_invoice_number"`
	CustomerID        *uuid.UUID             `json:"customer_id,omitempty"`
	CustomerName      string                 `json:"customer_name,omitempty"`
	Items             []ReturnItemResponse   `json:"items"`
	ExchangeItems     []ExchangeItemResponse `json:"exchange_items,omitempty"`
	Reason            string                 `json:"reason"`
	Notes             string                 `json:"notes,omitempty"`
	Status            string                 `json:"status"`
	Settlement        SettlementResponse     `json:"settlement"`
	ProcessedBy       uuid.UUID              `json:"processed_by"`
	ApprovedBy        *uuid.UUID             `json:"approved_by,omitempty"`
	DecisionNotes     string                 `json:"decision_notes,omitempty"`
	DecidedAt         *time.Time             `json:"decided_at,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// ReturnListItemResponse represents a return in list responses (less detail)
type ReturnListItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	ReturnNumber      string          `json:"return_number"`
	SaleID            uuid.UUID       `json:"sale_id"`
	SaleInvoiceNumber string          `json:"sale_invoice_number"`
	CustomerName      string          `json:"customer_name,omitempty"`
	ItemCount         int             `json:"item_count"`
	Reason            string          `json:"reason"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Status            string          `json:"status"`
	DecidedAt         *time.Time      `json:"decided_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ReturnItemResponse represents a returned line in API responses
type ReturnItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	SaleItemID        uuid.UUID       `json:"sale_item_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	ProductName       string          `json:"product_name"`
	ProductSKU        string          `json:"product_sku"`
	Quantity          decimal.Decimal `json:"quantity"`
	OriginalUnitPrice decimal.Decimal `json:"original_unit_price"`
	ReturnAmount      decimal.Decimal `json:"return_amount"`
}

// ExchangeItemResponse represents a replacement line in API responses
type ExchangeItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// SettlementResponse represents the monetary outcome of a return
type SettlementResponse struct {
	Kind            string          `json:"kind"`
	ReturnTotal     decimal.Decimal `json:"return_total"`
	ExchangeTotal   decimal.Decimal `json:"exchange_total,omitempty"`
	PriceDifference decimal.Decimal `json:"price_difference"`
	RefundMethod    *string         `json:"refund_method,omitempty"`
}

// ReturnStatsResponse aggregates returns for the list-view header
type ReturnStatsResponse struct {
	TotalReturns  int64            `json:"total_returns"`
	ByStatus      map[string]int64 `json:"by_status"`
	TotalRefunded decimal.Decimal  `json:"total_refunded"`
}

// ResolvedSaleResponse is a sale normalized for return drafting
type ResolvedSaleResponse struct {
	SaleID        uuid.UUID              `json:"sale_id"`
	InvoiceNumber string                 `json:"invoice_number"`
	CustomerID    *uuid.UUID             `json:"customer_id,omitempty"`
	CustomerName  string                 `json:"customer_name,omitempty"`
	SoldAt        time.Time              `json:"sold_at"`
	Items         []ResolvedItemResponse `json:"items"`
	ExcludedItems int                    `json:"excluded_items"`
}

// ResolvedItemResponse is a returnable sale line
type ResolvedItemResponse struct {
	SaleItemID        uuid.UUID       `json:"sale_item_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	ProductName       string          `json:"product_name"`
	ProductSKU        string          `json:"product_sku"`
	SoldQuantity      decimal.Decimal `json:"sold_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	PriceAtSale       decimal.Decimal `json:"price_at_sale"`
}

// ToReturnResponse converts a domain Return to a response DTO
func ToReturnResponse(r *returns.Return) ReturnResponse {
	settlement := r.Settlement()

	resp := ReturnResponse{
		ID:                r.ID,
		ReturnNumber:      r.ReturnNumber,
		SaleID:            r.SaleID,
		SaleInvoiceNumber: r.SaleInvoiceNumber,
		CustomerID:        r.CustomerID,
		CustomerName:      r.CustomerName,
		Items:             make([]ReturnItemResponse, 0, len(r.Items)),
		Reason:            r.Reason.String(),
		Notes:             r.Notes,
		Status:            r.Status.String(),
		Settlement:        toSettlementResponse(settlement),
		ProcessedBy:       r.ProcessedBy,
		ApprovedBy:        r.ApprovedBy,
		DecisionNotes:     r.DecisionNotes,
		DecidedAt:         r.DecidedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}

	for _, item := range r.Items {
		resp.Items = append(resp.Items, ReturnItemResponse{
			ID:                item.ID,
			SaleItemID:        item.SaleItemID,
			ProductID:         item.ProductID,
			ProductName:       item.ProductName,
			ProductSKU:        item.ProductSKU,
			Quantity:          item.Quantity,
			OriginalUnitPrice: item.OriginalUnitPrice,
			ReturnAmount:      item.ReturnAmount,
		})
	}

	for idx := range r.ExchangeItems {
		ex := &r.ExchangeItems[idx]
		resp.ExchangeItems = append(resp.ExchangeItems, ExchangeItemResponse{
			ID:          ex.ID,
			ProductID:   ex.ProductID,
			ProductName: ex.ProductName,
			ProductSKU:  ex.ProductSKU,
			Quantity:    ex.Quantity,
			UnitPrice:   ex.UnitPrice,
			LineTotal:   ex.LineTotal(),
		})
	}

	return resp
}

func toSettlementResponse(s returns.Settlement) SettlementResponse {
	resp := SettlementResponse{
		Kind:            string(s.Kind),
		ReturnTotal:     s.ReturnTotal,
		ExchangeTotal:   s.ExchangeTotal,
		PriceDifference: s.PriceDifference,
	}
	if s.RefundMethod != nil {
		method := s.RefundMethod.String()
		resp.RefundMethod = &method
	}
	return resp
}

// ToReturnListItemResponses converts domain Returns to list DTOs
func ToReturnListItemResponses(rets []returns.Return) []ReturnListItemResponse {
	out := make([]ReturnListItemResponse, 0, len(rets))
	for idx := range rets {
		r := &rets[idx]
		out = append(out, ReturnListItemResponse{
			ID:                r.ID,
			ReturnNumber:      r.ReturnNumber,
			SaleID:            r.SaleID,
			SaleInvoiceNumber: r.SaleInvoiceNumber,
			CustomerName:      r.CustomerName,
			ItemCount:         r.ItemCount(),
			Reason:            r.Reason.String(),
			TotalAmount:       r.TotalAmount,
			Status:            r.Status.String(),
			DecidedAt:         r.DecidedAt,
			CreatedAt:         r.CreatedAt,
		})
	}
	return out
}

// ToReturnStatsResponse converts domain stats to a response DTO
func ToReturnStatsResponse(stats *returns.ReturnStats) ReturnStatsResponse {
	resp := ReturnStatsResponse{
		TotalReturns:  stats.TotalReturns,
		ByStatus:      make(map[string]int64, len(stats.ByStatus)),
		TotalRefunded: stats.TotalRefunded,
	}
	for status, count := range stats.ByStatus {
		resp.ByStatus[status.String()] = count
	}
	return resp
}

// ToResolvedSaleResponse converts a resolved sale to a response DTO
func ToResolvedSaleResponse(resolved *sale.ResolvedSale) ResolvedSaleResponse {
	resp := ResolvedSaleResponse{
		SaleID:        resolved.Sale.ID,
		InvoiceNumber: resolved.Sale.InvoiceNumber,
		CustomerID:    resolved.Sale.CustomerID,
		CustomerName:  resolved.Sale.CustomerName,
		SoldAt:        resolved.Sale.SoldAt,
		Items:         make([]ResolvedItemResponse, 0, len(resolved.Items)),
		ExcludedItems: resolved.ExcludedItems,
	}
	for _, item := range resolved.Items {
		resp.Items = append(resp.Items, ResolvedItemResponse{
			SaleItemID:        item.SaleItemID,
			ProductID:         item.ProductID,
			ProductName:       item.ProductName,
			ProductSKU:        item.ProductSKU,
			SoldQuantity:      item.SoldQuantity,
			RemainingQuantity: item.RemainingQuantity,
			PriceAtSale:       item.PriceAtSale,
		})
	}
	return resp
}
