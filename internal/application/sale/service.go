package sale

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/backend/internal/domain/sale"
	"github.com/storeops/backend/internal/domain/shared"
)

// SaleListFilter represents filter options for listing sales
type SaleListFilter struct {
	Page     int     `form:"page"`
	PageSize int     `form:"page_size"`
	OrderBy  string  `form:"order_by"`
	OrderDir string  `form:"order_dir"`
	Search   string  `form:"search"`
	Status   *string `form:"status"`
}

// SaleResponse represents a sale in API responses
type SaleResponse struct {
	ID            uuid.UUID          `json:"id"`
	InvoiceNumber string             `json:"invoice_number"`
	Status        string             `json:"status"`
	Items         []SaleItemResponse `json:"items"`
	CustomerID    *uuid.UUID         `json:"customer_id,omitempty"`
	CustomerName  string             `json:"customer_name,omitempty"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	SoldBy        uuid.UUID          `json:"sold_by"`
	SoldAt        time.Time          `json:"sold_at"`
	CreatedAt     time.Time          `json:"created_at"`
}

// SaleItemResponse represents a sale line in API responses
type SaleItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    decimal.Decimal `json:"quantity"`
	PriceAtSale decimal.Decimal `json:"price_at_sale"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// SaleListItemResponse represents a sale in list responses (less detail)
type SaleListItemResponse struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	Status        string          `json:"status"`
	CustomerName  string          `json:"customer_name,omitempty"`
	ItemCount     int             `json:"item_count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	SoldAt        time.Time       `json:"sold_at"`
}

// SaleService answers read queries over the sale history recorded by
// the point-of-sale system
type SaleService struct {
	saleRepo sale.SaleRepository
}

// NewSaleService creates a new SaleService
func NewSaleService(saleRepo sale.SaleRepository) *SaleService {
	return &SaleService{saleRepo: saleRepo}
}

// GetByID retrieves a sale by ID
func (s *SaleService) GetByID(ctx context.Context, saleID uuid.UUID) (*SaleResponse, error) {
	found, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	response := toSaleResponse(found)
	return &response, nil
}

// GetByInvoiceNumber retrieves a sale by invoice number
func (s *SaleService) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*SaleResponse, error) {
	found, err := s.saleRepo.FindByInvoiceNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}
	response := toSaleResponse(found)
	return &response, nil
}

// List retrieves sales with filtering and pagination. Search matches
// invoice number and customer name.
func (s *SaleService) List(ctx context.Context, filter SaleListFilter) ([]SaleListItemResponse, int64, error) {
	domainFilter := shared.DefaultFilter()
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}
	domainFilter.Search = filter.Search

	if filter.Status != nil {
		status := sale.SaleStatus(*filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError("INVALID_INPUT", "Unknown sale status: "+*filter.Status)
		}
		domainFilter.Filters["status"] = status.String()
	}

	sales, err := s.saleRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.saleRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	items := make([]SaleListItemResponse, 0, len(sales))
	for idx := range sales {
		sl := &sales[idx]
		items = append(items, SaleListItemResponse{
			ID:            sl.ID,
			InvoiceNumber: sl.InvoiceNumber,
			Status:        sl.Status.String(),
			CustomerName:  sl.CustomerName,
			ItemCount:     len(sl.Items),
			TotalAmount:   sl.TotalAmount,
			SoldAt:        sl.SoldAt,
		})
	}

	return items, total, nil
}

func toSaleResponse(s *sale.Sale) SaleResponse {
	resp := SaleResponse{
		ID:            s.ID,
		InvoiceNumber: s.InvoiceNumber,
		Status:        s.Status.String(),
		Items:         make([]SaleItemResponse, 0, len(s.Items)),
		CustomerID:    s.CustomerID,
		CustomerName:  s.CustomerName,
		TotalAmount:   s.TotalAmount,
		SoldBy:        s.SoldBy,
		SoldAt:        s.SoldAt,
		CreatedAt:     s.CreatedAt,
	}
	for idx := range s.Items {
		item := &s.Items[idx]
		resp.Items = append(resp.Items, SaleItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSKU:  item.ProductSKU,
			Quantity:    item.Quantity,
			PriceAtSale: item.PriceAtSale,
			LineTotal:   item.LineTotal(),
		})
	}
	return resp
}
