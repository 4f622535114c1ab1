package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	saleapp "github.com/storeops/backend/internal/application/sale"
)

// SaleHandler handles sale history API endpoints
type SaleHandler struct {
	BaseHandler
	saleService *saleapp.SaleService
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(saleService *saleapp.SaleService) *SaleHandler {
	return &SaleHandler{saleService: saleService}
}

// RegisterRoutes registers sale routes on the given group
func (h *SaleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sales", h.List)
	rg.GET("/sales/invoice/:invoice_number", h.GetByInvoiceNumber)
	rg.GET("/sales/:id", h.GetByID)
}

// List retrieves sales with filtering and pagination
func (h *SaleHandler) List(c *gin.Context) {
	var filter saleapp.SaleListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	items, total, err := h.saleService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, items, total, page, pageSize)
}

// GetByID retrieves a sale by ID
func (h *SaleHandler) GetByID(c *gin.Context) {
	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid sale ID format")
		return
	}

	s, err := h.saleService.GetByID(c.Request.Context(), saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, s)
}

// GetByInvoiceNumber retrieves a sale by its invoice number
func (h *SaleHandler) GetByInvoiceNumber(c *gin.Context) {
	invoiceNumber := c.Param("invoice_number")
	if invoiceNumber == "" {
		h.BadRequest(c, "Invoice number is required")
		return
	}

	s, err := h.saleService.GetByInvoiceNumber(c.Request.Context(), invoiceNumber)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, s)
}
