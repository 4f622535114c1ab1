package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	returnsapp "github.com/storeops/backend/internal/application/returns"
	"github.com/storeops/backend/internal/interfaces/http/middleware"
)

// ReturnHandler handles return and exchange API endpoints
type ReturnHandler struct {
	BaseHandler
	returnService   *returnsapp.ReturnService
	approvalService *returnsapp.ApprovalService
}

// NewReturnHandler creates a new ReturnHandler
func NewReturnHandler(returnService *returnsapp.ReturnService, approvalService *returnsapp.ApprovalService) *ReturnHandler {
	return &ReturnHandler{
		returnService:   returnService,
		approvalService: approvalService,
	}
}

// RegisterRoutes registers return routes on the given group
func (h *ReturnHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/returns", h.Create)
	rg.GET("/returns", h.List)
	rg.GET("/returns/stats", h.Stats)
	rg.GET("/returns/number/:return_number", h.GetByReturnNumber)
	rg.GET("/returns/resolve/:sale_key", h.ResolveSale)
	rg.GET("/returns/:id", h.GetByID)
	rg.POST("/returns/:id/approve", h.Approve)
	rg.POST("/returns/:id/reject", h.Reject)
	rg.GET("/sales/:id/returns", h.ListBySale)
}

// ResolveSale looks up a sale by ID or invoice number and reports which
// lines are still returnable
func (h *ReturnHandler) ResolveSale(c *gin.Context) {
	saleKey := c.Param("sale_key")
	if saleKey == "" {
		h.BadRequest(c, "Sale key is required")
		return
	}

	resolved, err := h.returnService.ResolveSale(c.Request.Context(), saleKey)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resolved)
}

// Create records a new pending return against a sale
func (h *ReturnHandler) Create(c *gin.Context) {
	var req returnsapp.CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	req.ProcessedBy = userID

	ret, err := h.returnService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, ret)
}

// List retrieves returns with filtering and pagination
func (h *ReturnHandler) List(c *gin.Context) {
	var filter returnsapp.ReturnListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	items, total, err := h.returnService.List(c.Request.Context(), filter)
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

// Stats reports aggregate return counts and the total refunded amount
func (h *ReturnHandler) Stats(c *gin.Context) {
	stats, err := h.returnService.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

// GetByID retrieves a return by ID
func (h *ReturnHandler) GetByID(c *gin.Context) {
	returnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid return ID format")
		return
	}

	ret, err := h.returnService.GetByID(c.Request.Context(), returnID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ret)
}

// GetByReturnNumber retrieves a return by its return number
func (h *ReturnHandler) GetByReturnNumber(c *gin.Context) {
	number := c.Param("return_number")
	if number == "" {
		h.BadRequest(c, "Return number is required")
		return
	}

	ret, err := h.returnService.GetByReturnNumber(c.Request.Context(), number)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ret)
}

// Approve approves a pending return and reconciles stock
func (h *ReturnHandler) Approve(c *gin.Context) {
	returnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid return ID format")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req returnsapp.ApproveReturnRequest
	// Notes are optional on approval, so an empty body is fine
	_ = c.ShouldBindJSON(&req)
	req.ReturnID = returnID
	req.ApproverID = userID
	req.Privileged = middleware.IsPrivileged(c)

	ret, err := h.approvalService.Approve(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ret)
}

// Reject rejects a pending return; notes are mandatory
func (h *ReturnHandler) Reject(c *gin.Context) {
	returnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid return ID format")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req returnsapp.RejectReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.ReturnID = returnID
	req.RejecterID = userID
	req.Privileged = middleware.IsPrivileged(c)

	ret, err := h.approvalService.Reject(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ret)
}

// ListBySale retrieves all returns recorded against a sale
func (h *ReturnHandler) ListBySale(c *gin.Context) {
	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid sale ID format")
		return
	}

	items, err := h.returnService.ListBySale(c.Request.Context(), saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, items)
}
