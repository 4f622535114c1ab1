package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	returnsapp "github.com/storeops/backend/internal/application/returns"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/returns"
	"github.com/storeops/backend/internal/domain/sale"
	"github.com/storeops/backend/internal/domain/shared"
	"github.com/storeops/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockReturnRepository implements returns.ReturnRepository for testing
type MockReturnRepository struct {
	mock.Mock
}

func (m *MockReturnRepository) Create(ctx context.Context, ret *returns.Return) error {
	args := m.Called(ctx, ret)
	return args.Error(0)
}

func (m *MockReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*returns.Return, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*returns.Return), args.Error(1)
}

func (m *MockReturnRepository) FindByReturnNumber(ctx context.Context, number string) (*returns.Return, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*returns.Return), args.Error(1)
}

func (m *MockReturnRepository) FindAll(ctx context.Context, filter shared.Filter) ([]returns.Return, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]returns.Return), args.Error(1)
}

func (m *MockReturnRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReturnRepository) Stats(ctx context.Context) (*returns.ReturnStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*returns.ReturnStats), args.Error(1)
}

func (m *MockReturnRepository) FindBySale(ctx context.Context, saleID uuid.UUID) ([]returns.Return, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]returns.Return), args.Error(1)
}

func (m *MockReturnRepository) ReturnedQuantitiesBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

func (m *MockReturnRepository) SaveDecision(ctx context.Context, ret *returns.Return, loadedStatus returns.ReturnStatus) error {
	args := m.Called(ctx, ret, loadedStatus)
	return args.Error(0)
}

// MockReconciliationStore implements returns.ReconciliationStore for testing
type MockReconciliationStore struct {
	mock.Mock
}

func (m *MockReconciliationStore) Reconcile(ctx context.Context, ret *returns.Return) error {
	args := m.Called(ctx, ret)
	return args.Error(0)
}

// MockSaleRepository implements sale.SaleRepository for testing
type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sale.Sale), args.Error(1)
}

func (m *MockSaleRepository) FindByInvoiceNumber(ctx context.Context, invoiceNumber string) (*sale.Sale, error) {
	args := m.Called(ctx, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sale.Sale), args.Error(1)
}

func (m *MockSaleRepository) FindAll(ctx context.Context, filter shared.Filter) ([]sale.Sale, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sale.Sale), args.Error(1)
}

func (m *MockSaleRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSaleRepository) MarkReturned(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProductRepository implements catalog.ProductRepository for testing
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindInStock(ctx context.Context, filter shared.Filter) ([]catalog.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) CountInStock(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProductRepository) IncreaseStock(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	args := m.Called(ctx, id, quantity)
	return args.Error(0)
}

func (m *MockProductRepository) DecreaseStock(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	args := m.Called(ctx, id, quantity)
	return args.Error(0)
}

type handlerFixture struct {
	returnRepo  *MockReturnRepository
	reconciler  *MockReconciliationStore
	saleRepo    *MockSaleRepository
	productRepo *MockProductRepository
	engine      *gin.Engine

	userID     uuid.UUID
	privileged bool

	saleID     uuid.UUID
	saleItemID uuid.UUID
	productID  uuid.UUID
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		returnRepo:  new(MockReturnRepository),
		reconciler:  new(MockReconciliationStore),
		saleRepo:    new(MockSaleRepository),
		productRepo: new(MockProductRepository),
		userID:      uuid.New(),
		saleID:      uuid.New(),
		saleItemID:  uuid.New(),
		productID:   uuid.New(),
	}

	resolver := sale.NewResolver(f.saleRepo, f.productRepo, f.returnRepo)
	returnService := returnsapp.NewReturnService(f.returnRepo, resolver, f.productRepo)
	approvalService := returnsapp.NewApprovalService(f.returnRepo, f.reconciler)
	h := NewReturnHandler(returnService, approvalService)

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(middleware.JWTUserIDKey, f.userID.String())
		c.Set(middleware.JWTPrivilegedKey, f.privileged)
		c.Next()
	})
	api := engine.Group("/api/v1")
	h.RegisterRoutes(api)
	f.engine = engine

	return f
}

func (f *handlerFixture) sale() *sale.Sale {
	s := &sale.Sale{
		InvoiceNumber: "INV-2025-00042",
		Status:        sale.SaleStatusCompleted,
		Items: []sale.SaleItem{
			{
				ID:          f.saleItemID,
				SaleID:      f.saleID,
				ProductID:   f.productID,
				ProductName: "Espresso Beans 1kg",
				ProductSKU:  "BEAN-1KG",
				Quantity:    decimal.NewFromInt(3),
				PriceAtSale: decimal.NewFromInt(50),
			},
		},
		TotalAmount: decimal.NewFromInt(150),
		SoldBy:      uuid.New(),
		SoldAt:      time.Now().Add(-24 * time.Hour),
	}
	s.ID = f.saleID
	return s
}

func (f *handlerFixture) product() catalog.Product {
	p := catalog.Product{
		SKU:           "BEAN-1KG",
		Name:          "Espresso Beans 1kg",
		Price:         decimal.NewFromInt(55),
		StockQuantity: decimal.NewFromInt(10),
	}
	p.ID = f.productID
	return p
}

func (f *handlerFixture) pendingReturn(t *testing.T) *returns.Return {
	t.Helper()

	resolved := &sale.ResolvedSale{
		Sale: f.sale(),
		Items: []sale.ResolvedItem{
			{
				SaleItemID:        f.saleItemID,
				ProductID:         f.productID,
				ProductName:       "Espresso Beans 1kg",
				ProductSKU:        "BEAN-1KG",
				SoldQuantity:      decimal.NewFromInt(3),
				RemainingQuantity: decimal.NewFromInt(3),
				PriceAtSale:       decimal.NewFromInt(50),
			},
		},
	}
	method := returns.RefundCash
	ret, err := returns.NewReturn(
		resolved,
		[]returns.ItemSelection{{SaleItemID: f.saleItemID, Quantity: decimal.NewFromInt(2)}},
		returns.ReasonDefective,
		&method,
		nil,
		"",
		f.userID,
	)
	require.NoError(t, err)
	ret.ID = uuid.New()
	ret.ReturnNumber = "RT-2025-00001"
	return ret
}

func (f *handlerFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestReturnHandler_CreateReturn(t *testing.T) {
	f := newHandlerFixture(t)

	f.saleRepo.On("FindByID", mock.Anything, f.saleID).Return(f.sale(), nil)
	f.productRepo.On("FindByIDs", mock.Anything, mock.Anything).Return([]catalog.Product{f.product()}, nil)
	f.returnRepo.On("ReturnedQuantitiesBySale", mock.Anything, f.saleID).
		Return(map[uuid.UUID]decimal.Decimal{}, nil)
	f.returnRepo.On("Create", mock.Anything, mock.AnythingOfType("*returns.Return")).Return(nil)

	w := f.do(http.MethodPost, "/api/v1/returns", gin.H{
		"sale_key": f.saleID.String(),
		"items": []gin.H{
			{"sale_item_id": f.saleItemID.String(), "quantity": "2"},
		},
		"reason":        "DEFECTIVE",
		"refund_method": "CASH",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Status     string `json:"status"`
			Settlement struct {
				Kind        string          `json:"kind"`
				ReturnTotal decimal.Decimal `json:"return_total"`
			} `json:"settlement"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "PENDING", resp.Data.Status)
	assert.Equal(t, "REFUND", resp.Data.Settlement.Kind)
	assert.True(t, decimal.NewFromInt(100).Equal(resp.Data.Settlement.ReturnTotal))
	f.returnRepo.AssertExpectations(t)
}

func TestReturnHandler_CreateRejectsMissingItems(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(http.MethodPost, "/api/v1/returns", gin.H{
		"sale_key": f.saleID.String(),
		"reason":   "DEFECTIVE",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.returnRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReturnHandler_ResolveSaleNotReturnable(t *testing.T) {
	f := newHandlerFixture(t)

	cancelled := f.sale()
	cancelled.Status = sale.SaleStatusCancelled
	f.saleRepo.On("FindByID", mock.Anything, f.saleID).Return(cancelled, nil)

	w := f.do(http.MethodGet, "/api/v1/returns/resolve/"+f.saleID.String(), nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_SALE_NOT_RETURNABLE")
}

func TestReturnHandler_GetByIDNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	missing := uuid.New()
	f.returnRepo.On("FindByID", mock.Anything, missing).Return(nil, shared.ErrNotFound)

	w := f.do(http.MethodGet, "/api/v1/returns/"+missing.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_NOT_FOUND")
}

func TestReturnHandler_ApproveRequiresPrivilege(t *testing.T) {
	f := newHandlerFixture(t)
	f.privileged = false

	w := f.do(http.MethodPost, "/api/v1/returns/"+uuid.New().String()+"/approve", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	f.reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestReturnHandler_ApproveCompletesReturn(t *testing.T) {
	f := newHandlerFixture(t)
	f.privileged = true

	ret := f.pendingReturn(t)
	f.returnRepo.On("FindByID", mock.Anything, ret.ID).Return(ret, nil)
	f.reconciler.On("Reconcile", mock.Anything, ret).
		Run(func(args mock.Arguments) {
			r := args.Get(1).(*returns.Return)
			require.NoError(t, r.Complete())
		}).
		Return(nil)

	w := f.do(http.MethodPost, "/api/v1/returns/"+ret.ID.String()+"/approve", gin.H{"notes": "checked"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "COMPLETED")
	f.reconciler.AssertExpectations(t)
}

func TestReturnHandler_ApproveReconciliationConflict(t *testing.T) {
	f := newHandlerFixture(t)
	f.privileged = true

	ret := f.pendingReturn(t)
	f.returnRepo.On("FindByID", mock.Anything, ret.ID).Return(ret, nil)
	f.reconciler.On("Reconcile", mock.Anything, ret).Return(
		returns.NewInsufficientStockError(f.productID, "Espresso Beans 1kg",
			decimal.NewFromInt(2), decimal.NewFromInt(1)),
	)

	w := f.do(http.MethodPost, "/api/v1/returns/"+ret.ID.String()+"/approve", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_RECONCILIATION")
	assert.Contains(t, w.Body.String(), "insufficient stock")
}

func TestReturnHandler_RejectRequiresNotes(t *testing.T) {
	f := newHandlerFixture(t)
	f.privileged = true

	w := f.do(http.MethodPost, "/api/v1/returns/"+uuid.New().String()+"/reject", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.returnRepo.AssertNotCalled(t, "SaveDecision", mock.Anything, mock.Anything, mock.Anything)
}

func TestReturnHandler_RejectPersistsDecision(t *testing.T) {
	f := newHandlerFixture(t)
	f.privileged = true

	ret := f.pendingReturn(t)
	f.returnRepo.On("FindByID", mock.Anything, ret.ID).Return(ret, nil)
	f.returnRepo.On("SaveDecision", mock.Anything, ret, returns.ReturnStatusPending).Return(nil)

	w := f.do(http.MethodPost, "/api/v1/returns/"+ret.ID.String()+"/reject",
		gin.H{"notes": "wrong item condition"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "REJECTED")
	f.returnRepo.AssertExpectations(t)
}

func TestReturnHandler_StatsEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	f.returnRepo.On("Stats", mock.Anything).Return(&returns.ReturnStats{
		TotalReturns: 4,
		ByStatus: map[returns.ReturnStatus]int64{
			returns.ReturnStatusPending:   1,
			returns.ReturnStatusCompleted: 3,
		},
		TotalRefunded: decimal.NewFromInt(620),
	}, nil)

	w := f.do(http.MethodGet, "/api/v1/returns/stats", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			TotalReturns int64            `json:"total_returns"`
			ByStatus     map[string]int64 `json:"by_status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(4), resp.Data.TotalReturns)
	assert.Equal(t, int64(3), resp.Data.ByStatus["COMPLETED"])
}
