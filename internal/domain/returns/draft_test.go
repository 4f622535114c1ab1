package returns

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/sale"
	"github.com/storeops/backend/internal/domain/shared"
)

// MockSaleRepository is a mock implementation of sale.SaleRepository
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

// MockProductRepository is a mock implementation of catalog.ProductRepository
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

// MockReturnedQuantityReader is a mock implementation of sale.ReturnedQuantityReader
type MockReturnedQuantityReader struct {
	mock.Mock
}

func (m *MockReturnedQuantityReader) ReturnedQuantitiesBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

type draftFixture struct {
	builder  *DraftBuilder
	sales    *MockSaleRepository
	products *MockProductRepository
	returned *MockReturnedQuantityReader
	sale     *sale.Sale
}

func newDraftFixture(t *testing.T) *draftFixture {
	t.Helper()

	s := &sale.Sale{
		BaseEntity:    shared.NewBaseEntity(),
		InvoiceNumber: "INV-2026-00007",
		Status:        sale.SaleStatusCompleted,
		CustomerName:  "Walk-in",
	}
	s.Items = []sale.SaleItem{
		{
			ID:          uuid.New(),
			SaleID:      s.ID,
			ProductID:   uuid.New(),
			ProductName: "Espresso Beans 1kg",
			ProductSKU:  "BEAN-001",
			Quantity:    decimal.NewFromInt(3),
			PriceAtSale: decimal.NewFromInt(50),
		},
		{
			ID:          uuid.New(),
			SaleID:      s.ID,
			ProductID:   uuid.New(),
			ProductName: "French Press",
			ProductSKU:  "PRESS-001",
			Quantity:    decimal.NewFromInt(1),
			PriceAtSale: decimal.NewFromInt(100),
		},
	}

	sales := new(MockSaleRepository)
	products := new(MockProductRepository)
	returned := new(MockReturnedQuantityReader)

	resolver := sale.NewResolver(sales, products, returned)
	builder := NewDraftBuilder(resolver, products, uuid.New())

	return &draftFixture{
		builder:  builder,
		sales:    sales,
		products: products,
		returned: returned,
		sale:     s,
	}
}

// expectResolve wires the mocks so SelectSale succeeds by invoice number
func (f *draftFixture) expectResolve() {
	live := []catalog.Product{
		{BaseEntity: shared.BaseEntity{ID: f.sale.Items[0].ProductID}, Name: "Espresso Beans 1kg"},
		{BaseEntity: shared.BaseEntity{ID: f.sale.Items[1].ProductID}, Name: "French Press"},
	}
	f.sales.On("FindByInvoiceNumber", mock.Anything, f.sale.InvoiceNumber).Return(f.sale, nil)
	f.products.On("FindByIDs", mock.Anything, mock.Anything).Return(live, nil)
	f.returned.On("ReturnedQuantitiesBySale", mock.Anything, f.sale.ID).
		Return(map[uuid.UUID]decimal.Decimal{}, nil)
}

func TestDraftBuilder_RefundHappyPath(t *testing.T) {
	f := newDraftFixture(t)
	f.expectResolve()
	b := f.builder

	assert.Equal(t, StateSelectSale, b.State())
	require.NoError(t, b.SelectSale(context.Background(), f.sale.InvoiceNumber))
	assert.Equal(t, StateSelectItems, b.State())

	require.NoError(t, b.ToggleItem(f.sale.Items[0].ID))
	// Default quantity is everything still returnable
	assert.True(t, b.ReturnTotal().Equal(decimal.NewFromInt(150)))

	require.NoError(t, b.SetItemQuantity(f.sale.Items[0].ID, decimal.NewFromInt(2)))
	assert.True(t, b.ReturnTotal().Equal(decimal.NewFromInt(100)))

	require.NoError(t, b.Next())
	assert.Equal(t, StateDetails, b.State())

	require.NoError(t, b.SetReason(ReasonDefective))
	require.NoError(t, b.SetRefundMethod(RefundCash))
	require.NoError(t, b.SetNotes("seal broken"))
	require.NoError(t, b.Next())
	assert.Equal(t, StateReady, b.State())

	ret, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, ReturnStatusPending, ret.Status)
	assert.True(t, ret.TotalAmount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "seal broken", ret.Notes)
}

func TestDraftBuilder_ExchangePath(t *testing.T) {
	f := newDraftFixture(t)
	f.expectResolve()
	b := f.builder

	grinder := &catalog.Product{
		BaseEntity:    shared.NewBaseEntity(),
		SKU:           "GRIND-001",
		Name:          "Grinder",
		Price:         decimal.NewFromInt(130),
		StockQuantity: decimal.NewFromInt(4),
	}
	f.products.On("FindByID", mock.Anything, grinder.ID).Return(grinder, nil)

	require.NoError(t, b.SelectSale(context.Background(), f.sale.InvoiceNumber))
	require.NoError(t, b.ToggleItem(f.sale.Items[0].ID))
	require.NoError(t, b.SetItemQuantity(f.sale.Items[0].ID, decimal.NewFromInt(2)))
	require.NoError(t, b.Next())
	require.NoError(t, b.SetReason(ReasonExchange))

	// Exchange drafts branch into replacement selection
	require.NoError(t, b.Next())
	assert.Equal(t, StateSelectExchangeItems, b.State())

	// Cannot advance with an empty exchange list
	require.Error(t, b.Next())

	// Quantity clamps to stock
	require.NoError(t, b.AddExchangeItem(context.Background(), grinder.ID, decimal.NewFromInt(10)))
	selections := b.ExchangeSelections()
	require.Len(t, selections, 1)
	assert.True(t, selections[0].Quantity.Equal(decimal.NewFromInt(4)))

	require.NoError(t, b.AddExchangeItem(context.Background(), grinder.ID, decimal.NewFromInt(1)))
	// 130 out - 100 back
	assert.True(t, b.PriceDifference().Equal(decimal.NewFromInt(30)))

	require.NoError(t, b.Next())
	assert.Equal(t, StateReady, b.State())

	ret, err := b.Build()
	require.NoError(t, err)
	assert.True(t, ret.IsExchange())
	assert.True(t, ret.PriceDifference.Equal(decimal.NewFromInt(30)))
}

func TestDraftBuilder_StepGates(t *testing.T) {
	f := newDraftFixture(t)
	f.expectResolve()
	b := f.builder

	// Operations outside their step are rejected
	require.Error(t, b.ToggleItem(uuid.New()))
	require.Error(t, b.SetReason(ReasonOther))
	_, err := b.Build()
	require.Error(t, err)

	require.NoError(t, b.SelectSale(context.Background(), f.sale.InvoiceNumber))

	// Cannot advance without a positive selection
	require.Error(t, b.Next())
	require.NoError(t, b.ToggleItem(f.sale.Items[0].ID))
	require.NoError(t, b.SetItemQuantity(f.sale.Items[0].ID, decimal.Zero))
	require.Error(t, b.Next())

	require.NoError(t, b.SetItemQuantity(f.sale.Items[0].ID, decimal.NewFromInt(1)))
	require.NoError(t, b.Next())

	// Reason is required before leaving details
	require.Error(t, b.Next())
	require.NoError(t, b.SetReason(ReasonNotNeeded))
	// Non-exchange also needs a refund method
	require.Error(t, b.Next())
	require.NoError(t, b.SetRefundMethod(RefundStoreCredit))
	require.NoError(t, b.Next())
	assert.Equal(t, StateReady, b.State())
}

func TestDraftBuilder_QuantityClamping(t *testing.T) {
	f := newDraftFixture(t)
	f.expectResolve()
	b := f.builder

	require.NoError(t, b.SelectSale(context.Background(), f.sale.InvoiceNumber))
	require.NoError(t, b.ToggleItem(f.sale.Items[0].ID))

	// Above remaining clamps down, below zero clamps to zero
	require.NoError(t, b.SetItemQuantity(f.sale.Items[0].ID, decimal.NewFromInt(99)))
	assert.True(t, b.Selections()[0].Quantity.Equal(decimal.NewFromInt(3)))

	require.NoError(t, b.SetItemQuantity(f.sale.Items[0].ID, decimal.NewFromInt(-2)))
	assert.True(t, b.Selections()[0].Quantity.IsZero())
}

func TestDraftBuilder_BackKeepsData(t *testing.T) {
	f := newDraftFixture(t)
	f.expectResolve()
	b := f.builder

	require.NoError(t, b.SelectSale(context.Background(), f.sale.InvoiceNumber))
	require.NoError(t, b.ToggleItem(f.sale.Items[1].ID))
	require.NoError(t, b.Next())
	require.NoError(t, b.SetReason(ReasonOther))
	require.NoError(t, b.SetRefundMethod(RefundCard))
	require.NoError(t, b.Next())

	require.NoError(t, b.Back())
	assert.Equal(t, StateDetails, b.State())
	require.NoError(t, b.Back())
	assert.Equal(t, StateSelectItems, b.State())

	// Selection survived the round trip
	assert.True(t, b.ReturnTotal().Equal(decimal.NewFromInt(100)))

	require.NoError(t, b.Next())
	require.NoError(t, b.Next())
	ret, err := b.Build()
	require.NoError(t, err)
	require.NotNil(t, ret.RefundMethod)
	assert.Equal(t, RefundCard, *ret.RefundMethod)
}

func TestDraftBuilder_SwitchingReasonClearsBranch(t *testing.T) {
	f := newDraftFixture(t)
	f.expectResolve()
	b := f.builder

	require.NoError(t, b.SelectSale(context.Background(), f.sale.InvoiceNumber))
	require.NoError(t, b.ToggleItem(f.sale.Items[0].ID))
	require.NoError(t, b.Next())

	require.NoError(t, b.SetReason(ReasonDefective))
	require.NoError(t, b.SetRefundMethod(RefundCash))

	// Switching to exchange drops the refund method
	require.NoError(t, b.SetReason(ReasonExchange))
	require.Error(t, b.SetRefundMethod(RefundCash))
	require.NoError(t, b.Next())
	assert.Equal(t, StateSelectExchangeItems, b.State())
}

func TestDraftBuilder_ToggleOffRemovesItem(t *testing.T) {
	f := newDraftFixture(t)
	f.expectResolve()
	b := f.builder

	require.NoError(t, b.SelectSale(context.Background(), f.sale.InvoiceNumber))
	require.NoError(t, b.ToggleItem(f.sale.Items[0].ID))
	require.NoError(t, b.ToggleItem(f.sale.Items[0].ID))

	assert.Empty(t, b.Selections())
	assert.True(t, b.ReturnTotal().IsZero())
}
