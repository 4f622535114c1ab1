package sale

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/shared"
)

type mockSaleRepository struct {
	mock.Mock
}

func (m *mockSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Sale), args.Error(1)
}

func (m *mockSaleRepository) FindByInvoiceNumber(ctx context.Context, invoiceNumber string) (*Sale, error) {
	args := m.Called(ctx, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Sale), args.Error(1)
}

func (m *mockSaleRepository) FindAll(ctx context.Context, filter shared.Filter) ([]Sale, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Sale), args.Error(1)
}

func (m *mockSaleRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSaleRepository) MarkReturned(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *mockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *mockProductRepository) FindInStock(ctx context.Context, filter shared.Filter) ([]catalog.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *mockProductRepository) CountInStock(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockProductRepository) IncreaseStock(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	args := m.Called(ctx, id, quantity)
	return args.Error(0)
}

func (m *mockProductRepository) DecreaseStock(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	args := m.Called(ctx, id, quantity)
	return args.Error(0)
}

type mockReturnedQuantityReader struct {
	mock.Mock
}

func (m *mockReturnedQuantityReader) ReturnedQuantitiesBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

type resolverFixture struct {
	resolver *Resolver
	sales    *mockSaleRepository
	products *mockProductRepository
	returned *mockReturnedQuantityReader
	sale     *Sale
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()

	s := &Sale{
		BaseEntity:    shared.NewBaseEntity(),
		InvoiceNumber: "INV-2026-00017",
		Status:        SaleStatusCompleted,
	}
	s.Items = []SaleItem{
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

	sales := new(mockSaleRepository)
	products := new(mockProductRepository)
	returned := new(mockReturnedQuantityReader)

	return &resolverFixture{
		resolver: NewResolver(sales, products, returned),
		sales:    sales,
		products: products,
		returned: returned,
		sale:     s,
	}
}

func (f *resolverFixture) liveProducts(ids ...uuid.UUID) []catalog.Product {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.Product{BaseEntity: shared.BaseEntity{ID: id}})
	}
	return out
}

func TestResolver_ResolveByInvoiceNumber(t *testing.T) {
	f := newResolverFixture(t)
	f.sales.On("FindByInvoiceNumber", mock.Anything, f.sale.InvoiceNumber).Return(f.sale, nil)
	f.products.On("FindByIDs", mock.Anything, mock.Anything).
		Return(f.liveProducts(f.sale.Items[0].ProductID, f.sale.Items[1].ProductID), nil)
	f.returned.On("ReturnedQuantitiesBySale", mock.Anything, f.sale.ID).
		Return(map[uuid.UUID]decimal.Decimal{f.sale.Items[0].ProductID: decimal.NewFromInt(1)}, nil)

	resolved, err := f.resolver.Resolve(context.Background(), f.sale.InvoiceNumber)

	require.NoError(t, err)
	require.Len(t, resolved.Items, 2)
	assert.Equal(t, 0, resolved.ExcludedItems)
	assert.True(t, resolved.Items[0].RemainingQuantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, resolved.Items[1].RemainingQuantity.Equal(decimal.NewFromInt(1)))
	f.sales.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestResolver_ResolveByID(t *testing.T) {
	f := newResolverFixture(t)
	f.sales.On("FindByID", mock.Anything, f.sale.ID).Return(f.sale, nil)
	f.products.On("FindByIDs", mock.Anything, mock.Anything).
		Return(f.liveProducts(f.sale.Items[0].ProductID, f.sale.Items[1].ProductID), nil)
	f.returned.On("ReturnedQuantitiesBySale", mock.Anything, f.sale.ID).
		Return(map[uuid.UUID]decimal.Decimal{}, nil)

	resolved, err := f.resolver.Resolve(context.Background(), f.sale.ID.String())

	require.NoError(t, err)
	assert.Len(t, resolved.Items, 2)
	f.sales.AssertNotCalled(t, "FindByInvoiceNumber", mock.Anything, mock.Anything)
}

func TestResolver_ResolveCancelledSale(t *testing.T) {
	f := newResolverFixture(t)
	f.sale.Status = SaleStatusCancelled
	f.sales.On("FindByInvoiceNumber", mock.Anything, f.sale.InvoiceNumber).Return(f.sale, nil)

	_, err := f.resolver.Resolve(context.Background(), f.sale.InvoiceNumber)

	assert.ErrorIs(t, err, ErrSaleNotReturnable)
	f.products.AssertNotCalled(t, "FindByIDs", mock.Anything, mock.Anything)
}

func TestResolver_ResolveSkipsDeletedProducts(t *testing.T) {
	f := newResolverFixture(t)
	f.sales.On("FindByInvoiceNumber", mock.Anything, f.sale.InvoiceNumber).Return(f.sale, nil)
	// Only the second line's product still exists
	f.products.On("FindByIDs", mock.Anything, mock.Anything).
		Return(f.liveProducts(f.sale.Items[1].ProductID), nil)
	f.returned.On("ReturnedQuantitiesBySale", mock.Anything, f.sale.ID).
		Return(map[uuid.UUID]decimal.Decimal{}, nil)

	resolved, err := f.resolver.Resolve(context.Background(), f.sale.InvoiceNumber)

	require.NoError(t, err)
	require.Len(t, resolved.Items, 1)
	assert.Equal(t, 1, resolved.ExcludedItems)
	assert.Equal(t, f.sale.Items[1].ID, resolved.Items[0].SaleItemID)
}

func TestResolver_ResolveAllProductsDeleted(t *testing.T) {
	f := newResolverFixture(t)
	f.sales.On("FindByInvoiceNumber", mock.Anything, f.sale.InvoiceNumber).Return(f.sale, nil)
	f.products.On("FindByIDs", mock.Anything, mock.Anything).Return([]catalog.Product{}, nil)
	f.returned.On("ReturnedQuantitiesBySale", mock.Anything, f.sale.ID).
		Return(map[uuid.UUID]decimal.Decimal{}, nil)

	_, err := f.resolver.Resolve(context.Background(), f.sale.InvoiceNumber)

	assert.ErrorIs(t, err, shared.ErrNoValidItems)
}

func TestResolver_RemainingQuantityClampsToZero(t *testing.T) {
	f := newResolverFixture(t)
	f.sales.On("FindByInvoiceNumber", mock.Anything, f.sale.InvoiceNumber).Return(f.sale, nil)
	f.products.On("FindByIDs", mock.Anything, mock.Anything).
		Return(f.liveProducts(f.sale.Items[0].ProductID, f.sale.Items[1].ProductID), nil)
	// More returned than sold can happen transiently between a decision
	// and the reader's snapshot; the resolver never reports negatives
	f.returned.On("ReturnedQuantitiesBySale", mock.Anything, f.sale.ID).
		Return(map[uuid.UUID]decimal.Decimal{f.sale.Items[0].ProductID: decimal.NewFromInt(5)}, nil)

	resolved, err := f.resolver.Resolve(context.Background(), f.sale.InvoiceNumber)

	require.NoError(t, err)
	assert.True(t, resolved.Items[0].RemainingQuantity.IsZero())
}

func TestResolvedSale_Item(t *testing.T) {
	f := newResolverFixture(t)
	resolved := &ResolvedSale{
		Sale: f.sale,
		Items: []ResolvedItem{
			{SaleItemID: f.sale.Items[0].ID, ProductSKU: "BEAN-001"},
		},
	}

	require.NotNil(t, resolved.Item(f.sale.Items[0].ID))
	assert.Equal(t, "BEAN-001", resolved.Item(f.sale.Items[0].ID).ProductSKU)
	assert.Nil(t, resolved.Item(uuid.New()))
}
