package returns

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/returns"
	"github.com/storeops/backend/internal/domain/sale"
	"github.com/storeops/backend/internal/domain/shared"
)

// StatsCache caches the return statistics aggregate. A miss returns
// (nil, nil). Implemented by the redis cache; optional.
type StatsCache interface {
	Get(ctx context.Context) (*returns.ReturnStats, error)
	Set(ctx context.Context, stats *returns.ReturnStats) error
	Invalidate(ctx context.Context) error
}

// ReturnService handles return recording and querying
type ReturnService struct {
	returnRepo returns.ReturnRepository
	resolver   *sale.Resolver
	products   catalog.ProductRepository
	statsCache StatsCache
}

// NewReturnService creates a new ReturnService
func NewReturnService(
	returnRepo returns.ReturnRepository,
	resolver *sale.Resolver,
	products catalog.ProductRepository,
) *ReturnService {
	return &ReturnService{
		returnRepo: returnRepo,
		resolver:   resolver,
		products:   products,
	}
}

// SetStatsCache enables caching of the statistics aggregate
func (s *ReturnService) SetStatsCache(cache StatsCache) {
	s.statsCache = cache
}

// ResolveSale finds a sale by ID or invoice number and returns it
// normalized for drafting: live items only, with remaining returnable
// quantities
func (s *ReturnService) ResolveSale(ctx context.Context, searchKey string) (*ResolvedSaleResponse, error) {
	resolved, err := s.resolver.Resolve(ctx, searchKey)
	if err != nil {
		return nil, err
	}
	response := ToResolvedSaleResponse(resolved)
	return &response, nil
}

// Create records a new PENDING return against a sale. The request goes
// through the same validation as an interactively built draft.
func (s *ReturnService) Create(ctx context.Context, req CreateReturnRequest) (*ReturnResponse, error) {
	resolved, err := s.resolver.Resolve(ctx, req.SaleKey)
	if err != nil {
		return nil, err
	}

	reason := returns.ReturnReason(req.Reason)
	if !reason.IsValid() {
		return nil, returns.NewValidationError("reason", fmt.Sprintf("unknown reason %q", req.Reason))
	}

	var method *returns.RefundMethod
	if req.RefundMethod != nil {
		m := returns.RefundMethod(*req.RefundMethod)
		method = &m
	}

	selections := make([]returns.ItemSelection, 0, len(req.Items))
	for _, item := range req.Items {
		selections = append(selections, returns.ItemSelection{
			SaleItemID: item.SaleItemID,
			Quantity:   item.Quantity,
		})
	}

	exchanges, err := s.loadExchangeSelections(ctx, req.ExchangeItems)
	if err != nil {
		return nil, err
	}

	ret, err := returns.NewReturn(resolved, selections, reason, method, exchanges, req.Notes, req.ProcessedBy)
	if err != nil {
		return nil, err
	}

	if err := s.returnRepo.Create(ctx, ret); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)

	response := ToReturnResponse(ret)
	return &response, nil
}

// loadExchangeSelections resolves requested replacement products against
// the live catalog
func (s *ReturnService) loadExchangeSelections(ctx context.Context, reqs []CreateExchangeItemRequest) ([]returns.ExchangeSelection, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	selections := make([]returns.ExchangeSelection, 0, len(reqs))
	for _, r := range reqs {
		product, ok := byID[r.ProductID]
		if !ok {
			return nil, returns.NewValidationError("exchange_items",
				fmt.Sprintf("product %s not found", r.ProductID))
		}
		selections = append(selections, returns.ExchangeSelection{
			Product:  product,
			Quantity: r.Quantity,
		})
	}
	return selections, nil
}

// GetByID retrieves a return by ID
func (s *ReturnService) GetByID(ctx context.Context, returnID uuid.UUID) (*ReturnResponse, error) {
	ret, err := s.returnRepo.FindByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	response := ToReturnResponse(ret)
	return &response, nil
}

// GetByReturnNumber retrieves a return by its business number
func (s *ReturnService) GetByReturnNumber(ctx context.Context, number string) (*ReturnResponse, error) {
	ret, err := s.returnRepo.FindByReturnNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	response := ToReturnResponse(ret)
	return &response, nil
}

// List retrieves returns with filtering and pagination
func (s *ReturnService) List(ctx context.Context, filter ReturnListFilter) ([]ReturnListItemResponse, int64, error) {
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
		status := returns.ReturnStatus(*filter.Status)
		if !status.IsValid() {
			return nil, 0, returns.NewValidationError("status", fmt.Sprintf("unknown status %q", *filter.Status))
		}
		domainFilter.Filters["status"] = status.String()
	}
	if filter.Reason != nil {
		reason := returns.ReturnReason(*filter.Reason)
		if !reason.IsValid() {
			return nil, 0, returns.NewValidationError("reason", fmt.Sprintf("unknown reason %q", *filter.Reason))
		}
		domainFilter.Filters["reason"] = reason.String()
	}
	if filter.SaleID != nil {
		domainFilter.Filters["sale_id"] = *filter.SaleID
	}
	if filter.StartDate != nil {
		domainFilter.Filters["start_date"] = *filter.StartDate
	}
	if filter.EndDate != nil {
		domainFilter.Filters["end_date"] = *filter.EndDate
	}

	rets, err := s.returnRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.returnRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToReturnListItemResponses(rets), total, nil
}

// ListBySale retrieves all returns recorded against a sale
func (s *ReturnService) ListBySale(ctx context.Context, saleID uuid.UUID) ([]ReturnListItemResponse, error) {
	rets, err := s.returnRepo.FindBySale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return ToReturnListItemResponses(rets), nil
}

// Stats aggregates counts and totals over all returns, served from the
// cache when warm
func (s *ReturnService) Stats(ctx context.Context) (*ReturnStatsResponse, error) {
	if s.statsCache != nil {
		if cached, err := s.statsCache.Get(ctx); err == nil && cached != nil {
			response := ToReturnStatsResponse(cached)
			return &response, nil
		}
	}

	stats, err := s.returnRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	if s.statsCache != nil {
		// Cache failures never fail the read
		_ = s.statsCache.Set(ctx, stats)
	}

	response := ToReturnStatsResponse(stats)
	return &response, nil
}

func (s *ReturnService) invalidateStats(ctx context.Context) {
	if s.statsCache != nil {
		_ = s.statsCache.Invalidate(ctx)
	}
}
