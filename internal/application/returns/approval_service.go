package returns

import (
	"context"

	"github.com/storeops/backend/internal/domain/returns"
	"github.com/storeops/backend/internal/domain/shared"
)

// ApprovalService decides pending returns. Approval and its stock
// reconciliation are one atomic unit: either the return lands COMPLETED
// with all stock effects applied, or nothing changes and it stays
// PENDING.
type ApprovalService struct {
	returnRepo returns.ReturnRepository
	reconciler returns.ReconciliationStore
	statsCache StatsCache
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	returnRepo returns.ReturnRepository,
	reconciler returns.ReconciliationStore,
) *ApprovalService {
	return &ApprovalService{
		returnRepo: returnRepo,
		reconciler: reconciler,
	}
}

// SetStatsCache enables invalidation of the cached statistics aggregate
func (s *ApprovalService) SetStatsCache(cache StatsCache) {
	s.statsCache = cache
}

// Approve approves a pending return and reconciles stock. Approving an
// already completed return is a no-op returning its current state, so
// retried requests are safe.
func (s *ApprovalService) Approve(ctx context.Context, req ApproveReturnRequest) (*ReturnResponse, error) {
	if !req.Privileged {
		return nil, shared.ErrForbidden
	}

	ret, err := s.returnRepo.FindByID(ctx, req.ReturnID)
	if err != nil {
		return nil, err
	}

	if ret.IsCompleted() {
		response := ToReturnResponse(ret)
		return &response, nil
	}

	if err := ret.Approve(req.ApproverID, req.Notes); err != nil {
		return nil, err
	}

	if err := s.reconciler.Reconcile(ctx, ret); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)

	response := ToReturnResponse(ret)
	return &response, nil
}

// Reject rejects a pending return. Rejection carries no stock or
// financial effects; a note explaining the decision is required.
// Rejecting an already rejected return is a no-op.
func (s *ApprovalService) Reject(ctx context.Context, req RejectReturnRequest) (*ReturnResponse, error) {
	if !req.Privileged {
		return nil, shared.ErrForbidden
	}

	ret, err := s.returnRepo.FindByID(ctx, req.ReturnID)
	if err != nil {
		return nil, err
	}

	if ret.IsRejected() {
		response := ToReturnResponse(ret)
		return &response, nil
	}

	if err := ret.Reject(req.RejecterID, req.Notes); err != nil {
		return nil, err
	}

	if err := s.returnRepo.SaveDecision(ctx, ret, returns.ReturnStatusPending); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)

	response := ToReturnResponse(ret)
	return &response, nil
}

func (s *ApprovalService) invalidateStats(ctx context.Context) {
	if s.statsCache != nil {
		_ = s.statsCache.Invalidate(ctx)
	}
}
