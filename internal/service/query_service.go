package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mintfolio/dutchmint/internal/domain"
	"github.com/mintfolio/dutchmint/internal/pricing"
)

// QueryService serves the read-only surface: price quotes, merged sale
// snapshots, receipt listings, and the audit trail. Quotes are pure curve
// evaluations; they never consult caps or holdings.
type QueryService struct {
	sales     domain.SaleStore
	lifecycle domain.LifecycleStore
	receipts  domain.ReceiptStore
	audit     domain.AuditStore
	cache     domain.SaleInfoCache
	logger    *slog.Logger
	now       func() time.Time
}

// NewQueryService creates a QueryService with all required dependencies.
func NewQueryService(
	sales domain.SaleStore,
	lifecycle domain.LifecycleStore,
	receipts domain.ReceiptStore,
	audit domain.AuditStore,
	cache domain.SaleInfoCache,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		sales:     sales,
		lifecycle: lifecycle,
		receipts:  receipts,
		audit:     audit,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// InfoFor returns the merged snapshot of a sale: base lifecycle data plus the
// schedule. The cache is consulted first; a miss reads both stores and
// back-fills the cache best-effort.
func (s *QueryService) InfoFor(ctx context.Context, key domain.SaleKey) (domain.SaleInfo, error) {
	if info, err := s.cache.Get(ctx, key); err == nil {
		return info, nil
	}

	base, err := s.lifecycle.GetBase(ctx, key)
	if err != nil {
		return domain.SaleInfo{}, fmt.Errorf("query_service: base data %s: %w", key, err)
	}
	sched, err := s.sales.Get(ctx, key)
	if err != nil {
		return domain.SaleInfo{}, fmt.Errorf("query_service: schedule %s: %w", key, err)
	}

	info := domain.SaleInfo{Key: key, BaseData: base, Schedule: sched}
	if err := s.cache.Set(ctx, info); err != nil {
		s.logger.WarnContext(ctx, "query_service: cache set failed",
			slog.String("sale", key.String()),
			slog.String("error", err.Error()),
		)
	}
	return info, nil
}

// PriceFor quotes quantity units of the sale at the given instant. A zero at
// means now. The quote is a pure function of the schedule and the clock; a
// sold-out or paused sale still quotes, matching the view nature of the call.
func (s *QueryService) PriceFor(ctx context.Context, key domain.SaleKey, quantity uint32, at time.Time) (domain.Quote, error) {
	if quantity == 0 {
		return domain.Quote{}, domain.ErrInvalidQuantity
	}
	if at.IsZero() {
		at = s.now()
	}

	info, err := s.InfoFor(ctx, key)
	if err != nil {
		return domain.Quote{}, err
	}
	return pricing.Quote(info.Schedule, info.StartTime, at, quantity)
}

// FloorFor returns the curve's terminal price and the instant it is reached.
func (s *QueryService) FloorFor(ctx context.Context, key domain.SaleKey) (domain.Quote, time.Time, error) {
	info, err := s.InfoFor(ctx, key)
	if err != nil {
		return domain.Quote{}, time.Time{}, err
	}
	floor, err := pricing.FloorPrice(info.Schedule)
	if err != nil {
		return domain.Quote{}, time.Time{}, err
	}
	return domain.Quote{UnitPrice: floor, TotalPrice: floor}, pricing.FloorAt(info.Schedule, info.StartTime), nil
}

// ListReceipts returns the mint receipts of a sale, newest first.
func (s *QueryService) ListReceipts(ctx context.Context, key domain.SaleKey, opts domain.ListOpts) ([]domain.Receipt, error) {
	receipts, err := s.receipts.ListBySale(ctx, key, opts)
	if err != nil {
		return nil, fmt.Errorf("query_service: receipts %s: %w", key, err)
	}
	return receipts, nil
}

// ListAudit returns administrative audit entries, newest first.
func (s *QueryService) ListAudit(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	entries, err := s.audit.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("query_service: audit: %w", err)
	}
	return entries, nil
}
