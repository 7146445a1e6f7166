// Package service implements the purchase, administration, and query
// operations on top of the domain stores and external collaborators.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/mintfolio/dutchmint/internal/domain"
	"github.com/mintfolio/dutchmint/internal/notify"
	"github.com/mintfolio/dutchmint/internal/pricing"
)

// defaultLockTTL bounds how long a crashed purchase can hold a sale lock.
const defaultLockTTL = 10 * time.Second

// MintService enforces purchase-time invariants and advances the running
// total of units sold. All checks happen before the single state mutation, so
// a failed purchase leaves no observable effect.
type MintService struct {
	sales     domain.SaleStore
	lifecycle domain.LifecycleStore
	receipts  domain.ReceiptStore
	oracle    domain.HoldingsOracle
	cache     domain.SaleInfoCache
	locks     domain.LockManager
	bus       domain.SignalBus
	notifier  *notify.Notifier
	logger    *slog.Logger
	lockTTL   time.Duration
	now       func() time.Time
}

// NewMintService creates a MintService with all required dependencies.
func NewMintService(
	sales domain.SaleStore,
	lifecycle domain.LifecycleStore,
	receipts domain.ReceiptStore,
	oracle domain.HoldingsOracle,
	cache domain.SaleInfoCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *MintService {
	return &MintService{
		sales:     sales,
		lifecycle: lifecycle,
		receipts:  receipts,
		oracle:    oracle,
		cache:     cache,
		locks:     locks,
		bus:       bus,
		notifier:  notifier,
		logger:    logger,
		lockTTL:   defaultLockTTL,
		now:       time.Now,
	}
}

// WithLockTTL overrides the default purchase lock TTL. Zero or negative
// values are ignored.
func (s *MintService) WithLockTTL(ttl time.Duration) *MintService {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// Purchase mints quantity units of the sale to account, charging the price
// the curve yields at the time of the call. The sequence is strict: lifecycle
// gate, schedule read, holdings read, per-account cap check, price quote, and
// only then the conditional increment of the running total. The increment is
// the sole owner of the sale-wide cap, so the invariant is enforced exactly
// once no matter how the call interleaves with others.
func (s *MintService) Purchase(ctx context.Context, key domain.SaleKey, account common.Address, quantity uint32) (domain.Receipt, error) {
	if quantity == 0 {
		return domain.Receipt{}, domain.ErrInvalidQuantity
	}

	// Serialize mutations per sale. The surrounding environment of the
	// original design guaranteed one mutation in flight per record; the
	// lock restores that guarantee here.
	unlock, err := s.locks.Acquire(ctx, "purchase:"+key.String(), s.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.Receipt{}, domain.ErrLockHeld
		}
		return domain.Receipt{}, fmt.Errorf("mint_service: lock %s: %w", key, err)
	}
	defer unlock()

	base, err := s.lifecycle.GetBase(ctx, key)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("mint_service: base data %s: %w", key, err)
	}

	now := s.now()
	if base.MintPaused {
		return domain.Receipt{}, domain.ErrMintPaused
	}
	if now.Before(base.StartTime) {
		return domain.Receipt{}, domain.ErrSaleNotStarted
	}
	if !base.EndTime.IsZero() && now.After(base.EndTime) {
		return domain.Receipt{}, domain.ErrSaleEnded
	}

	sched, err := s.sales.Get(ctx, key)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("mint_service: schedule %s: %w", key, err)
	}

	// Per-account cap. The oracle read happens before any state change; if
	// it fails the purchase fails whole. The ledger is untrusted input: a
	// balance near MaxUint64 must not wrap the comparison, so check the
	// holdings against the cap before touching the sum.
	held, err := s.oracle.UnitsHeldBy(ctx, key.Edition, account)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("mint_service: holdings of %s: %w", account.Hex(), err)
	}
	if held >= uint64(sched.MaxMintablePerAccount) ||
		uint64(quantity) > uint64(sched.MaxMintablePerAccount)-held {
		return domain.Receipt{}, domain.ErrPerAccountCapExceeded
	}

	quote, err := pricing.Quote(sched, base.StartTime, now, quantity)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("mint_service: quote %s: %w", key, err)
	}

	newTotal, err := s.sales.IncrementTotalMinted(ctx, key, quantity)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("mint_service: increment %s: %w", key, err)
	}

	receipt := domain.Receipt{
		ID:          uuid.New().String(),
		Edition:     key.Edition,
		SaleID:      key.SaleID,
		Account:     account,
		Quantity:    quantity,
		UnitPrice:   quote.UnitPrice,
		TotalPrice:  quote.TotalPrice,
		TotalMinted: newTotal,
		MintedAt:    now,
	}

	// The purchase is committed; the receipt is our record of it. A failed
	// insert is logged loudly but does not undo the sale.
	if err := s.receipts.Insert(ctx, receipt); err != nil {
		s.logger.ErrorContext(ctx, "mint_service: receipt insert failed",
			slog.String("sale", key.String()),
			slog.String("receipt_id", receipt.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "mint_service: cache invalidate failed",
			slog.String("sale", key.String()),
			slog.String("error", err.Error()),
		)
	}

	s.publishMint(ctx, receipt)

	if newTotal == sched.MaxMintable && s.notifier != nil {
		_ = s.notifier.Notify(ctx, "sold_out",
			fmt.Sprintf("Sale %s sold out", key),
			fmt.Sprintf("All %d units minted.", sched.MaxMintable),
		)
	}

	s.logger.InfoContext(ctx, "mint_service: purchase",
		slog.String("sale", key.String()),
		slog.String("account", account.Hex()),
		slog.Uint64("quantity", uint64(quantity)),
		slog.String("unit_price", quote.UnitPrice.Dec()),
		slog.Uint64("total_minted", uint64(newTotal)),
	)

	return receipt, nil
}

// publishMint emits a mint event on the signal bus.
func (s *MintService) publishMint(ctx context.Context, r domain.Receipt) {
	evt, _ := json.Marshal(map[string]any{
		"event":        "mint",
		"edition":      r.Edition.Hex(),
		"sale_id":      r.SaleID,
		"account":      r.Account.Hex(),
		"quantity":     r.Quantity,
		"unit_price":   r.UnitPrice.Dec(),
		"total_price":  r.TotalPrice.Dec(),
		"total_minted": r.TotalMinted,
		"minted_at":    r.MintedAt.Format(time.RFC3339Nano),
	})
	if err := s.bus.Publish(ctx, "mints", evt); err != nil {
		s.logger.WarnContext(ctx, "mint_service: publish mint event failed",
			slog.String("sale", r.Key().String()),
			slog.String("error", err.Error()),
		)
	}
}
