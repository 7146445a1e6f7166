package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintfolio/dutchmint/internal/domain"
	"github.com/mintfolio/dutchmint/internal/notify"
	"github.com/mintfolio/dutchmint/internal/pricing"
)

// AdminService owns all configuration writes. Every mutation is gated on the
// caller being an admin or the edition owner, validated up front, and recorded
// in the audit log after it lands.
type AdminService struct {
	sales     domain.SaleStore
	lifecycle domain.LifecycleStore
	audit     domain.AuditStore
	access    domain.AccessControl
	cache     domain.SaleInfoCache
	bus       domain.SignalBus
	notifier  *notify.Notifier
	logger    *slog.Logger
}

// NewAdminService creates an AdminService with all required dependencies.
func NewAdminService(
	sales domain.SaleStore,
	lifecycle domain.LifecycleStore,
	audit domain.AuditStore,
	access domain.AccessControl,
	cache domain.SaleInfoCache,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		sales:     sales,
		lifecycle: lifecycle,
		audit:     audit,
		access:    access,
		cache:     cache,
		bus:       bus,
		notifier:  notifier,
		logger:    logger,
	}
}

// CreateSale registers a new sale for the edition and returns its key. The
// sale ID is allocated by the lifecycle store and the schedule starts with
// zero units minted. Schedules with a zero decrease interval or a zero
// per-account cap are rejected before any state changes.
func (s *AdminService) CreateSale(ctx context.Context, caller common.Address, edition common.Address, base domain.BaseData, sched domain.Schedule) (domain.SaleKey, error) {
	if err := s.authorize(ctx, edition, caller); err != nil {
		return domain.SaleKey{}, err
	}
	if err := validateSchedule(sched); err != nil {
		return domain.SaleKey{}, err
	}
	s.warnOnUnderflow(ctx, sched, edition)

	sched.TotalMinted = 0

	saleID, err := s.lifecycle.CreateBase(ctx, edition, base.StartTime, base.EndTime, base.AffiliateFeeBPS)
	if err != nil {
		return domain.SaleKey{}, fmt.Errorf("admin_service: create base for %s: %w", edition.Hex(), err)
	}
	key := domain.SaleKey{Edition: edition, SaleID: saleID}

	if err := s.sales.Create(ctx, key, sched); err != nil {
		return domain.SaleKey{}, fmt.Errorf("admin_service: create schedule %s: %w", key, err)
	}

	s.recordAndSignal(ctx, caller, key, "create_sale", map[string]any{
		"start_price":              sched.StartPrice.Dec(),
		"decrease_size":            sched.DecreaseSize.Dec(),
		"decrease_interval":        sched.DecreaseInterval.String(),
		"num_decreases":            sched.NumDecreases,
		"max_mintable":             sched.MaxMintable,
		"max_mintable_per_account": sched.MaxMintablePerAccount,
		"start_time":               base.StartTime.Format(time.RFC3339),
	})

	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, "sale_created",
			fmt.Sprintf("Sale %s created", key),
			fmt.Sprintf("Starting at %s wei, %d units.", sched.StartPrice.Dec(), sched.MaxMintable),
		)
	}
	return key, nil
}

// SetSchedule replaces the sale's price curve wholesale: start price, decrease
// interval, decrease size, and step count. Caps and the running total are
// untouched. A zero interval is rejected; a curve whose floor would underflow
// is accepted and surfaces as an arithmetic error at quote time.
func (s *AdminService) SetSchedule(ctx context.Context, caller common.Address, key domain.SaleKey, startPrice *uint256.Int, interval time.Duration, decreaseSize *uint256.Int, numDecreases uint32) error {
	if err := s.authorize(ctx, key.Edition, caller); err != nil {
		return err
	}

	curve := domain.Schedule{
		StartPrice:       startPrice,
		DecreaseInterval: interval,
		DecreaseSize:     decreaseSize,
		NumDecreases:     numDecreases,
	}
	if startPrice == nil || decreaseSize == nil {
		return domain.ErrInvalidSchedule
	}
	if err := pricing.Validate(curve); err != nil {
		return err
	}
	s.warnOnUnderflow(ctx, curve, key.Edition)

	if err := s.sales.UpdateSchedule(ctx, key, startPrice, interval, decreaseSize, numDecreases); err != nil {
		return fmt.Errorf("admin_service: update schedule %s: %w", key, err)
	}

	s.recordAndSignal(ctx, caller, key, "set_schedule", map[string]any{
		"start_price":       startPrice.Dec(),
		"decrease_size":     decreaseSize.Dec(),
		"decrease_interval": interval.String(),
		"num_decreases":     numDecreases,
	})

	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, "schedule_updated",
			fmt.Sprintf("Sale %s schedule updated", key),
			fmt.Sprintf("New start price %s wei over %d steps.", startPrice.Dec(), numDecreases),
		)
	}
	return nil
}

// SetMaxMintable adjusts the sale-wide cap. Values below the units already
// minted are accepted; they leave past sales untouched and block new ones.
func (s *AdminService) SetMaxMintable(ctx context.Context, caller common.Address, key domain.SaleKey, maxMintable uint32) error {
	if err := s.authorize(ctx, key.Edition, caller); err != nil {
		return err
	}
	if err := s.sales.SetMaxMintable(ctx, key, maxMintable); err != nil {
		return fmt.Errorf("admin_service: set max mintable %s: %w", key, err)
	}
	s.recordAndSignal(ctx, caller, key, "set_max_mintable", map[string]any{
		"max_mintable": maxMintable,
	})
	return nil
}

// SetMaxMintablePerAccount adjusts the per-account cap. Zero is rejected
// because it would silently brick every purchase; pausing is the explicit
// lever for that.
func (s *AdminService) SetMaxMintablePerAccount(ctx context.Context, caller common.Address, key domain.SaleKey, perAccount uint32) error {
	if err := s.authorize(ctx, key.Edition, caller); err != nil {
		return err
	}
	if perAccount == 0 {
		return domain.ErrZeroPerAccountCap
	}
	if err := s.sales.SetMaxMintablePerAccount(ctx, key, perAccount); err != nil {
		return fmt.Errorf("admin_service: set per-account cap %s: %w", key, err)
	}
	s.recordAndSignal(ctx, caller, key, "set_max_mintable_per_account", map[string]any{
		"max_mintable_per_account": perAccount,
	})
	return nil
}

// SetMintPaused flips the sale's pause flag.
func (s *AdminService) SetMintPaused(ctx context.Context, caller common.Address, key domain.SaleKey, paused bool) error {
	if err := s.authorize(ctx, key.Edition, caller); err != nil {
		return err
	}
	if err := s.lifecycle.SetMintPaused(ctx, key, paused); err != nil {
		return fmt.Errorf("admin_service: set paused %s: %w", key, err)
	}
	s.recordAndSignal(ctx, caller, key, "set_mint_paused", map[string]any{
		"paused": paused,
	})
	if paused && s.notifier != nil {
		_ = s.notifier.Notify(ctx, "mint_paused",
			fmt.Sprintf("Sale %s paused", key),
			"Purchases are rejected until the sale is unpaused.",
		)
	}
	return nil
}

// authorize resolves the caller against the admin set and the edition owner.
func (s *AdminService) authorize(ctx context.Context, edition, caller common.Address) error {
	ok, err := s.access.IsOwnerOrAdmin(ctx, edition, caller)
	if err != nil {
		return fmt.Errorf("admin_service: authorize %s: %w", caller.Hex(), err)
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}

// validateSchedule rejects the configurations that can never price or mint
// correctly. A curve whose floor would underflow is allowed through; it prices
// fine until the step where the subtraction fails, and the admin can fix it in
// place.
func validateSchedule(sched domain.Schedule) error {
	if sched.StartPrice == nil || sched.DecreaseSize == nil {
		return domain.ErrInvalidSchedule
	}
	if err := pricing.Validate(sched); err != nil {
		return err
	}
	if sched.MaxMintablePerAccount == 0 {
		return domain.ErrZeroPerAccountCap
	}
	return nil
}

// warnOnUnderflow logs when the configured curve cannot reach its final step.
func (s *AdminService) warnOnUnderflow(ctx context.Context, sched domain.Schedule, edition common.Address) {
	if _, err := pricing.FloorPrice(sched); err != nil {
		s.logger.WarnContext(ctx, "admin_service: curve floor underflows",
			slog.String("edition", edition.Hex()),
			slog.String("start_price", sched.StartPrice.Dec()),
			slog.String("decrease_size", sched.DecreaseSize.Dec()),
			slog.Uint64("num_decreases", uint64(sched.NumDecreases)),
		)
	}
}

// recordAndSignal writes the audit entry, drops the cached sale view, and
// broadcasts the change. All three are best-effort once the mutation landed.
func (s *AdminService) recordAndSignal(ctx context.Context, caller common.Address, key domain.SaleKey, action string, detail map[string]any) {
	entry := map[string]any{
		"caller":  caller.Hex(),
		"edition": key.Edition.Hex(),
		"sale_id": key.SaleID,
	}
	for k, v := range detail {
		entry[k] = v
	}
	if err := s.audit.Log(ctx, action, entry); err != nil {
		s.logger.ErrorContext(ctx, "admin_service: audit log failed",
			slog.String("sale", key.String()),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}

	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "admin_service: cache invalidate failed",
			slog.String("sale", key.String()),
			slog.String("error", err.Error()),
		)
	}

	payload := map[string]any{"event": action}
	for k, v := range entry {
		payload[k] = v
	}
	evt, _ := json.Marshal(payload)
	if err := s.bus.Publish(ctx, "sales", evt); err != nil {
		s.logger.WarnContext(ctx, "admin_service: publish failed",
			slog.String("sale", key.String()),
			slog.String("error", err.Error()),
		)
	}
}
