package domain

import (
	"context"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SaleStore persists auction schedules keyed by SaleKey.
type SaleStore interface {
	// Create inserts the schedule for a new sale. It returns
	// ErrAlreadyExists if a record is already present for the key.
	Create(ctx context.Context, key SaleKey, s Schedule) error

	// Get returns the schedule or ErrNotFound.
	Get(ctx context.Context, key SaleKey) (Schedule, error)

	// UpdateSchedule overwrites the four price-curve fields unconditionally.
	UpdateSchedule(ctx context.Context, key SaleKey, startPrice *uint256.Int, interval time.Duration, decreaseSize *uint256.Int, numDecreases uint32) error

	// SetMaxMintable overwrites the sale-wide cap. The new value may be
	// below TotalMinted; history is never truncated, further purchases
	// simply fail the cap check.
	SetMaxMintable(ctx context.Context, key SaleKey, value uint32) error

	// SetMaxMintablePerAccount overwrites the per-purchaser cap.
	SetMaxMintablePerAccount(ctx context.Context, key SaleKey, value uint32) error

	// SetTotalMinted overwrites the running total directly.
	SetTotalMinted(ctx context.Context, key SaleKey, value uint32) error

	// IncrementTotalMinted adds delta to the running total only when the
	// result stays within MaxMintable, returning the new total. It is the
	// single owner of the totalMinted <= maxMintable invariant and returns
	// ErrSaleCapExceeded without any state change when the cap would be
	// breached.
	IncrementTotalMinted(ctx context.Context, key SaleKey, delta uint32) (uint32, error)
}

// LifecycleStore owns the per-sale base data: identifier allocation, the time
// window, the affiliate fee, and the pause flag.
type LifecycleStore interface {
	// CreateBase allocates the next sale ID for the edition and stores the
	// base record. IDs are monotonic per edition, starting at zero.
	CreateBase(ctx context.Context, edition common.Address, startTime, endTime time.Time, affiliateFeeBPS uint16) (uint32, error)

	// GetBase returns the base record or ErrNotFound.
	GetBase(ctx context.Context, key SaleKey) (BaseData, error)

	// SetMintPaused toggles the pause flag.
	SetMintPaused(ctx context.Context, key SaleKey, paused bool) error
}

// ReceiptStore persists mint receipts.
type ReceiptStore interface {
	Insert(ctx context.Context, r Receipt) error
	ListBySale(ctx context.Context, key SaleKey, opts ListOpts) ([]Receipt, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]Receipt, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditStore persists an append-only log of administrative actions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// HoldingsOracle reports how many units of an edition an account already
// holds. Backed by the token ledger; a failed read aborts the purchase with
// no state change.
type HoldingsOracle interface {
	UnitsHeldBy(ctx context.Context, edition, account common.Address) (uint64, error)
}

// AccessControl resolves whether a caller may run administrative operations
// against an edition. Injected so the mutator stays free of any particular
// role-storage implementation.
type AccessControl interface {
	IsOwnerOrAdmin(ctx context.Context, edition, caller common.Address) (bool, error)
}

// SaleInfoCache caches merged sale snapshots.
type SaleInfoCache interface {
	Get(ctx context.Context, key SaleKey) (SaleInfo, error)
	Set(ctx context.Context, info SaleInfo) error
	Invalidate(ctx context.Context, key SaleKey) error
}

// LockManager provides per-key mutual exclusion so that at most one purchase
// mutates a sale record at a time.
type LockManager interface {
	// Acquire obtains the lock for key or returns ErrLockHeld. The returned
	// function releases the lock and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter bounds how often a client may hit the purchase surface.
type RateLimiter interface {
	// Allow reports whether the caller identified by key may proceed,
	// given a budget of limit calls per window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus publishes and subscribes to sale event notifications.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads a blob to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
