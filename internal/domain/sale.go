// Package domain defines the core types, store interfaces, and error
// taxonomy for the dutchmint auction service.
package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SaleKey uniquely addresses one auction instance: the edition contract it
// sells and the per-edition sale number. Sale IDs are allocated by the
// lifecycle store, never by callers.
type SaleKey struct {
	Edition common.Address `json:"edition"`
	SaleID  uint32         `json:"sale_id"`
}

// String renders the key as "0xEdition/saleID", used for lock and cache keys.
func (k SaleKey) String() string {
	return fmt.Sprintf("%s/%d", k.Edition.Hex(), k.SaleID)
}

// Schedule holds the price curve and quota configuration for one sale.
// StartPrice and DecreaseSize are denominated in the ledger's native value
// unit (wei); the original on-chain representation caps them at 96 bits, so
// 256-bit checked arithmetic always has headroom.
type Schedule struct {
	// StartPrice is the unit price at auction start.
	StartPrice *uint256.Int `json:"start_price"`

	// DecreaseInterval is the wall-clock time between price steps.
	// Always positive; a zero interval is rejected at configuration time.
	DecreaseInterval time.Duration `json:"decrease_interval"`

	// DecreaseSize is the amount the unit price drops per elapsed interval.
	DecreaseSize *uint256.Int `json:"decrease_size"`

	// NumDecreases caps how many steps apply; the price is flat afterwards.
	NumDecreases uint32 `json:"num_decreases"`

	// MaxMintable is the sale-wide unit cap.
	MaxMintable uint32 `json:"max_mintable"`

	// MaxMintablePerAccount is the per-purchaser unit cap. Never zero.
	MaxMintablePerAccount uint32 `json:"max_mintable_per_account"`

	// TotalMinted is the running total of units sold. Monotonically
	// non-decreasing; only the mint path advances it.
	TotalMinted uint32 `json:"total_minted"`
}

// BaseData is the sale-lifecycle state owned by the lifecycle store: the time
// window, the affiliate fee, and the pause flag. The schedule components read
// it but never write it except through the explicit pause toggle.
type BaseData struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	AffiliateFeeBPS uint16    `json:"affiliate_fee_bps"`
	MintPaused      bool      `json:"mint_paused"`
}

// SaleInfo is the merged read-only snapshot of a sale returned by queries.
type SaleInfo struct {
	Key SaleKey `json:"key"`
	BaseData
	Schedule
}

// Quote is the result of a price computation for a given quantity.
type Quote struct {
	UnitPrice  *uint256.Int `json:"unit_price"`
	TotalPrice *uint256.Int `json:"total_price"`
}

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}
