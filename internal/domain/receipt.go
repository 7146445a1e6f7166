package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Receipt records one successful purchase: the quantity bought, the price
// charged, and the sale-wide total after the purchase was applied.
type Receipt struct {
	ID          string         `json:"id"`
	Edition     common.Address `json:"edition"`
	SaleID      uint32         `json:"sale_id"`
	Account     common.Address `json:"account"`
	Quantity    uint32         `json:"quantity"`
	UnitPrice   *uint256.Int   `json:"unit_price"`
	TotalPrice  *uint256.Int   `json:"total_price"`
	TotalMinted uint32         `json:"total_minted"`
	MintedAt    time.Time      `json:"minted_at"`
}

// Key returns the SaleKey the receipt belongs to.
func (r Receipt) Key() SaleKey {
	return SaleKey{Edition: r.Edition, SaleID: r.SaleID}
}
