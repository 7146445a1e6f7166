package eth

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// balanceOfABI is the single ERC-721 view the oracle needs.
const balanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// Holdings implements domain.HoldingsOracle by calling balanceOf on the
// edition contract. The read is synchronous; a failed call aborts the
// purchase that requested it.
type Holdings struct {
	ec  *ethclient.Client
	abi abi.ABI
}

// NewHoldings creates a Holdings oracle backed by the given Client.
func NewHoldings(c *Client) (*Holdings, error) {
	parsed, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("eth: parse balanceOf abi: %w", err)
	}
	return &Holdings{ec: c.Underlying(), abi: parsed}, nil
}

// UnitsHeldBy returns how many units of the edition the account holds.
func (h *Holdings) UnitsHeldBy(ctx context.Context, edition, account common.Address) (uint64, error) {
	data, err := h.abi.Pack("balanceOf", account)
	if err != nil {
		return 0, fmt.Errorf("eth: pack balanceOf: %w", err)
	}

	out, err := h.ec.CallContract(ctx, ethereum.CallMsg{To: &edition, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("eth: balanceOf %s for %s: %w", edition.Hex(), account.Hex(), err)
	}

	results, err := h.abi.Unpack("balanceOf", out)
	if err != nil {
		return 0, fmt.Errorf("eth: unpack balanceOf: %w", err)
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("eth: balanceOf returned unexpected type %T", results[0])
	}
	if !balance.IsUint64() {
		return 0, fmt.Errorf("eth: balanceOf %s for %s out of range", edition.Hex(), account.Hex())
	}
	return balance.Uint64(), nil
}

// Compile-time interface check.
var _ domain.HoldingsOracle = (*Holdings)(nil)
