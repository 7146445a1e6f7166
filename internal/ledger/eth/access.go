package eth

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// ownerABI is the ERC-173 ownership view used to resolve edition owners.
const ownerABI = `[{"constant":true,"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

// AccessControl implements domain.AccessControl. A caller is authorized when
// it appears in the configured admin set or is the edition contract's owner.
// The admin set is checked first so operator tooling keeps working when the
// RPC endpoint is down.
type AccessControl struct {
	ec     *ethclient.Client
	abi    abi.ABI
	admins map[common.Address]bool
}

// NewAccessControl creates an AccessControl with the given static admin set.
func NewAccessControl(c *Client, admins []common.Address) (*AccessControl, error) {
	parsed, err := abi.JSON(strings.NewReader(ownerABI))
	if err != nil {
		return nil, fmt.Errorf("eth: parse owner abi: %w", err)
	}

	set := make(map[common.Address]bool, len(admins))
	for _, a := range admins {
		set[a] = true
	}
	return &AccessControl{ec: c.Underlying(), abi: parsed, admins: set}, nil
}

// IsOwnerOrAdmin reports whether caller may administer sales of the edition.
func (a *AccessControl) IsOwnerOrAdmin(ctx context.Context, edition, caller common.Address) (bool, error) {
	if a.admins[caller] {
		return true, nil
	}

	owner, err := a.ownerOf(ctx, edition)
	if err != nil {
		return false, err
	}
	return owner == caller, nil
}

// ownerOf resolves the ERC-173 owner of the edition contract.
func (a *AccessControl) ownerOf(ctx context.Context, edition common.Address) (common.Address, error) {
	data, err := a.abi.Pack("owner")
	if err != nil {
		return common.Address{}, fmt.Errorf("eth: pack owner: %w", err)
	}

	out, err := a.ec.CallContract(ctx, ethereum.CallMsg{To: &edition, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("eth: owner of %s: %w", edition.Hex(), err)
	}

	results, err := a.abi.Unpack("owner", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("eth: unpack owner: %w", err)
	}
	owner, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("eth: owner returned unexpected type %T", results[0])
	}
	return owner, nil
}

// Compile-time interface check.
var _ domain.AccessControl = (*AccessControl)(nil)
