// Package token provides the token capability consumed by the swap engine
// and a reference ERC-20-style ledger stored in the world state.
package token

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pegswap-experiment/pegswap/internal/contract"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrZeroAddress           = errors.New("token: zero address")
	ErrSupplyOverflow        = errors.New("token: total supply overflow")
	ErrUnknownToken          = errors.New("token: unknown token")
	ErrDuplicateToken        = errors.New("token: already registered")
)

// Gateway is the capability the engine holds for one token. Every call is
// synchronous and may fail; implementations outside this package are
// untrusted and may re-enter the caller.
type Gateway interface {
	Address() common.Address
	BalanceOf(ctx context.Context, holder common.Address) (*uint256.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*uint256.Int, error)
	Approve(ctx context.Context, owner, spender common.Address, amount *uint256.Int) error
	// Transfer moves amount from from to to (a push by from).
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	// TransferFrom moves amount from from to to on behalf of spender,
	// consuming spender's allowance.
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error
}

// Token is a Gateway that also carries metadata and an ABI surface.
type Token interface {
	Gateway
	contract.Callable
	Symbol() string
	Decimals() uint8
	TotalSupply(ctx context.Context) (*uint256.Int, error)
	Mint(ctx context.Context, to common.Address, amount *uint256.Int) error
}
