package token

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pegswap-experiment/pegswap/internal/contract"
	"github.com/pegswap-experiment/pegswap/internal/world"
)

// Storage layout, matching a Solidity ERC-20 with
// `uint256 totalSupply; mapping(address=>uint256) balances;
// mapping(address=>mapping(address=>uint256)) allowances;`
var (
	slotTotalSupply = world.Slot(0)
	slotBalances    = world.Slot(1)
	slotAllowances  = world.Slot(2)
)

// Ledger is an ERC-20-style token whose state lives at its address in the
// world state.
type Ledger struct {
	state    *world.State
	addr     common.Address
	symbol   string
	decimals uint8
}

// NewLedger binds a token ledger to addr.
func NewLedger(state *world.State, addr common.Address, symbol string, decimals uint8) *Ledger {
	return &Ledger{state: state, addr: addr, symbol: symbol, decimals: decimals}
}

func (l *Ledger) Address() common.Address { return l.addr }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) Decimals() uint8         { return l.decimals }
func (l *Ledger) ABI() contract.ABI       { return erc20ABI }

func balanceSlot(holder common.Address) common.Hash {
	return world.MappingSlot(slotBalances, world.AddressKey(holder))
}

func allowanceSlot(owner, spender common.Address) common.Hash {
	inner := world.MappingSlot(slotAllowances, world.AddressKey(owner))
	return world.MappingSlot(inner, world.AddressKey(spender))
}

func (l *Ledger) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	var out *uint256.Int
	err := l.state.View(ctx, func(context.Context) error {
		out = l.state.GetUint(l.addr, slotTotalSupply)
		return nil
	})
	return out, err
}

func (l *Ledger) BalanceOf(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := l.state.View(ctx, func(context.Context) error {
		out = l.state.GetUint(l.addr, balanceSlot(holder))
		return nil
	})
	return out, err
}

func (l *Ledger) Allowance(ctx context.Context, owner, spender common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := l.state.View(ctx, func(context.Context) error {
		out = l.state.GetUint(l.addr, allowanceSlot(owner, spender))
		return nil
	})
	return out, err
}

// Approve sets spender's allowance over owner's balance to amount.
func (l *Ledger) Approve(ctx context.Context, owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return fmt.Errorf("%w: approve", ErrZeroAddress)
	}
	return l.state.Execute(ctx, func(context.Context) error {
		l.state.SetUint(l.addr, allowanceSlot(owner, spender), amount)
		return l.emit("Approval", owner, spender, amount)
	})
}

// Transfer moves amount from from to to. Zero-value transfers succeed and
// still emit a Transfer log.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return l.state.Execute(ctx, func(context.Context) error {
		return l.move(from, to, amount)
	})
}

// TransferFrom moves amount from from to to, consuming spender's allowance.
// An allowance of the maximum value is treated as unlimited.
func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	return l.state.Execute(ctx, func(context.Context) error {
		slot := allowanceSlot(from, spender)
		allowed := l.state.GetUint(l.addr, slot)
		if allowed.Lt(amount) {
			return fmt.Errorf("%w: %s allowed %s, need %s", ErrInsufficientAllowance, spender.Hex(), allowed.Dec(), amount.Dec())
		}
		if !allowed.Eq(maxAllowance) {
			l.state.SetUint(l.addr, slot, new(uint256.Int).Sub(allowed, amount))
		}
		return l.move(from, to, amount)
	})
}

// Mint creates amount new tokens for to.
func (l *Ledger) Mint(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("%w: mint", ErrZeroAddress)
	}
	return l.state.Execute(ctx, func(context.Context) error {
		l.state.Touch(l.addr)

		supply, overflow := new(uint256.Int).AddOverflow(l.state.GetUint(l.addr, slotTotalSupply), amount)
		if overflow {
			return ErrSupplyOverflow
		}
		l.state.SetUint(l.addr, slotTotalSupply, supply)

		// cannot overflow: a balance never exceeds total supply
		bal := l.state.GetUint(l.addr, balanceSlot(to))
		l.state.SetUint(l.addr, balanceSlot(to), bal.Add(bal, amount))
		return l.emit("Transfer", common.Address{}, to, amount)
	})
}

func (l *Ledger) move(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return fmt.Errorf("%w: transfer", ErrZeroAddress)
	}
	fromSlot := balanceSlot(from)
	bal := l.state.GetUint(l.addr, fromSlot)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, need %s", ErrInsufficientBalance, from.Hex(), bal.Dec(), amount.Dec())
	}
	l.state.SetUint(l.addr, fromSlot, bal.Sub(bal, amount))

	toSlot := balanceSlot(to)
	dst := l.state.GetUint(l.addr, toSlot)
	l.state.SetUint(l.addr, toSlot, dst.Add(dst, amount))

	return l.emit("Transfer", from, to, amount)
}

func (l *Ledger) emit(event string, args ...interface{}) error {
	for i, a := range args {
		if v, ok := a.(*uint256.Int); ok {
			args[i] = contract.Big(v)
		}
	}
	log, err := erc20ABI.NewLog(l.addr, event, args...)
	if err != nil {
		return err
	}
	l.state.AddLog(log)
	return nil
}

var maxAllowance = new(uint256.Int).SetAllOne()
