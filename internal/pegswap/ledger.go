package pegswap

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pegswap-experiment/pegswap/internal/world"
)

// Engine storage layout:
//
//	slot 0  owner
//	slot 1  pending owner
//	slot 2  mapping(source => mapping(target => uint256)) available amounts
//	slot 3  mapping(source => mapping(target => bool)) known directions
//	slot 4  Direction[] known directions in order of first use (two slots each)
var (
	slotOwner        = world.Slot(0)
	slotPendingOwner = world.Slot(1)
	slotLiquidity    = world.Slot(2)
	slotKnown        = world.Slot(3)
	slotDirections   = world.Slot(4)
)

var knownFlag = common.BigToHash(common.Big1)

// LiquidityLedger maps directions to available amounts in the engine's
// storage. Methods must run inside a unit of the world state.
type LiquidityLedger struct {
	state *world.State
	addr  common.Address
}

func newLiquidityLedger(state *world.State, addr common.Address) *LiquidityLedger {
	return &LiquidityLedger{state: state, addr: addr}
}

func directionSlot(base common.Hash, d Direction) common.Hash {
	inner := world.MappingSlot(base, world.AddressKey(d.Source))
	return world.MappingSlot(inner, world.AddressKey(d.Target))
}

// AmountOf returns the available amount of d, zero if never increased.
func (l *LiquidityLedger) AmountOf(d Direction) *uint256.Int {
	return l.state.GetUint(l.addr, directionSlot(slotLiquidity, d))
}

// Known reports whether d has ever been increased.
func (l *LiquidityLedger) Known(d Direction) bool {
	return l.state.GetState(l.addr, directionSlot(slotKnown, d)) == knownFlag
}

// Increase marks d known and adds n to its available amount.
func (l *LiquidityLedger) Increase(d Direction, n *uint256.Int) error {
	sum, overflow := new(uint256.Int).AddOverflow(l.AmountOf(d), n)
	if overflow {
		return fmt.Errorf("%w: %s", ErrLiquidityOverflow, d)
	}
	l.markKnown(d)
	l.state.SetUint(l.addr, directionSlot(slotLiquidity, d), sum)
	return nil
}

// Decrease subtracts n from the available amount of d.
func (l *LiquidityLedger) Decrease(d Direction, n *uint256.Int) error {
	available := l.AmountOf(d)
	if available.Lt(n) {
		return fmt.Errorf("%w: %s has %s, requested %s", ErrInsufficientLiquidity, d, available.Dec(), n.Dec())
	}
	l.state.SetUint(l.addr, directionSlot(slotLiquidity, d), available.Sub(available, n))
	return nil
}

// Directions lists known directions in the order they became known.
func (l *LiquidityLedger) Directions() []Direction {
	n := l.state.GetUint(l.addr, slotDirections).Uint64()
	out := make([]Direction, 0, n)
	for i := uint64(0); i < n; i++ {
		out = append(out, Direction{
			Source: l.state.GetAddress(l.addr, world.ArraySlot(slotDirections, 2*i)),
			Target: l.state.GetAddress(l.addr, world.ArraySlot(slotDirections, 2*i+1)),
		})
	}
	return out
}

func (l *LiquidityLedger) markKnown(d Direction) {
	if l.Known(d) {
		return
	}
	l.state.SetState(l.addr, directionSlot(slotKnown, d), knownFlag)

	n := l.state.GetUint(l.addr, slotDirections).Uint64()
	l.state.SetAddress(l.addr, world.ArraySlot(slotDirections, 2*n), d.Source)
	l.state.SetAddress(l.addr, world.ArraySlot(slotDirections, 2*n+1), d.Target)
	l.state.SetUint(l.addr, slotDirections, uint256.NewInt(n+1))
}
