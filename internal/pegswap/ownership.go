package pegswap

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pegswap-experiment/pegswap/internal/world"
)

// OwnerState is the current owner plus an optional pending owner.
type OwnerState struct {
	Owner   common.Address
	pending *common.Address
}

// Pending returns the pending owner, if one is set.
func (s OwnerState) Pending() (common.Address, bool) {
	if s.pending == nil {
		return common.Address{}, false
	}
	return *s.pending, true
}

// Ownership is the two-step transfer of administrative privilege.
// Methods must run inside a unit of the world state.
type Ownership struct {
	state *world.State
	addr  common.Address
}

func newOwnership(state *world.State, addr common.Address) *Ownership {
	return &Ownership{state: state, addr: addr}
}

// Load reads the owner state from storage. A zero pending slot means no
// pending owner.
func (o *Ownership) Load() OwnerState {
	s := OwnerState{Owner: o.state.GetAddress(o.addr, slotOwner)}
	if p := o.state.GetAddress(o.addr, slotPendingOwner); p != (common.Address{}) {
		s.pending = &p
	}
	return s
}

func (o *Ownership) store(s OwnerState) {
	o.state.SetAddress(o.addr, slotOwner, s.Owner)
	pending, _ := s.Pending()
	o.state.SetAddress(o.addr, slotPendingOwner, pending)
}

// RequireOwner fails with ErrUnauthorized unless caller is the current owner.
func (o *Ownership) RequireOwner(caller common.Address) error {
	owner := o.Load().Owner
	if owner == (common.Address{}) {
		return fmt.Errorf("%w: %w", ErrUnauthorized, ErrNotInitialized)
	}
	if caller != owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// Transfer proposes candidate as the next owner. A zero candidate withdraws
// any pending proposal. The current owner keeps full privilege.
func (o *Ownership) Transfer(caller, candidate common.Address) (OwnerState, error) {
	if err := o.RequireOwner(caller); err != nil {
		return OwnerState{}, err
	}
	s := o.Load()
	s.pending = nil
	if candidate != (common.Address{}) {
		s.pending = &candidate
	}
	o.store(s)
	return s, nil
}

// Accept promotes the pending owner. Only the pending owner may call it.
// Returns the previous owner.
func (o *Ownership) Accept(caller common.Address) (common.Address, error) {
	s := o.Load()
	pending, ok := s.Pending()
	if !ok || caller != pending {
		return common.Address{}, fmt.Errorf("%w: %s is not the pending owner", ErrUnauthorized, caller.Hex())
	}
	previous := s.Owner
	o.store(OwnerState{Owner: pending})
	return previous, nil
}
