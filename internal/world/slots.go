package world

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Slot returns the storage slot for a fixed position n.
func Slot(n uint64) common.Hash {
	return uint256.NewInt(n).Bytes32()
}

// AddressKey left-pads an address to a 32-byte mapping key.
func AddressKey(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// MappingSlot returns the slot of mapping[key] for a mapping declared at base,
// using the Solidity layout keccak(key . base).
func MappingSlot(base, key common.Hash) common.Hash {
	return crypto.Keccak256Hash(key.Bytes(), base.Bytes())
}

// ArraySlot returns the slot of element i of a dynamic array declared at base.
func ArraySlot(base common.Hash, i uint64) common.Hash {
	start := new(uint256.Int).SetBytes(crypto.Keccak256(base.Bytes()))
	return start.Add(start, uint256.NewInt(i)).Bytes32()
}

// GetUint reads a slot as an unsigned 256-bit integer.
func (s *State) GetUint(addr common.Address, slot common.Hash) *uint256.Int {
	v := s.GetState(addr, slot)
	return new(uint256.Int).SetBytes(v.Bytes())
}

// SetUint writes an unsigned 256-bit integer to a slot.
func (s *State) SetUint(addr common.Address, slot common.Hash, v *uint256.Int) {
	s.SetState(addr, slot, v.Bytes32())
}

// GetAddress reads a slot holding a left-padded address.
func (s *State) GetAddress(addr common.Address, slot common.Hash) common.Address {
	return common.BytesToAddress(s.GetState(addr, slot).Bytes())
}

// SetAddress writes a left-padded address to a slot.
func (s *State) SetAddress(addr common.Address, slot common.Hash, v common.Address) {
	s.SetState(addr, slot, AddressKey(v))
}
