// Package contract holds the ABI plumbing shared by the Go-implemented
// contracts living in the world state (the swap engine and token ledgers).
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

var (
	// ErrUnknownMethod is returned when calldata names no method of the ABI.
	ErrUnknownMethod = errors.New("contract: unknown method")
	// ErrBadInput is returned for calldata that does not decode.
	ErrBadInput = errors.New("contract: malformed input")
	// ErrReadOnly is returned when a mutating method is invoked through a read-only call.
	ErrReadOnly = errors.New("contract: write in read-only call")
)

// Callable is a contract reachable through ABI-encoded calldata.
type Callable interface {
	Address() common.Address
	ABI() ABI
	Call(ctx context.Context, caller common.Address, input []byte) ([]byte, error)
}

// ABI wraps the geth ABI with packing helpers for outputs and events.
type ABI struct {
	abi.ABI
}

// MustParse parses raw ABI JSON and panics on error. Intended for package-level ABIs.
func MustParse(raw string) ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return ABI{ABI: parsed}
}

// Method resolves the 4-byte selector of input and unpacks the arguments.
func (a ABI) Method(input []byte) (*abi.Method, []interface{}, error) {
	if len(input) < 4 {
		return nil, nil, fmt.Errorf("%w: calldata shorter than selector", ErrBadInput)
	}
	method, err := a.MethodById(input[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: selector %x", ErrUnknownMethod, input[:4])
	}
	if len(input[4:])%32 != 0 {
		return nil, nil, fmt.Errorf("%w: %s arguments not word aligned", ErrBadInput, method.Name)
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrBadInput, method.Name, err)
	}
	return method, args, nil
}

// PackOutput packs the given args as the output of the named method.
// This does not include method ID.
func (a ABI) PackOutput(name string, args ...interface{}) ([]byte, error) {
	method, exist := a.Methods[name]
	if !exist {
		return nil, fmt.Errorf("method '%s' not found", name)
	}
	return method.Outputs.Pack(args...)
}

// NewLog builds a log at addr for the named event. Indexed arguments become
// topics, the rest are ABI-encoded into Data.
func (a ABI) NewLog(addr common.Address, name string, args ...interface{}) (*types.Log, error) {
	event, exist := a.Events[name]
	if !exist {
		return nil, fmt.Errorf("event '%s' not found", name)
	}
	if len(args) != len(event.Inputs) {
		return nil, fmt.Errorf("event '%s' unexpected number of inputs %d", name, len(args))
	}

	topics := []common.Hash{event.ID}
	var data []interface{}
	for i, arg := range event.Inputs {
		if !arg.Indexed {
			data = append(data, args[i])
			continue
		}
		topic, err := packTopic(args[i])
		if err != nil {
			return nil, fmt.Errorf("event '%s' topic %s: %w", name, arg.Name, err)
		}
		topics = append(topics, topic)
	}

	packed, err := event.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return nil, fmt.Errorf("event '%s': %w", name, err)
	}
	return &types.Log{Address: addr, Topics: topics, Data: packed}, nil
}

func packTopic(value interface{}) (common.Hash, error) {
	switch v := value.(type) {
	case common.Address:
		return common.BytesToHash(v.Bytes()), nil
	case common.Hash:
		return v, nil
	default:
		return common.Hash{}, fmt.Errorf("unsupported indexed type: %T", value)
	}
}

// Big converts an amount for ABI packing.
func Big(v *uint256.Int) *big.Int {
	return v.ToBig()
}

// Amount converts an ABI-decoded uint256 argument.
func Amount(v interface{}) (*uint256.Int, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: expected uint256, got %T", ErrBadInput, v)
	}
	out, overflow := uint256.FromBig(b)
	if overflow || b.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount out of range", ErrBadInput)
	}
	return out, nil
}

// Address converts an ABI-decoded address argument.
func Address(v interface{}) (common.Address, error) {
	a, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: expected address, got %T", ErrBadInput, v)
	}
	return a, nil
}

// IsView reports whether the method does not mutate state.
func IsView(m *abi.Method) bool {
	return m.IsConstant()
}
