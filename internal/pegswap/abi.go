package pegswap

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pegswap-experiment/pegswap/internal/contract"
)

const engineJSON = `[
	{"type":"function","name":"addLiquidity","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"source","type":"address"},{"name":"target","type":"address"}],"outputs":[]},
	{"type":"function","name":"removeLiquidity","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"source","type":"address"},{"name":"target","type":"address"}],"outputs":[]},
	{"type":"function","name":"swap","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"source","type":"address"},{"name":"target","type":"address"}],"outputs":[]},
	{"type":"function","name":"recoverStuckTokens","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"target","type":"address"}],"outputs":[]},
	{"type":"function","name":"getSwappableAmount","stateMutability":"view","inputs":[{"name":"source","type":"address"},{"name":"target","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transferOwnership","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"}],"outputs":[]},
	{"type":"function","name":"acceptOwnership","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"TokensSwapped","anonymous":false,"inputs":[{"name":"source","type":"address","indexed":true},{"name":"target","type":"address","indexed":true},{"name":"caller","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"output","type":"uint256","indexed":false}]},
	{"type":"event","name":"OwnershipTransferRequested","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true}]},
	{"type":"event","name":"OwnershipTransferred","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true}]}
]`

var engineABI = contract.MustParse(engineJSON)

// ABI returns the public interface of the swap engine.
func ABI() contract.ABI { return engineABI }

func (e *Engine) ABI() contract.ABI { return engineABI }

// Call decodes engine calldata sent by caller and executes it.
func (e *Engine) Call(ctx context.Context, caller common.Address, input []byte) ([]byte, error) {
	method, args, err := engineABI.Method(input)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "owner":
		owner, err := e.Owner(ctx)
		if err != nil {
			return nil, err
		}
		return engineABI.PackOutput(method.Name, owner)

	case "getSwappableAmount":
		d, err := directionArgs(args[0], args[1])
		if err != nil {
			return nil, err
		}
		amount, err := e.GetSwappableAmount(ctx, d.Source, d.Target)
		if err != nil {
			return nil, err
		}
		return engineABI.PackOutput(method.Name, contract.Big(amount))

	case "addLiquidity", "removeLiquidity", "swap":
		amount, err := contract.Amount(args[0])
		if err != nil {
			return nil, err
		}
		d, err := directionArgs(args[1], args[2])
		if err != nil {
			return nil, err
		}
		switch method.Name {
		case "addLiquidity":
			err = e.AddLiquidity(ctx, caller, amount, d.Source, d.Target)
		case "removeLiquidity":
			err = e.RemoveLiquidity(ctx, caller, amount, d.Source, d.Target)
		default:
			err = e.Swap(ctx, caller, amount, d.Source, d.Target)
		}
		return nil, err

	case "recoverStuckTokens":
		amount, err := contract.Amount(args[0])
		if err != nil {
			return nil, err
		}
		tok, err := contract.Address(args[1])
		if err != nil {
			return nil, err
		}
		return nil, e.RecoverStuckTokens(ctx, caller, amount, tok)

	case "transferOwnership":
		to, err := contract.Address(args[0])
		if err != nil {
			return nil, err
		}
		return nil, e.TransferOwnership(ctx, caller, to)

	case "acceptOwnership":
		return nil, e.AcceptOwnership(ctx, caller)
	}
	return nil, fmt.Errorf("%w: %s", contract.ErrUnknownMethod, method.Name)
}

func directionArgs(source, target interface{}) (Direction, error) {
	s, err := contract.Address(source)
	if err != nil {
		return Direction{}, err
	}
	t, err := contract.Address(target)
	if err != nil {
		return Direction{}, err
	}
	return NewDirection(s, t), nil
}
