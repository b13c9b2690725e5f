package token

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pegswap-experiment/pegswap/internal/contract"
)

const erc20JSON = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]},
	{"type":"event","name":"Approval","anonymous":false,"inputs":[{"name":"owner","type":"address","indexed":true},{"name":"spender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

var erc20ABI = contract.MustParse(erc20JSON)

// ABI returns the ERC-20 interface served by every Ledger.
func ABI() contract.ABI { return erc20ABI }

// Call decodes ERC-20 calldata from caller and executes it against the ledger.
func (l *Ledger) Call(ctx context.Context, caller common.Address, input []byte) ([]byte, error) {
	method, args, err := erc20ABI.Method(input)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "name", "symbol":
		return erc20ABI.PackOutput(method.Name, l.symbol)
	case "decimals":
		return erc20ABI.PackOutput(method.Name, l.decimals)
	case "totalSupply":
		supply, err := l.TotalSupply(ctx)
		if err != nil {
			return nil, err
		}
		return erc20ABI.PackOutput(method.Name, contract.Big(supply))
	case "balanceOf":
		holder, err := contract.Address(args[0])
		if err != nil {
			return nil, err
		}
		bal, err := l.BalanceOf(ctx, holder)
		if err != nil {
			return nil, err
		}
		return erc20ABI.PackOutput(method.Name, contract.Big(bal))
	case "allowance":
		owner, err := contract.Address(args[0])
		if err != nil {
			return nil, err
		}
		spender, err := contract.Address(args[1])
		if err != nil {
			return nil, err
		}
		allowed, err := l.Allowance(ctx, owner, spender)
		if err != nil {
			return nil, err
		}
		return erc20ABI.PackOutput(method.Name, contract.Big(allowed))
	case "approve":
		spender, err := contract.Address(args[0])
		if err != nil {
			return nil, err
		}
		amount, err := contract.Amount(args[1])
		if err != nil {
			return nil, err
		}
		if err := l.Approve(ctx, caller, spender, amount); err != nil {
			return nil, err
		}
		return erc20ABI.PackOutput(method.Name, true)
	case "transfer":
		to, err := contract.Address(args[0])
		if err != nil {
			return nil, err
		}
		amount, err := contract.Amount(args[1])
		if err != nil {
			return nil, err
		}
		if err := l.Transfer(ctx, caller, to, amount); err != nil {
			return nil, err
		}
		return erc20ABI.PackOutput(method.Name, true)
	case "transferFrom":
		from, err := contract.Address(args[0])
		if err != nil {
			return nil, err
		}
		to, err := contract.Address(args[1])
		if err != nil {
			return nil, err
		}
		amount, err := contract.Amount(args[2])
		if err != nil {
			return nil, err
		}
		if err := l.TransferFrom(ctx, caller, from, to, amount); err != nil {
			return nil, err
		}
		return erc20ABI.PackOutput(method.Name, true)
	}
	return nil, fmt.Errorf("%w: %s", contract.ErrUnknownMethod, method.Name)
}
