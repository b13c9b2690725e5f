package pegswap

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/pegswap-experiment/pegswap/internal/contract"
)

// TokensSwapped is delivered to subscribers once per committed swap.
type TokensSwapped struct {
	Source    common.Address `json:"source"`
	Target    common.Address `json:"target"`
	Caller    common.Address `json:"caller"`
	AmountIn  *uint256.Int   `json:"amountIn"`
	AmountOut *uint256.Int   `json:"amountOut"`
	TxHash    common.Hash    `json:"txHash"`
	LogIndex  uint           `json:"logIndex"`
	// Block is the block the swap is sealed into, 0 when executed outside a node.
	Block uint64 `json:"block"`
}

// Direction returns the swapped path.
func (ev TokensSwapped) Direction() Direction {
	return NewDirection(ev.Source, ev.Target)
}

// SwapEventID is the topic 0 of TokensSwapped logs.
var SwapEventID = engineABI.Events["TokensSwapped"].ID

// ParseSwapLog decodes a TokensSwapped log.
func ParseSwapLog(l *types.Log) (TokensSwapped, error) {
	if len(l.Topics) != 4 || l.Topics[0] != SwapEventID {
		return TokensSwapped{}, fmt.Errorf("not a TokensSwapped log")
	}
	vals, err := engineABI.Events["TokensSwapped"].Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return TokensSwapped{}, fmt.Errorf("decode TokensSwapped: %w", err)
	}
	in, err := contract.Amount(vals[0])
	if err != nil {
		return TokensSwapped{}, err
	}
	out, err := contract.Amount(vals[1])
	if err != nil {
		return TokensSwapped{}, err
	}
	return TokensSwapped{
		Source:    common.BytesToAddress(l.Topics[1].Bytes()),
		Target:    common.BytesToAddress(l.Topics[2].Bytes()),
		Caller:    common.BytesToAddress(l.Topics[3].Bytes()),
		AmountIn:  in,
		AmountOut: out,
		TxHash:    l.TxHash,
		LogIndex:  l.Index,
		Block:     l.BlockNumber,
	}, nil
}
