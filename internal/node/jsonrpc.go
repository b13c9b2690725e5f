package node

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/pegswap-experiment/pegswap/internal/contract"
)

type jsonRPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result"`
	Error   *rpcError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// rpcErrorData rides along with -32000 errors so clients can map the
// failure back to a typed error.
type rpcErrorData struct {
	Code   string       `json:"code"`
	TxHash *common.Hash `json:"txHash,omitempty"`
}

type txArgs struct {
	From common.Address  `json:"from"`
	To   *common.Address `json:"to"`
	Data hexutil.Bytes   `json:"data"`
	// Input is accepted as an alias of Data.
	Input hexutil.Bytes `json:"input"`
}

func (a txArgs) calldata() []byte {
	if len(a.Input) > 0 {
		return a.Input
	}
	return a.Data
}

const (
	rpcInvalidParams  = -32602
	rpcMethodNotFound = -32601
	rpcServerError    = -32000

	DefaultEstimateGas = 100_000
	blockGasLimit      = 30_000_000
)

func (n *Node) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}

	result, rpcErr := n.dispatch(r.Context(), req)
	writeJSON(w, http.StatusOK, jsonRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		Error:   rpcErr,
		ID:      req.ID,
	})
}

func param(req jsonRPCRequest, i int, v interface{}) *rpcError {
	if i >= len(req.Params) {
		return &rpcError{Code: rpcInvalidParams, Message: fmt.Sprintf("missing parameter %d", i)}
	}
	if err := json.Unmarshal(req.Params[i], v); err != nil {
		return &rpcError{Code: rpcInvalidParams, Message: fmt.Sprintf("invalid parameter %d: %v", i, err)}
	}
	return nil
}

func failure(err error, txHash *common.Hash) *rpcError {
	return &rpcError{
		Code:    rpcServerError,
		Message: err.Error(),
		Data:    rpcErrorData{Code: errorCode(err), TxHash: txHash},
	}
}

func (n *Node) dispatch(ctx context.Context, req jsonRPCRequest) (interface{}, *rpcError) {
	switch req.Method {
	case "eth_chainId":
		return hexutil.Uint64(n.opts.ChainID), nil

	case "eth_blockNumber":
		return hexutil.Uint64(n.chain.Height()), nil

	case "eth_gasPrice":
		return hexutil.Uint64(0), nil

	case "eth_estimateGas":
		return hexutil.Uint64(DefaultEstimateGas), nil

	case "eth_call":
		var args txArgs
		if e := param(req, 0, &args); e != nil {
			return nil, e
		}
		if args.To == nil {
			return nil, failure(fmt.Errorf("%w: to address required", errBadRequest), nil)
		}
		ret, err := n.staticCall(ctx, args.From, *args.To, args.calldata())
		if err != nil {
			return nil, failure(err, nil)
		}
		return hexutil.Bytes(ret), nil

	case "eth_sendTransaction":
		var args txArgs
		if e := param(req, 0, &args); e != nil {
			return nil, e
		}
		if args.To == nil {
			return nil, failure(fmt.Errorf("%w: contract deployment is not supported", errBadRequest), nil)
		}
		c, err := n.callable(*args.To)
		if err != nil {
			return nil, failure(err, nil)
		}
		data := args.calldata()
		receipt, err := n.submit(ctx, args.From, args.To, func(ctx context.Context) ([]byte, error) {
			return c.Call(ctx, args.From, data)
		})
		if err != nil {
			return nil, failure(err, &receipt.TxHash)
		}
		return receipt.TxHash, nil

	case "eth_getTransactionReceipt":
		var hash common.Hash
		if e := param(req, 0, &hash); e != nil {
			return nil, e
		}
		if receipt := n.receipts.Get(hash); receipt != nil {
			return receipt, nil
		}
		return nil, nil

	case "eth_getStorageAt":
		var (
			addr common.Address
			slot common.Hash
		)
		if e := param(req, 0, &addr); e != nil {
			return nil, e
		}
		if e := param(req, 1, &slot); e != nil {
			return nil, e
		}
		var value common.Hash
		n.state.View(ctx, func(context.Context) error {
			value = n.state.GetState(addr, slot)
			return nil
		})
		return value, nil

	case "eth_getBlockByNumber":
		var tag string
		if e := param(req, 0, &tag); e != nil {
			return nil, e
		}
		block, e := n.blockByTag(tag)
		if e != nil || block == nil {
			return nil, e
		}
		return rpcBlock(block), nil

	default:
		return nil, &rpcError{Code: rpcMethodNotFound, Message: "method not found: " + req.Method}
	}
}

// staticCall runs a view method of the contract at to. Writes are refused
// and the state is left untouched either way.
func (n *Node) staticCall(ctx context.Context, from, to common.Address, data []byte) ([]byte, error) {
	c, err := n.callable(to)
	if err != nil {
		return nil, err
	}
	method, _, err := c.ABI().Method(data)
	if err != nil {
		return nil, err
	}
	if !contract.IsView(method) {
		return nil, fmt.Errorf("%w: %s", contract.ErrReadOnly, method.Name)
	}

	var ret []byte
	err = n.state.View(ctx, func(ctx context.Context) error {
		var err error
		ret, err = c.Call(ctx, from, data)
		return err
	})
	return ret, err
}

func (n *Node) blockByTag(tag string) (*Block, *rpcError) {
	switch tag {
	case "latest", "pending", "safe", "finalized", "":
		return n.chain.Head(), nil
	case "earliest":
		b, _ := n.chain.BlockAt(0)
		return b, nil
	}
	height, err := hexutil.DecodeUint64(tag)
	if err != nil {
		return nil, &rpcError{Code: rpcInvalidParams, Message: "invalid block number " + tag}
	}
	b, ok := n.chain.BlockAt(height)
	if !ok {
		return nil, nil
	}
	return b, nil
}

func rpcBlock(b *Block) map[string]interface{} {
	txs := make([]string, len(b.TxHashes))
	for i, h := range b.TxHashes {
		txs[i] = h.Hex()
	}
	return map[string]interface{}{
		"number":           hexutil.Uint64(b.Height),
		"hash":             b.Hash().Hex(),
		"parentHash":       b.ParentHash.Hex(),
		"nonce":            "0x0000000000000000",
		"sha3Uncles":       types.EmptyUncleHash.Hex(),
		"logsBloom":        hexutil.Bytes(types.Bloom{}.Bytes()).String(),
		"transactionsRoot": common.Hash{}.Hex(),
		"stateRoot":        b.StateRoot.Hex(),
		"receiptsRoot":     common.Hash{}.Hex(),
		"miner":            common.Address{}.Hex(),
		"difficulty":       "0x0",
		"totalDifficulty":  "0x0",
		"extraData":        "0x",
		"size":             "0x0",
		"gasLimit":         hexutil.Uint64(blockGasLimit),
		"gasUsed":          "0x0",
		"timestamp":        hexutil.Uint64(b.Timestamp),
		"transactions":     txs,
		"uncles":           []string{},
	}
}
