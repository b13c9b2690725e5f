package node

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Wire types of the REST surface. Amounts travel as decimal strings.

type LiquidityRequest struct {
	From   common.Address `json:"from"`
	Amount *uint256.Int   `json:"amount"`
	Source common.Address `json:"source"`
	Target common.Address `json:"target"`
}

type SwapRequest = LiquidityRequest

type RecoverRequest struct {
	From   common.Address `json:"from"`
	Amount *uint256.Int   `json:"amount"`
	Token  common.Address `json:"token"`
}

type OwnershipRequest struct {
	From common.Address `json:"from"`
	// To is the proposed owner; unused by accept.
	To common.Address `json:"to"`
}

type ApproveRequest struct {
	From    common.Address `json:"from"`
	Spender common.Address `json:"spender"`
	Amount  *uint256.Int   `json:"amount"`
}

type TransferRequest struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *uint256.Int   `json:"amount"`
}

type FaucetRequest struct {
	Token   common.Address `json:"token"`
	Address common.Address `json:"address"`
	Amount  *uint256.Int   `json:"amount"`
}

type OwnerResponse struct {
	Owner        common.Address  `json:"owner"`
	PendingOwner *common.Address `json:"pendingOwner"`
}

type LiquidityResponse struct {
	Source common.Address `json:"source"`
	Target common.Address `json:"target"`
	Amount *uint256.Int   `json:"amount"`
}

type TokenInfo struct {
	Address     common.Address `json:"address"`
	Symbol      string         `json:"symbol"`
	Decimals    uint8          `json:"decimals"`
	TotalSupply *uint256.Int   `json:"totalSupply"`
}

type BalanceResponse struct {
	Token   common.Address `json:"token"`
	Holder  common.Address `json:"holder"`
	Balance *uint256.Int   `json:"balance"`
}

type InfoResponse struct {
	ChainID     uint64         `json:"chainId"`
	Engine      common.Address `json:"engine"`
	BlockHeight uint64         `json:"blockHeight"`
	StateRoot   common.Hash    `json:"stateRoot"`
	Dev         bool           `json:"dev"`
	Uptime      string         `json:"uptime"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Code   string       `json:"code"`
	TxHash *common.Hash `json:"txHash,omitempty"`
}

// Codes beyond the engine's own.
const (
	CodeBadRequest = "bad_request"
	CodeNotFound   = "not_found"
)
