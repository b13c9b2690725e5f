package pegswap

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks the privilege an operation requires.
	ErrUnauthorized = errors.New("pegswap: unauthorized")
	// ErrInsufficientLiquidity is returned when a withdrawal or swap exceeds the available amount of a direction.
	ErrInsufficientLiquidity = errors.New("pegswap: insufficient liquidity")
	// ErrTokenTransferFailed wraps any failure reported by a token gateway.
	ErrTokenTransferFailed = errors.New("pegswap: token transfer failed")

	ErrAlreadyInitialized = errors.New("pegswap: already initialized")
	ErrNotInitialized     = errors.New("pegswap: not initialized")
	ErrLiquidityOverflow  = errors.New("pegswap: liquidity overflow")
)

// Error codes shared by the HTTP surface, the client and metrics labels.
const (
	CodeUnauthorized          = "unauthorized"
	CodeInsufficientLiquidity = "insufficient_liquidity"
	CodeTokenTransferFailed   = "token_transfer_failed"
	CodeInternal              = "internal"
)

// ErrorCode classifies err into one of the engine error codes, or "" for nil.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrInsufficientLiquidity):
		return CodeInsufficientLiquidity
	case errors.Is(err, ErrTokenTransferFailed):
		return CodeTokenTransferFailed
	default:
		return CodeInternal
	}
}

// ErrorForCode maps a code back to its sentinel. Unknown codes yield nil.
func ErrorForCode(code string) error {
	switch code {
	case CodeUnauthorized:
		return ErrUnauthorized
	case CodeInsufficientLiquidity:
		return ErrInsufficientLiquidity
	case CodeTokenTransferFailed:
		return ErrTokenTransferFailed
	}
	return nil
}
