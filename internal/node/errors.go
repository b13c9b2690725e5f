package node

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pegswap-experiment/pegswap/internal/contract"
	"github.com/pegswap-experiment/pegswap/internal/pegswap"
	"github.com/pegswap-experiment/pegswap/internal/token"
)

// errBadRequest marks malformed input detected by the node itself.
var errBadRequest = errors.New("bad request")

// errorCode classifies err for the wire. Token failures outside the engine
// share the engine's transfer failure code.
func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errBadRequest),
		errors.Is(err, contract.ErrBadInput),
		errors.Is(err, contract.ErrUnknownMethod),
		errors.Is(err, contract.ErrReadOnly):
		return CodeBadRequest
	case errors.Is(err, pegswap.ErrUnauthorized),
		errors.Is(err, pegswap.ErrInsufficientLiquidity),
		errors.Is(err, pegswap.ErrTokenTransferFailed):
		return pegswap.ErrorCode(err)
	case errors.Is(err, token.ErrUnknownToken):
		return CodeNotFound
	case errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrZeroAddress),
		errors.Is(err, token.ErrSupplyOverflow):
		return pegswap.CodeTokenTransferFailed
	default:
		return pegswap.CodeInternal
	}
}

func statusFor(code string) int {
	switch code {
	case pegswap.CodeUnauthorized:
		return http.StatusForbidden
	case pegswap.CodeInsufficientLiquidity:
		return http.StatusConflict
	case pegswap.CodeTokenTransferFailed:
		return http.StatusUnprocessableEntity
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error, txHash *common.Hash) {
	code := errorCode(err)
	writeJSON(w, statusFor(code), ErrorResponse{Error: err.Error(), Code: code, TxHash: txHash})
}
