// Package journal keeps an append-only, queryable record of committed swaps.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pegswap-experiment/pegswap/internal/pegswap"
)

var (
	// ErrDuplicateKey is returned when a record with the same (tx_hash, log_index) exists.
	ErrDuplicateKey = errors.New("journal: duplicate key")
	// ErrInvalidInput is returned for nil or incomplete records.
	ErrInvalidInput = errors.New("journal: invalid input")
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Record is one committed TokensSwapped notification.
type Record struct {
	TxHash    common.Hash    `json:"txHash"`
	LogIndex  uint           `json:"logIndex"`
	Block     uint64         `json:"block"`
	Source    common.Address `json:"source"`
	Target    common.Address `json:"target"`
	Caller    common.Address `json:"caller"`
	AmountIn  *uint256.Int   `json:"amountIn"`
	AmountOut *uint256.Int   `json:"amountOut"`
	Timestamp int64          `json:"timestamp"` // unix milliseconds
}

// FromEvent builds a record for a swap committed in block at ts.
func FromEvent(ev pegswap.TokensSwapped, block uint64, ts int64) *Record {
	return &Record{
		TxHash:    ev.TxHash,
		LogIndex:  ev.LogIndex,
		Block:     block,
		Source:    ev.Source,
		Target:    ev.Target,
		Caller:    ev.Caller,
		AmountIn:  ev.AmountIn,
		AmountOut: ev.AmountOut,
		Timestamp: ts,
	}
}

func (r *Record) validate() error {
	if r == nil || r.AmountIn == nil || r.AmountOut == nil {
		return ErrInvalidInput
	}
	return nil
}

// Store persists swap records. List methods return newest first.
type Store interface {
	Insert(ctx context.Context, r *Record) error
	ListByDirection(ctx context.Context, source, target common.Address, limit int) ([]*Record, error)
	ListByCaller(ctx context.Context, caller common.Address, limit int) ([]*Record, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open connects the named backend. dsn is ignored by the memory backend.
func Open(ctx context.Context, backend, dsn string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return OpenSQLite(ctx, dsn)
	case BackendPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", backend)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}
