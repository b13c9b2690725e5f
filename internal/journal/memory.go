package journal

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type recordKey struct {
	TxHash   common.Hash
	LogIndex uint
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data []*Record
	keys map[recordKey]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[recordKey]bool)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Insert(_ context.Context, r *Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	key := recordKey{TxHash: r.TxHash, LogIndex: r.LogIndex}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys[key] {
		return ErrDuplicateKey
	}
	s.data = append(s.data, copyRecord(r))
	s.keys[key] = true
	return nil
}

func (s *MemoryStore) ListByDirection(_ context.Context, source, target common.Address, limit int) ([]*Record, error) {
	return s.list(limit, func(r *Record) bool {
		return r.Source == source && r.Target == target
	}), nil
}

func (s *MemoryStore) ListByCaller(_ context.Context, caller common.Address, limit int) ([]*Record, error) {
	return s.list(limit, func(r *Record) bool {
		return r.Caller == caller
	}), nil
}

func (s *MemoryStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) list(limit int, match func(*Record) bool) []*Record {
	limit = clampLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for i := len(s.data) - 1; i >= 0 && len(out) < limit; i-- {
		if match(s.data[i]) {
			out = append(out, copyRecord(s.data[i]))
		}
	}
	return out
}

func copyRecord(r *Record) *Record {
	cp := *r
	cp.AmountIn = r.AmountIn.Clone()
	cp.AmountOut = r.AmountOut.Clone()
	return &cp
}
