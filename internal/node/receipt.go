package node

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Receipt is the outcome of one transaction.
type Receipt struct {
	TxHash           common.Hash     `json:"transactionHash"`
	TransactionIndex hexutil.Uint64  `json:"transactionIndex"`
	BlockHash        common.Hash     `json:"blockHash"`
	BlockNumber      hexutil.Uint64  `json:"blockNumber"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
	Logs             []*types.Log    `json:"logs"`
	Status           hexutil.Uint64  `json:"status"`
	ReturnData       hexutil.Bytes   `json:"returnData"`
	Error            string          `json:"error,omitempty"`
	Code             string          `json:"code,omitempty"`
}

const (
	StatusFailed  = 0
	StatusSuccess = 1
)

// Succeeded reports whether the transaction committed.
func (r *Receipt) Succeeded() bool { return r.Status == StatusSuccess }

// ReceiptStore keeps receipts in memory, keyed by transaction hash.
type ReceiptStore struct {
	mu       sync.RWMutex
	receipts map[common.Hash]*Receipt
}

func NewReceiptStore() *ReceiptStore {
	return &ReceiptStore{receipts: make(map[common.Hash]*Receipt)}
}

func (s *ReceiptStore) Add(r *Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[r.TxHash] = r.DeepCopy()
}

// Get returns a copy of the receipt for hash, or nil.
func (s *ReceiptStore) Get(hash common.Hash) *Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.receipts[hash].DeepCopy()
}

// SetBlock stamps the receipts of a sealed block with its hash and stamps
// their logs with block data.
func (s *ReceiptStore) SetBlock(hashes []common.Hash, number uint64, blockHash common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hashes {
		r := s.receipts[h]
		if r == nil {
			continue
		}
		r.BlockHash = blockHash
		r.BlockNumber = hexutil.Uint64(number)
		for _, l := range r.Logs {
			l.BlockHash = blockHash
			l.BlockNumber = number
		}
	}
}

func (r *Receipt) DeepCopy() *Receipt {
	if r == nil {
		return nil
	}
	cp := *r
	if r.To != nil {
		to := *r.To
		cp.To = &to
	}
	if r.Logs != nil {
		cp.Logs = make([]*types.Log, len(r.Logs))
		for i, l := range r.Logs {
			if l == nil {
				continue
			}
			lc := *l
			lc.Topics = append([]common.Hash(nil), l.Topics...)
			lc.Data = append([]byte(nil), l.Data...)
			cp.Logs[i] = &lc
		}
	}
	if r.ReturnData != nil {
		cp.ReturnData = append(hexutil.Bytes(nil), r.ReturnData...)
	}
	return &cp
}
